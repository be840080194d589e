package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"oil-price-watch/internal/alerting"
	"oil-price-watch/internal/archive"
	"oil-price-watch/internal/config"
	"oil-price-watch/internal/history"
	"oil-price-watch/internal/monitor"
	"oil-price-watch/internal/poller"
	"oil-price-watch/internal/scheduler"
	"oil-price-watch/internal/service"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newPoller() *poller.Poller {
	return poller.New(poller.Options{
		URL:               a.Config.Endpoint.URL,
		BaseInterval:      a.Config.Monitor.BaseInterval,
		RelaxMultiplier:   a.Config.Monitor.RelaxMultiplier,
		NoChangeThreshold: a.Config.Monitor.NoChangeThreshold,
		Timeout:           a.Config.Endpoint.RequestTimeout,
		RetryCount:        a.Config.Endpoint.RetryCount,
		UserAgent:         a.Config.Endpoint.UserAgent,
	}, a.Logger)
}

func (a *App) newMonitor() *monitor.Monitor {
	store := history.NewStore(a.Config.Monitor.HistoryFile, a.Logger)
	return monitor.New(a.newPoller(), store, a.Config.Monitor.ChangeThreshold, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openArchive(ctx context.Context) (*archive.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := archive.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := archive.NewStore(pool, a.Logger)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; archive mirroring disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		StartupDelay: a.Config.Monitor.StartupDelay,
		ErrorBackoff: a.Config.Monitor.ErrorBackoff,
	}, a.Logger)

	mon := a.newMonitor()
	notifier := a.newNotifier()

	var sampleStore archive.SampleStore
	if store != nil {
		sampleStore = store
	}

	svc := service.New(a.Config, sched, mon, sampleStore, notifier, a.Logger)

	a.Logger.Info().
		Str("url", a.Config.Endpoint.URL).
		Dur("base_interval", a.Config.Monitor.BaseInterval).
		Float64("threshold", a.Config.Monitor.ChangeThreshold).
		Msg("starting oil price monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}

// ExportOptions hold parameters for exporting archived samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SummaryOptions configure the summary command.
type SummaryOptions struct {
	Window int
}
