package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"oil-price-watch/internal/alerting"
	"oil-price-watch/internal/archive"
	"oil-price-watch/internal/config"
	"oil-price-watch/internal/detector"
	"oil-price-watch/internal/monitor"
	"oil-price-watch/internal/scheduler"
)

// Service orchestrates the monitoring loop, archive mirroring, and alerting.
type Service struct {
	scheduler *scheduler.Scheduler
	monitor   *monitor.Monitor
	store     archive.SampleStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	threshold   float64
	channels    []string
	alertsOn    bool
	cooldown    time.Duration
	lastAlertAt time.Time
	locker      archive.AdvisoryLocker
	lockKey     int64
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, mon *monitor.Monitor, store archive.SampleStore, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	var locker archive.AdvisoryLocker
	if l, ok := store.(archive.AdvisoryLocker); ok {
		locker = l
	}

	return &Service{
		scheduler: sched,
		monitor:   mon,
		store:     store,
		notifier:  notifier,
		logger:    logger.With().Str("component", "service").Logger(),
		threshold: cfg.Monitor.ChangeThreshold,
		channels:  cfg.Alerting.Channels,
		alertsOn:  cfg.Alerting.Enabled,
		cooldown:  cfg.Alerting.Cooldown,
		locker:    locker,
		lockKey:   cfg.Monitor.AdvisoryLockKey,
	}
}

// Run begins the polling loop and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}

	s.monitor.Start()
	defer s.monitor.Stop()

	return s.scheduler.Run(ctx, s.monitor.NextPollTime, s.Tick)
}

// Tick executes a single poll cycle: check for updates, mirror any accepted
// point into the archive, and dispatch an alert on a reportable event. A
// returned error only signals the scheduler to back off; failures never stop
// the loop.
func (s *Service) Tick(ctx context.Context) error {
	unlock, proceed, err := s.acquireLock(ctx)
	if err != nil {
		return err
	}
	if !proceed {
		s.logger.Debug().Msg("skip cycle because advisory lock held elsewhere")
		return nil
	}
	if unlock != nil {
		defer unlock()
	}

	previous := s.monitor.CurrentPrice()
	event := s.monitor.CheckForUpdates(ctx)

	status := s.monitor.Status()
	if status.LastCheckFailed {
		return fmt.Errorf("poll cycle failed: %s", status.LastError)
	}

	current := s.monitor.CurrentPrice()
	if current != nil && (previous == nil || current.Cycle > previous.Cycle) {
		kind := detector.KindUpdate
		if event != nil {
			kind = event.Kind
		}
		s.mirrorSample(ctx, current.Price, current.Cycle, current.ObservedAt, kind)
	}

	if event != nil {
		s.dispatchAlert(ctx, *event)
	}

	return nil
}

func (s *Service) mirrorSample(ctx context.Context, price float64, cycle int64, observedAt time.Time, kind detector.Kind) {
	if s.store == nil {
		return
	}
	if observedAt.IsZero() {
		observedAt = time.Now().UTC()
	}

	sample := archive.Sample{
		ObservedAt: observedAt,
		Price:      decimal.NewFromFloat(price),
		Cycle:      cycle,
		EventType:  string(kind),
	}
	if err := s.store.UpsertSample(ctx, sample); err != nil {
		s.logger.Error().Err(err).Int64("cycle", cycle).Msg("failed to archive price sample")
	}
}

func (s *Service) dispatchAlert(ctx context.Context, event detector.ChangeEvent) {
	if !s.alertsOn || s.notifier == nil {
		return
	}
	if s.cooldown > 0 && !s.lastAlertAt.IsZero() && time.Since(s.lastAlertAt) < s.cooldown {
		s.logger.Debug().
			Dur("cooldown", s.cooldown).
			Time("last_alert", s.lastAlertAt).
			Msg("alert suppressed by cooldown")
		return
	}

	note := alerting.Notification{
		Event:     event,
		Threshold: s.threshold,
		Channels:  s.channels,
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Msg("failed to dispatch alert")
		return
	}
	s.lastAlertAt = time.Now()
}

func (s *Service) acquireLock(ctx context.Context) (func(), bool, error) {
	if s.lockKey == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, s.lockKey)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}
