package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the archive pool was not initialised.
	ErrNotConfigured = errors.New("archive: pool not configured")
)

const (
	upsertSampleSQL = `INSERT INTO price_samples (
        observed_at,
        price,
        cycle,
        event_type
    ) VALUES (
        $1,$2,$3,$4
    )
    ON CONFLICT (cycle) DO UPDATE
    SET
        observed_at = EXCLUDED.observed_at,
        price       = EXCLUDED.price,
        event_type  = EXCLUDED.event_type;`

	listSamplesBetweenSQL = `SELECT
        observed_at,
        price,
        cycle,
        event_type,
        created_at
    FROM price_samples
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY cycle;`

	listRecentSamplesSQL = `SELECT
        observed_at,
        price,
        cycle,
        event_type,
        created_at
    FROM price_samples
    ORDER BY cycle DESC
    LIMIT $1;`

	countSamplesSQL = `SELECT COUNT(*) FROM price_samples;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// SampleStore defines operations for archived price samples.
type SampleStore interface {
	UpsertSample(ctx context.Context, sample Sample) error
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]Sample, error)
	ListRecentSamples(ctx context.Context, limit int) ([]Sample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to archived samples.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool, logger zerolog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a
// release func. Guards against a second watcher instance writing the archive.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			s.logger.Warn().Err(err).Int64("key", key).Msg("best-effort advisory unlock failed")
		}
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertSample persists or updates an archived price sample keyed by cycle.
func (s *Store) UpsertSample(ctx context.Context, sample Sample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, upsertSampleSQL,
		sample.ObservedAt,
		sample.Price.String(),
		sample.Cycle,
		sample.EventType,
	)
	if execErr != nil {
		return fmt.Errorf("upsert price sample: %w", execErr)
	}
	return nil
}

// ListSamplesBetween lists samples within a time window, oldest cycle first.
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]Sample, 0)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// ListRecentSamples lists the most recent samples ordered by descending cycle.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]Sample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	samples := make([]Sample, 0, limit)
	for rows.Next() {
		sample, scanErr := scanSample(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// CountSamples counts archived samples.
func (s *Store) CountSamples(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countSamplesSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count samples: %w", scanErr)
	}
	return count, nil
}

func scanSample(rows pgx.Rows) (Sample, error) {
	var (
		observedAt time.Time
		priceStr   string
		cycle      int64
		eventType  string
		createdAt  time.Time
	)

	if err := rows.Scan(&observedAt, &priceStr, &cycle, &eventType, &createdAt); err != nil {
		return Sample{}, err
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return Sample{}, fmt.Errorf("parse archived price: %w", err)
	}

	return Sample{
		ObservedAt: observedAt,
		Price:      price,
		Cycle:      cycle,
		EventType:  eventType,
		CreatedAt:  createdAt,
	}, nil
}
