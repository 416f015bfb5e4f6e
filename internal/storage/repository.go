package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
)

const (
	insertSampleSQL = `INSERT INTO pair_samples (
        block_number,
        pair_count,
        valid,
        source,
        observed_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	listRecentSamplesSQL = `SELECT
        block_number,
        pair_count,
        valid,
        source,
        observed_at
    FROM pair_samples
    ORDER BY observed_at DESC, id DESC
    LIMIT $1;`

	listSamplesBetweenSQL = `SELECT
        block_number,
        pair_count,
        valid,
        source,
        observed_at
    FROM pair_samples
    WHERE observed_at >= $1
      AND observed_at < $2
    ORDER BY observed_at;`

	countSamplesSQL = `SELECT COUNT(*) FROM pair_samples;`

	insertAlertSQL = `INSERT INTO pair_alerts (
        id,
        pair_count,
        delta,
        sample_block,
        triggered_at,
        triggered_by,
        processed
    ) VALUES (
        (SELECT COALESCE(MAX(id), 0) + 1 FROM pair_alerts),
        $1,$2,$3,$4,$5,FALSE
    )
    RETURNING id;`

	getAlertSQL = `SELECT
        id,
        pair_count,
        delta,
        sample_block,
        triggered_at,
        triggered_by,
        processed
    FROM pair_alerts
    WHERE id = $1;`

	lastAlertSQL = `SELECT
        id,
        pair_count,
        delta,
        sample_block,
        triggered_at,
        triggered_by,
        processed
    FROM pair_alerts
    ORDER BY id DESC
    LIMIT 1;`

	totalAlertsSQL = `SELECT COALESCE(MAX(id), 0) FROM pair_alerts;`

	markProcessedSQL = `UPDATE pair_alerts
    SET processed = TRUE
    WHERE id = $1
      AND processed = FALSE;`

	alertExistsSQL = `SELECT EXISTS (SELECT 1 FROM pair_alerts WHERE id = $1);`

	listRecentAlertsSQL = `SELECT
        id,
        pair_count,
        delta,
        sample_block,
        triggered_at,
        triggered_by,
        processed
    FROM pair_alerts
    ORDER BY id DESC
    LIMIT $1;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PairSampleStore defines operations for observation history persistence.
type PairSampleStore interface {
	InsertSample(ctx context.Context, sample PairSample) error
	ListRecentSamples(ctx context.Context, limit int) ([]PairSample, error)
	ListSamplesBetween(ctx context.Context, from, to time.Time) ([]PairSample, error)
	CountSamples(ctx context.Context) (int64, error)
}

// AlertStore defines operations for the append-only alert ledger.
// InsertAlert assigns the next dense 1-based id; MarkProcessed reports
// false when the alert was already processed.
type AlertStore interface {
	InsertAlert(ctx context.Context, alert Alert) (Alert, error)
	GetAlert(ctx context.Context, id uint64) (Alert, error)
	LastAlert(ctx context.Context) (Alert, error)
	TotalAlerts(ctx context.Context) (uint64, error)
	MarkProcessed(ctx context.Context, id uint64) (bool, error)
	ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates postgres-backed access to samples and alerts.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
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
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

// InsertSample persists one observation row.
func (s *Store) InsertSample(ctx context.Context, sample PairSample) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertSampleSQL,
		bigString(sample.Block),
		bigString(sample.PairCount),
		sample.Valid,
		sample.Source,
		sample.ObservedAt,
	)
	if execErr != nil {
		return fmt.Errorf("insert sample: %w", execErr)
	}
	return nil
}

// ListRecentSamples lists the most recent observations, newest first.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]PairSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// ListSamplesBetween lists observations within [from, to).
func (s *Store) ListSamplesBetween(ctx context.Context, from, to time.Time) ([]PairSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSamplesBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list samples between: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

// CountSamples counts stored observations.
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

// InsertAlert appends an alert, assigning the next dense id in the same
// statement so ids never gap even across writer restarts.
func (s *Store) InsertAlert(ctx context.Context, alert Alert) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}

	row := pool.QueryRow(ctx, insertAlertSQL,
		bigString(alert.PairCount),
		bigString(alert.Delta),
		bigString(alert.SampleBlock),
		int64(alert.Timestamp),
		alert.TriggeredBy.Hex(),
	)

	stored := alert.Clone()
	var id int64
	if scanErr := row.Scan(&id); scanErr != nil {
		return Alert{}, fmt.Errorf("insert alert: %w", scanErr)
	}
	stored.ID = uint64(id)
	stored.Processed = false
	return stored, nil
}

// GetAlert fetches one alert by id.
func (s *Store) GetAlert(ctx context.Context, id uint64) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}

	row := pool.QueryRow(ctx, getAlertSQL, int64(id))
	alert, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, scanErr
	}
	return alert, nil
}

// LastAlert fetches the most recently ingested alert.
func (s *Store) LastAlert(ctx context.Context) (Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return Alert{}, err
	}

	row := pool.QueryRow(ctx, lastAlertSQL)
	alert, scanErr := scanAlert(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Alert{}, ErrNotFound
		}
		return Alert{}, scanErr
	}
	return alert, nil
}

// TotalAlerts returns the highest assigned id, which for dense ids equals
// the number of alerts ever ingested.
func (s *Store) TotalAlerts(ctx context.Context) (uint64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var total int64
	if scanErr := pool.QueryRow(ctx, totalAlertsSQL).Scan(&total); scanErr != nil {
		return 0, fmt.Errorf("total alerts: %w", scanErr)
	}
	return uint64(total), nil
}

// MarkProcessed flips the processed flag exactly once. Returns false when
// the alert exists but was already processed, ErrNotFound when it does not
// exist.
func (s *Store) MarkProcessed(ctx context.Context, id uint64) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	tag, execErr := pool.Exec(ctx, markProcessedSQL, int64(id))
	if execErr != nil {
		return false, fmt.Errorf("mark processed: %w", execErr)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if scanErr := pool.QueryRow(ctx, alertExistsSQL, int64(id)).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("check alert exists: %w", scanErr)
	}
	if !exists {
		return false, ErrNotFound
	}
	return false, nil
}

// ListRecentAlerts lists the most recent alerts, newest first.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]Alert, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	if limit < 0 {
		limit = 0
	}
	alerts := make([]Alert, 0, limit)
	for rows.Next() {
		alert, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		alerts = append(alerts, alert)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return alerts, nil
}

func collectSamples(rows pgx.Rows, hint int) ([]PairSample, error) {
	if hint < 0 {
		hint = 0
	}
	samples := make([]PairSample, 0, hint)
	for rows.Next() {
		var (
			blockStr   string
			countStr   string
			valid      bool
			source     string
			observedAt time.Time
		)
		if err := rows.Scan(&blockStr, &countStr, &valid, &source, &observedAt); err != nil {
			return nil, err
		}

		block, err := parseBig(blockStr, "block_number")
		if err != nil {
			return nil, err
		}
		count, err := parseBig(countStr, "pair_count")
		if err != nil {
			return nil, err
		}

		samples = append(samples, PairSample{
			Block:      block,
			PairCount:  count,
			Valid:      valid,
			Source:     source,
			ObservedAt: observedAt,
		})
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func scanAlert(row pgx.Row) (Alert, error) {
	var (
		id          int64
		countStr    string
		deltaStr    string
		blockStr    string
		triggeredAt int64
		triggeredBy string
		processed   bool
	)

	if err := row.Scan(&id, &countStr, &deltaStr, &blockStr, &triggeredAt, &triggeredBy, &processed); err != nil {
		return Alert{}, err
	}

	count, err := parseBig(countStr, "pair_count")
	if err != nil {
		return Alert{}, err
	}
	delta, err := parseBig(deltaStr, "delta")
	if err != nil {
		return Alert{}, err
	}
	block, err := parseBig(blockStr, "sample_block")
	if err != nil {
		return Alert{}, err
	}

	return Alert{
		ID:          uint64(id),
		PairCount:   count,
		Delta:       delta,
		SampleBlock: block,
		Timestamp:   uint64(triggeredAt),
		TriggeredBy: common.HexToAddress(triggeredBy),
		Processed:   processed,
	}, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("parse %s: invalid numeric %q", field, s)
	}
	return v, nil
}
