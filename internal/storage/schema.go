package storage

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pair_samples (
    id           BIGSERIAL PRIMARY KEY,
    block_number NUMERIC(78,0) NOT NULL,
    pair_count   NUMERIC(78,0) NOT NULL,
    valid        BOOLEAN NOT NULL,
    source       TEXT NOT NULL DEFAULT 'live',
    observed_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pair_samples_observed_at ON pair_samples (observed_at DESC);

CREATE TABLE IF NOT EXISTS pair_alerts (
    id           BIGINT PRIMARY KEY,
    pair_count   NUMERIC(78,0) NOT NULL,
    delta        NUMERIC(78,0) NOT NULL,
    sample_block NUMERIC(78,0) NOT NULL,
    triggered_at BIGINT NOT NULL,
    triggered_by TEXT NOT NULL,
    processed    BOOLEAN NOT NULL DEFAULT FALSE
);
`

// EnsureSchema creates the tables used by the watcher when they do not
// exist yet. Safe to call on every startup.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, schemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}
