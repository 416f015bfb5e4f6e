// Package ledger maintains the append-only record of pair-growth alerts
// with dense sequential ids and an owner-gated acknowledgement workflow.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/storage"
)

// AlertCategory labels every categorical notification emitted on ingest.
const AlertCategory = "SUSPICIOUS_PAIR_GROWTH"

var (
	// ErrUnauthorized means the caller identity is not the ledger owner.
	ErrUnauthorized = errors.New("ledger: unauthorized")
	// ErrNotFound means the alert id is outside [1, total].
	ErrNotFound = errors.New("ledger: alert not found")
	// ErrAlreadyProcessed means the alert was acknowledged before.
	ErrAlreadyProcessed = errors.New("ledger: alert already processed")
)

// RecordedEvent is the structured notification for one ingested alert.
type RecordedEvent struct {
	PairCount   *big.Int
	Timestamp   uint64
	TriggeredBy common.Address
}

// CategoryEvent is the categorical notification for one ingested alert.
type CategoryEvent struct {
	PairCount *big.Int
	Category  string
	Timestamp uint64
}

// Emitter receives both notifications fired at the end of every ingest.
type Emitter interface {
	AlertRecorded(ctx context.Context, ev RecordedEvent) error
	CategoryFlagged(ctx context.Context, ev CategoryEvent) error
}

// Ledger serializes alert ingestion so ids stay dense and the last-alert
// cache mirrors the newest record. Reads outside the cache go to the store.
type Ledger struct {
	mu      sync.Mutex
	store   storage.AlertStore
	owner   common.Address
	emitter Emitter
	logger  zerolog.Logger
	clock   func() uint64

	total   uint64
	last    storage.Alert
	hasLast bool
}

// New builds a Ledger over the given store, warming the total and
// last-alert cache so reads work before the first ingest.
func New(ctx context.Context, store storage.AlertStore, owner common.Address, emitter Emitter, logger zerolog.Logger) (*Ledger, error) {
	if store == nil {
		return nil, fmt.Errorf("ledger: store required")
	}

	total, err := store.TotalAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("warm alert total: %w", err)
	}

	l := &Ledger{
		store:   store,
		owner:   owner,
		emitter: emitter,
		logger:  logger.With().Str("component", "ledger").Logger(),
		clock:   func() uint64 { return uint64(time.Now().Unix()) },
		total:   total,
	}

	last, err := store.LastAlert(ctx)
	switch {
	case err == nil:
		l.last = last.Clone()
		l.hasLast = true
	case errors.Is(err, storage.ErrNotFound):
		// empty ledger, cache stays cold
	default:
		return nil, fmt.Errorf("warm last alert: %w", err)
	}

	return l, nil
}

// Owner returns the acknowledgement authority configured at construction.
func (l *Ledger) Owner() common.Address {
	return l.owner
}

// Ingest appends one alert and returns its assigned id. The triggering
// values are recorded as-is, open to any caller. Both notifications fire
// synchronously after the append; emitter failures are logged, never
// returned.
func (l *Ledger) Ingest(ctx context.Context, pairCount, delta, sampleBlock *big.Int, triggeredBy common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	alert := storage.Alert{
		PairCount:   bigOrZero(pairCount),
		Delta:       bigOrZero(delta),
		SampleBlock: bigOrZero(sampleBlock),
		Timestamp:   l.clock(),
		TriggeredBy: triggeredBy,
	}

	stored, err := l.store.InsertAlert(ctx, alert)
	if err != nil {
		return 0, fmt.Errorf("insert alert: %w", err)
	}

	l.total = stored.ID
	l.last = stored.Clone()
	l.hasLast = true

	l.logger.Info().
		Uint64("alert_id", stored.ID).
		Str("pair_count", stored.PairCount.String()).
		Str("delta", stored.Delta.String()).
		Str("sample_block", stored.SampleBlock.String()).
		Str("triggered_by", stored.TriggeredBy.Hex()).
		Msg("alert ingested")

	l.emit(ctx, stored)

	return stored.ID, nil
}

func (l *Ledger) emit(ctx context.Context, alert storage.Alert) {
	if l.emitter == nil {
		return
	}

	recorded := RecordedEvent{
		PairCount:   new(big.Int).Set(alert.PairCount),
		Timestamp:   alert.Timestamp,
		TriggeredBy: alert.TriggeredBy,
	}
	if err := l.emitter.AlertRecorded(ctx, recorded); err != nil {
		l.logger.Error().Err(err).Uint64("alert_id", alert.ID).Msg("failed to emit alert record")
	}

	category := CategoryEvent{
		PairCount: new(big.Int).Set(alert.PairCount),
		Category:  AlertCategory,
		Timestamp: alert.Timestamp,
	}
	if err := l.emitter.CategoryFlagged(ctx, category); err != nil {
		l.logger.Error().Err(err).Uint64("alert_id", alert.ID).Msg("failed to emit category event")
	}
}

// Acknowledge marks one alert processed. Only the owner may acknowledge,
// each alert exactly once.
func (l *Ledger) Acknowledge(ctx context.Context, id uint64, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if caller != l.owner {
		return ErrUnauthorized
	}
	if id == 0 || id > l.total {
		return ErrNotFound
	}

	changed, err := l.store.MarkProcessed(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("mark processed: %w", err)
	}
	if !changed {
		return ErrAlreadyProcessed
	}

	if l.hasLast && l.last.ID == id {
		l.last.Processed = true
	}

	l.logger.Info().Uint64("alert_id", id).Str("by", caller.Hex()).Msg("alert acknowledged")
	return nil
}

// GetAlert returns a copy of one alert by id.
func (l *Ledger) GetAlert(ctx context.Context, id uint64) (storage.Alert, error) {
	l.mu.Lock()
	total := l.total
	l.mu.Unlock()

	if id == 0 || id > total {
		return storage.Alert{}, ErrNotFound
	}

	alert, err := l.store.GetAlert(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Alert{}, ErrNotFound
		}
		return storage.Alert{}, fmt.Errorf("get alert: %w", err)
	}
	return alert, nil
}

// LastAlert reports the most recently ingested alert's pair count,
// timestamp, and origin. Before the first ingest it reports zero values.
func (l *Ledger) LastAlert() (*big.Int, uint64, common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.hasLast {
		return new(big.Int), 0, common.Address{}
	}
	return new(big.Int).Set(l.last.PairCount), l.last.Timestamp, l.last.TriggeredBy
}

// TotalAlerts reports how many alerts were ever ingested.
func (l *Ledger) TotalAlerts() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// ListRecent returns up to limit alerts, newest first.
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]storage.Alert, error) {
	alerts, err := l.store.ListRecentAlerts(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
