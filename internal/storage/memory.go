package storage

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory twin of Store for DSN-less runs and tests. Alerts
// keep the same dense 1-based id semantics as the postgres store.
type Memory struct {
	mu      sync.RWMutex
	samples []PairSample
	alerts  []Alert
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		samples: make([]PairSample, 0, 128),
		alerts:  make([]Alert, 0, 16),
	}
}

func (m *Memory) InsertSample(_ context.Context, sample PairSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, sample.Clone())
	return nil
}

func (m *Memory) ListRecentSamples(_ context.Context, limit int) ([]PairSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.samples)
	if limit < 0 {
		limit = 0
	}
	if limit > n {
		limit = n
	}
	out := make([]PairSample, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.samples[i].Clone())
	}
	return out, nil
}

func (m *Memory) ListSamplesBetween(_ context.Context, from, to time.Time) ([]PairSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]PairSample, 0)
	for _, s := range m.samples {
		if !s.ObservedAt.Before(from) && s.ObservedAt.Before(to) {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (m *Memory) CountSamples(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.samples)), nil
}

func (m *Memory) InsertAlert(_ context.Context, alert Alert) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := alert.Clone()
	stored.ID = uint64(len(m.alerts)) + 1
	stored.Processed = false
	m.alerts = append(m.alerts, stored)
	return stored.Clone(), nil
}

func (m *Memory) GetAlert(_ context.Context, id uint64) (Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id == 0 || id > uint64(len(m.alerts)) {
		return Alert{}, ErrNotFound
	}
	return m.alerts[id-1].Clone(), nil
}

func (m *Memory) LastAlert(_ context.Context) (Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.alerts) == 0 {
		return Alert{}, ErrNotFound
	}
	return m.alerts[len(m.alerts)-1].Clone(), nil
}

func (m *Memory) TotalAlerts(_ context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.alerts)), nil
}

func (m *Memory) MarkProcessed(_ context.Context, id uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id == 0 || id > uint64(len(m.alerts)) {
		return false, ErrNotFound
	}
	if m.alerts[id-1].Processed {
		return false, nil
	}
	m.alerts[id-1].Processed = true
	return true, nil
}

func (m *Memory) ListRecentAlerts(_ context.Context, limit int) ([]Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.alerts)
	if limit < 0 {
		limit = 0
	}
	if limit > n {
		limit = n
	}
	out := make([]Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, m.alerts[i].Clone())
	}
	return out, nil
}

var _ PairSampleStore = (*Memory)(nil)
var _ AlertStore = (*Memory)(nil)

var _ PairSampleStore = (*Store)(nil)
var _ AlertStore = (*Store)(nil)
var _ AdvisoryLocker = (*Store)(nil)
