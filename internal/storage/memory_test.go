package storage

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestMemoryAlertIDsAreDense(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		stored, err := m.InsertAlert(ctx, Alert{
			PairCount:   big.NewInt(100 * i),
			Delta:       big.NewInt(i),
			SampleBlock: big.NewInt(1000 + i),
			Timestamp:   uint64(i),
			TriggeredBy: common.HexToAddress("0x01"),
		})
		if err != nil {
			t.Fatalf("insert alert %d: %v", i, err)
		}
		if stored.ID != uint64(i) {
			t.Fatalf("alert id = %d, want %d", stored.ID, i)
		}
	}

	total, err := m.TotalAlerts(ctx)
	if err != nil || total != 3 {
		t.Fatalf("total = %d err=%v, want 3", total, err)
	}

	last, err := m.LastAlert(ctx)
	if err != nil {
		t.Fatalf("last alert: %v", err)
	}
	if last.ID != 3 || last.PairCount.Int64() != 300 {
		t.Fatalf("last alert mismatch: %+v", last)
	}
}

func TestMemoryGetAlertNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.GetAlert(ctx, 0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("id 0 should be ErrNotFound, got %v", err)
	}
	if _, err := m.GetAlert(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store should be ErrNotFound, got %v", err)
	}
	if _, err := m.LastAlert(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty last should be ErrNotFound, got %v", err)
	}
}

func TestMemoryMarkProcessedOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.InsertAlert(ctx, Alert{PairCount: big.NewInt(1)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	changed, err := m.MarkProcessed(ctx, 1)
	if err != nil || !changed {
		t.Fatalf("first mark: changed=%v err=%v", changed, err)
	}

	changed, err = m.MarkProcessed(ctx, 1)
	if err != nil || changed {
		t.Fatalf("second mark should report unchanged, got changed=%v err=%v", changed, err)
	}

	if _, err := m.MarkProcessed(ctx, 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing id should be ErrNotFound, got %v", err)
	}

	alert, err := m.GetAlert(ctx, 1)
	if err != nil || !alert.Processed {
		t.Fatalf("alert should be processed: %+v err=%v", alert, err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.InsertAlert(ctx, Alert{PairCount: big.NewInt(100)}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := m.GetAlert(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	got.PairCount.SetInt64(999)

	again, err := m.GetAlert(ctx, 1)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if again.PairCount.Int64() != 100 {
		t.Fatalf("stored alert was mutated through a returned copy: %s", again.PairCount)
	}
}

func TestMemorySampleHistory(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := int64(0); i < 5; i++ {
		err := m.InsertSample(ctx, PairSample{
			Block:      big.NewInt(100 + i),
			PairCount:  big.NewInt(10 * i),
			Valid:      true,
			Source:     SourceLive,
			ObservedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert sample %d: %v", i, err)
		}
	}

	recent, err := m.ListRecentSamples(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Block.Int64() != 104 || recent[1].Block.Int64() != 103 {
		t.Fatalf("recent samples not newest-first: %+v", recent)
	}

	window, err := m.ListSamplesBetween(ctx, base.Add(time.Minute), base.Add(3*time.Minute))
	if err != nil {
		t.Fatalf("between: %v", err)
	}
	if len(window) != 2 {
		t.Fatalf("window size = %d, want 2 (half-open interval)", len(window))
	}

	count, err := m.CountSamples(ctx)
	if err != nil || count != 5 {
		t.Fatalf("count = %d err=%v, want 5", count, err)
	}
}
