package alerting

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/ledger"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func testRecordedEvent() ledger.RecordedEvent {
	return ledger.RecordedEvent{
		PairCount:   big.NewInt(1234),
		Timestamp:   1_700_000_000,
		TriggeredBy: common.HexToAddress("0x00000000000000000000000000000000000000B2"),
	}
}

func testCategoryEvent() ledger.CategoryEvent {
	return ledger.CategoryEvent{
		PairCount: big.NewInt(1234),
		Category:  ledger.AlertCategory,
		Timestamp: 1_700_000_000,
	}
}

func TestTelegramEmitterSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "sendMessage") {
			t.Fatalf("path should contain sendMessage, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	emitter := NewTelegramEmitter("token", "chat", srv.URL, time.Second, testLogger())

	if err := emitter.AlertRecorded(context.Background(), testRecordedEvent()); err != nil {
		t.Fatalf("AlertRecorded should succeed: %v", err)
	}
	if received["chat_id"] != "chat" {
		t.Fatalf("wrong chat_id: %#v", received)
	}
	if !strings.Contains(received["text"], "1234") {
		t.Fatalf("message should carry the pair count: %q", received["text"])
	}

	if err := emitter.CategoryFlagged(context.Background(), testCategoryEvent()); err != nil {
		t.Fatalf("CategoryFlagged should succeed: %v", err)
	}
	if !strings.Contains(received["text"], ledger.AlertCategory) {
		t.Fatalf("message should carry the category: %q", received["text"])
	}
}

func TestTelegramEmitterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false})
	}))
	defer srv.Close()

	emitter := NewTelegramEmitter("token", "chat", srv.URL, time.Second, testLogger())

	if err := emitter.AlertRecorded(context.Background(), testRecordedEvent()); err == nil {
		t.Fatal("ok=false should be an error")
	}
	if err := emitter.CategoryFlagged(context.Background(), testCategoryEvent()); err == nil {
		t.Fatal("ok=false should be an error")
	}
}

type stubEmitter struct {
	recorded int
	category int
	err      error
}

func (s *stubEmitter) AlertRecorded(context.Context, ledger.RecordedEvent) error {
	s.recorded++
	return s.err
}

func (s *stubEmitter) CategoryFlagged(context.Context, ledger.CategoryEvent) error {
	s.category++
	return s.err
}

func TestMultiDeliversToAllEmitters(t *testing.T) {
	failing := &stubEmitter{err: errors.New("down")}
	healthy := &stubEmitter{}
	multi := NewMulti(failing, healthy)

	err := multi.AlertRecorded(context.Background(), testRecordedEvent())
	if err == nil || err.Error() != "down" {
		t.Fatalf("expected first error, got %v", err)
	}
	if failing.recorded != 1 || healthy.recorded != 1 {
		t.Fatalf("both emitters should be attempted: %d/%d", failing.recorded, healthy.recorded)
	}

	if err := multi.CategoryFlagged(context.Background(), testCategoryEvent()); err == nil {
		t.Fatal("expected error from failing emitter")
	}
	if healthy.category != 1 {
		t.Fatalf("healthy emitter skipped: %d", healthy.category)
	}
}

func TestZerologEmitterNeverFails(t *testing.T) {
	emitter := NewZerologEmitter(testLogger())
	if err := emitter.AlertRecorded(context.Background(), testRecordedEvent()); err != nil {
		t.Fatalf("log emitter should not fail: %v", err)
	}
	if err := emitter.CategoryFlagged(context.Background(), testCategoryEvent()); err != nil {
		t.Fatalf("log emitter should not fail: %v", err)
	}
}
