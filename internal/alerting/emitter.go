package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/ledger"
)

// ZerologEmitter writes both ledger notifications as structured log
// records. It is always wired so every ingest leaves an audit trail even
// when no external channel is configured.
type ZerologEmitter struct {
	logger zerolog.Logger
}

// NewZerologEmitter builds the structured-log emitter.
func NewZerologEmitter(logger zerolog.Logger) *ZerologEmitter {
	return &ZerologEmitter{logger: logger.With().Str("component", "alert_log").Logger()}
}

// AlertRecorded logs the structured alert record.
func (e *ZerologEmitter) AlertRecorded(_ context.Context, ev ledger.RecordedEvent) error {
	e.logger.Warn().
		Str("pair_count", ev.PairCount.String()).
		Uint64("timestamp", ev.Timestamp).
		Str("triggered_by", ev.TriggeredBy.Hex()).
		Msg("pair growth alert recorded")
	return nil
}

// CategoryFlagged logs the categorical event.
func (e *ZerologEmitter) CategoryFlagged(_ context.Context, ev ledger.CategoryEvent) error {
	e.logger.Warn().
		Str("category", ev.Category).
		Str("pair_count", ev.PairCount.String()).
		Uint64("timestamp", ev.Timestamp).
		Msg("suspicious activity flagged")
	return nil
}

// TelegramEmitter pushes both notifications through the Telegram Bot API.
type TelegramEmitter struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramEmitter builds the Telegram emitter.
func NewTelegramEmitter(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramEmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramEmitter{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// AlertRecorded sends the detailed alert message.
func (e *TelegramEmitter) AlertRecorded(ctx context.Context, ev ledger.RecordedEvent) error {
	text := renderRecorded(ev)
	if err := e.send(ctx, text); err != nil {
		return err
	}
	e.logger.Info().Str("triggered_by", ev.TriggeredBy.Hex()).Msg("alert message sent")
	return nil
}

// CategoryFlagged sends the short categorical message.
func (e *TelegramEmitter) CategoryFlagged(ctx context.Context, ev ledger.CategoryEvent) error {
	text := renderCategory(ev)
	if err := e.send(ctx, text); err != nil {
		return err
	}
	e.logger.Info().Str("category", ev.Category).Msg("category message sent")
	return nil
}

func (e *TelegramEmitter) send(ctx context.Context, text string) error {
	payload := map[string]string{
		"chat_id": e.chatID,
		"text":    text,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", e.baseURL, e.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}
	return nil
}

func renderRecorded(ev ledger.RecordedEvent) string {
	builder := strings.Builder{}
	builder.WriteString("[PairWatcher Alert]\n")
	builder.WriteString(fmt.Sprintf("Pair count: %s\n", ev.PairCount.String()))
	builder.WriteString(fmt.Sprintf("Triggered by: %s\n", ev.TriggeredBy.Hex()))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", formatUnix(ev.Timestamp)))
	return builder.String()
}

func renderCategory(ev ledger.CategoryEvent) string {
	builder := strings.Builder{}
	builder.WriteString("[PairWatcher Alert]\n")
	builder.WriteString(fmt.Sprintf("Category: %s\n", ev.Category))
	builder.WriteString(fmt.Sprintf("Pair count: %s\n", ev.PairCount.String()))
	builder.WriteString(fmt.Sprintf("Time: %s UTC\n", formatUnix(ev.Timestamp)))
	return builder.String()
}

func formatUnix(ts uint64) string {
	return time.Unix(int64(ts), 0).UTC().Format(time.RFC3339)
}

// Multi fans both notifications out to several emitters. Every emitter is
// attempted; the first error is returned after the sweep.
type Multi struct {
	emitters []ledger.Emitter
}

// NewMulti builds a fan-out emitter.
func NewMulti(emitters ...ledger.Emitter) *Multi {
	return &Multi{emitters: emitters}
}

// AlertRecorded delivers the record to every emitter.
func (m *Multi) AlertRecorded(ctx context.Context, ev ledger.RecordedEvent) error {
	var first error
	for _, e := range m.emitters {
		if err := e.AlertRecorded(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// CategoryFlagged delivers the category event to every emitter.
func (m *Multi) CategoryFlagged(ctx context.Context, ev ledger.CategoryEvent) error {
	var first error
	for _, e := range m.emitters {
		if err := e.CategoryFlagged(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ ledger.Emitter = (*ZerologEmitter)(nil)
	_ ledger.Emitter = (*TelegramEmitter)(nil)
	_ ledger.Emitter = (*Multi)(nil)
)
