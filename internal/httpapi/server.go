// Package httpapi exposes the alert ledger's read/write boundary over
// HTTP so remote trigger sources and operators can reach it.
package httpapi

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/ledger"
	"pair-growth-alerts/internal/storage"
	"pair-growth-alerts/internal/version"
)

const defaultListLimit = 20

// Server serves the ledger JSON API.
type Server struct {
	ledger  *ledger.Ledger
	logger  zerolog.Logger
	origins []string
}

// NewServer wires the ledger behind the HTTP surface.
func NewServer(ldg *ledger.Ledger, origins []string, logger zerolog.Logger) *Server {
	return &Server{
		ledger:  ldg,
		logger:  logger.With().Str("component", "httpapi").Logger(),
		origins: origins,
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsHandler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version.Version,
		})
	})

	r.Post("/api/alerts", s.handleIngest)
	r.Get("/api/alerts", s.handleList)
	r.Get("/api/alerts/count", s.handleCount)
	r.Get("/api/alerts/last", s.handleLast)
	r.Get("/api/alerts/{id}", s.handleGet)
	r.Post("/api/alerts/{id}/ack", s.handleAcknowledge)

	return r
}

func (s *Server) corsHandler() func(http.Handler) http.Handler {
	if len(s.origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
}

type alertJSON struct {
	ID          uint64 `json:"id"`
	PairCount   string `json:"pair_count"`
	Delta       string `json:"delta"`
	SampleBlock string `json:"sample_block"`
	Timestamp   uint64 `json:"timestamp"`
	TriggeredBy string `json:"triggered_by"`
	Processed   bool   `json:"processed"`
}

func toAlertJSON(a storage.Alert) alertJSON {
	return alertJSON{
		ID:          a.ID,
		PairCount:   a.PairCount.String(),
		Delta:       a.Delta.String(),
		SampleBlock: a.SampleBlock.String(),
		Timestamp:   a.Timestamp,
		TriggeredBy: a.TriggeredBy.Hex(),
		Processed:   a.Processed,
	}
}

type ingestPayload struct {
	PairCount   string `json:"pair_count"`
	Delta       string `json:"delta"`
	SampleBlock string `json:"sample_block"`
	Caller      string `json:"caller"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var p ingestPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}

	pairCount, ok := parseU256(p.PairCount)
	if !ok {
		http.Error(w, "pair_count must be an unsigned 256-bit integer", http.StatusBadRequest)
		return
	}
	delta, ok := parseU256(p.Delta)
	if !ok {
		http.Error(w, "delta must be an unsigned 256-bit integer", http.StatusBadRequest)
		return
	}
	sampleBlock, ok := parseU256(p.SampleBlock)
	if !ok {
		http.Error(w, "sample_block must be an unsigned 256-bit integer", http.StatusBadRequest)
		return
	}
	caller, ok := parseCaller(p.Caller)
	if !ok {
		http.Error(w, "caller must be a hex address", http.StatusBadRequest)
		return
	}

	id, err := s.ledger.Ingest(r.Context(), pairCount, delta, sampleBlock, caller)
	if err != nil {
		s.logger.Error().Err(err).Msg("ingest failed")
		http.Error(w, "ingest failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]uint64{"id": id})
}

type ackPayload struct {
	Caller string `json:"caller"`
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad alert id", http.StatusBadRequest)
		return
	}

	var p ackPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "bad payload", http.StatusBadRequest)
		return
	}
	caller, ok := parseCaller(p.Caller)
	if !ok {
		http.Error(w, "caller must be a hex address", http.StatusBadRequest)
		return
	}

	switch err := s.ledger.Acknowledge(r.Context(), id, caller); {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, ledger.ErrUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, ledger.ErrNotFound):
		http.Error(w, "alert not found", http.StatusNotFound)
	case errors.Is(err, ledger.ErrAlreadyProcessed):
		http.Error(w, "alert already processed", http.StatusConflict)
	default:
		s.logger.Error().Err(err).Uint64("alert_id", id).Msg("acknowledge failed")
		http.Error(w, "acknowledge failed", http.StatusInternalServerError)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "bad alert id", http.StatusBadRequest)
		return
	}

	alert, err := s.ledger.GetAlert(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		s.logger.Error().Err(err).Uint64("alert_id", id).Msg("get alert failed")
		http.Error(w, "get alert failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, toAlertJSON(alert))
}

func (s *Server) handleLast(w http.ResponseWriter, _ *http.Request) {
	pairCount, ts, by := s.ledger.LastAlert()
	writeJSON(w, http.StatusOK, map[string]any{
		"pair_count":   pairCount.String(),
		"timestamp":    ts,
		"triggered_by": by.Hex(),
	})
}

func (s *Server) handleCount(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]uint64{"total": s.ledger.TotalAlerts()})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	alerts, err := s.ledger.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("list alerts failed")
		http.Error(w, "list alerts failed", http.StatusInternalServerError)
		return
	}

	out := make([]alertJSON, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, toAlertJSON(a))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseU256(raw string) (*big.Int, bool) {
	if raw == "" {
		return new(big.Int), true
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, false
	}
	return v, true
}

func parseCaller(raw string) (common.Address, bool) {
	if raw == "" {
		return common.Address{}, true
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
