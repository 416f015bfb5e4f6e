package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"pair-growth-alerts/internal/ledger"
	"pair-growth-alerts/internal/storage"
)

var (
	apiOwner    = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	apiOperator = common.HexToAddress("0x00000000000000000000000000000000000000B2")
)

func newTestServer(t *testing.T) (*httptest.Server, *ledger.Ledger) {
	t.Helper()

	ldg, err := ledger.New(context.Background(), storage.NewMemory(), apiOwner, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new ledger: %v", err)
	}

	srv := httptest.NewServer(NewServer(ldg, nil, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv, ldg
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	if out != nil {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestIngestAndReadBack(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/alerts", map[string]string{
		"pair_count":   "1500",
		"delta":        "200",
		"sample_block": "19000000",
		"caller":       apiOperator.Hex(),
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ingest status = %d, want 201", resp.StatusCode)
	}
	var created map[string]uint64
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode ingest response: %v", err)
	}
	resp.Body.Close()
	if created["id"] != 1 {
		t.Fatalf("id = %d, want 1", created["id"])
	}

	var alert alertJSON
	if resp := getJSON(t, srv.URL+"/api/alerts/1", &alert); resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	if alert.PairCount != "1500" || alert.Delta != "200" || alert.SampleBlock != "19000000" || alert.Processed {
		t.Fatalf("alert mismatch: %+v", alert)
	}
	if common.HexToAddress(alert.TriggeredBy) != apiOperator {
		t.Fatalf("triggered_by = %s", alert.TriggeredBy)
	}

	var count map[string]uint64
	getJSON(t, srv.URL+"/api/alerts/count", &count)
	if count["total"] != 1 {
		t.Fatalf("total = %d, want 1", count["total"])
	}

	var last map[string]any
	getJSON(t, srv.URL+"/api/alerts/last", &last)
	if last["pair_count"] != "1500" {
		t.Fatalf("last pair_count = %v", last["pair_count"])
	}
}

func TestAcknowledgeStatusMapping(t *testing.T) {
	srv, ldg := newTestServer(t)

	if _, err := ldg.Ingest(context.Background(), nil, nil, nil, apiOperator); err != nil {
		t.Fatalf("seed alert: %v", err)
	}

	ackURL := func(id int) string { return fmt.Sprintf("%s/api/alerts/%d/ack", srv.URL, id) }

	resp := postJSON(t, ackURL(1), map[string]string{"caller": apiOwner.Hex()})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("owner ack status = %d, want 204", resp.StatusCode)
	}

	resp = postJSON(t, ackURL(1), map[string]string{"caller": apiOwner.Hex()})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-ack status = %d, want 409", resp.StatusCode)
	}

	resp = postJSON(t, ackURL(99), map[string]string{"caller": apiOwner.Hex()})
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing id status = %d, want 404", resp.StatusCode)
	}

	resp = postJSON(t, ackURL(1), map[string]string{"caller": apiOperator.Hex()})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("stranger ack status = %d, want 401", resp.StatusCode)
	}
}

func TestIngestRejectsBadPayload(t *testing.T) {
	srv, _ := newTestServer(t)

	overflow := new(big.Int).Lsh(big.NewInt(1), 256).String()
	bad := []map[string]string{
		{"pair_count": "not-a-number"},
		{"pair_count": "-5"},
		{"pair_count": overflow},
		{"pair_count": "10", "delta": overflow},
		{"pair_count": "10", "caller": "0xzz"},
	}
	for _, payload := range bad {
		resp := postJSON(t, srv.URL+"/api/alerts", payload)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("payload %v status = %d, want 400", payload, resp.StatusCode)
		}
	}

	maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1)).String()
	resp := postJSON(t, srv.URL+"/api/alerts", map[string]string{"pair_count": maxU256})
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("max uint256 status = %d, want 201", resp.StatusCode)
	}
}

func TestEmptyLedgerEndpoints(t *testing.T) {
	srv, _ := newTestServer(t)

	var last map[string]any
	if resp := getJSON(t, srv.URL+"/api/alerts/last", &last); resp.StatusCode != http.StatusOK {
		t.Fatalf("last status = %d, want 200", resp.StatusCode)
	}
	if last["pair_count"] != "0" {
		t.Fatalf("sentinel pair_count = %v", last["pair_count"])
	}
	if common.HexToAddress(last["triggered_by"].(string)) != (common.Address{}) {
		t.Fatalf("sentinel triggered_by = %v", last["triggered_by"])
	}

	resp := getJSON(t, srv.URL+"/api/alerts/1", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get on empty ledger status = %d, want 404", resp.StatusCode)
	}

	var health map[string]string
	if resp := getJSON(t, srv.URL+"/healthz", &health); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}
	if health["status"] != "ok" {
		t.Fatalf("healthz body = %v", health)
	}
}

func TestListReturnsNewestFirst(t *testing.T) {
	srv, ldg := newTestServer(t)

	for i := 1; i <= 3; i++ {
		if _, err := ldg.Ingest(context.Background(), nil, nil, nil, apiOperator); err != nil {
			t.Fatalf("seed alert %d: %v", i, err)
		}
	}

	var alerts []alertJSON
	if resp := getJSON(t, srv.URL+"/api/alerts?limit=2", &alerts); resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d, want 200", resp.StatusCode)
	}
	if len(alerts) != 2 || alerts[0].ID != 3 || alerts[1].ID != 2 {
		t.Fatalf("unexpected list: %+v", alerts)
	}

	resp := getJSON(t, srv.URL+"/api/alerts?limit=0", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("limit=0 status = %d, want 400", resp.StatusCode)
	}
}
