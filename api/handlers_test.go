/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Replay of CSV bodies, including malformed input
- Account, entry and report endpoints
- Scenario loading
- Request ids
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/ledger/store"
	"github.com/warp/payments-engine/store/sqlstore"
)

func setupTestServer(t *testing.T) (*Handler, http.Handler) {
	s, err := sqlstore.Open(sqlstore.DriverSQLite3, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h := NewHandler(ledger.NewProcessor(s, 2))
	return h, NewRouter(h, zerolog.Nop())
}

func do(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const sampleLog = `type, client, tx, amount
deposit, 1, 1, 1.0
deposit, 2, 2, 2.0
deposit, 1, 3, 2.0
withdrawal, 1, 4, 1.5
withdrawal, 2, 5, 3.0
`

// =============================================================================
// REPLAY
// =============================================================================

func TestReplayCSV_Success(t *testing.T) {
	// GIVEN: The sample transaction log
	// WHEN: Posting it to /api/replay
	// THEN: Both accounts come back; client 2's overdraft is ignored
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/replay", sampleLog)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[ReplayResponse](t, rec)
	assert.Equal(t, 5, resp.Events)
	assert.Equal(t, 3, resp.ByKind["deposit"])
	assert.Equal(t, 2, resp.ByKind["withdrawal"])
	assert.Equal(t, []AccountDTO{
		{Client: 1, Available: "1.5000", Held: "0.0000", Total: "1.5000"},
		{Client: 2, Available: "2.0000", Held: "0.0000", Total: "2.0000"},
	}, resp.Accounts)
}

func TestReplayCSV_ReplacesPreviousBatch(t *testing.T) {
	_, router := setupTestServer(t)

	do(t, router, http.MethodPost, "/api/replay", sampleLog)
	rec := do(t, router, http.MethodPost, "/api/replay", "type,client,tx,amount\ndeposit,9,1,5\n")
	require.Equal(t, http.StatusOK, rec.Code)

	accounts := decode[[]AccountDTO](t, do(t, router, http.MethodGet, "/api/accounts", ""))
	require.Len(t, accounts, 1)
	assert.Equal(t, ledger.ClientID(9), accounts[0].Client)
}

func TestReplayCSV_MalformedEvent(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodPost, "/api/replay", "type,client,tx,amount\ndeposit,1,1,\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Invalid transaction log", resp.Error)
	assert.Contains(t, resp.Details, "line 2")
}

func TestReplayCSV_MalformedEventDiscardsBatch(t *testing.T) {
	// GIVEN: A previous batch, then a log whose third row has no amount
	// WHEN: Posting the bad log to /api/replay
	// THEN: The request fails and none of its earlier rows are visible
	_, router := setupTestServer(t)
	do(t, router, http.MethodPost, "/api/replay", sampleLog)

	rec := do(t, router, http.MethodPost, "/api/replay",
		"type,client,tx,amount\ndeposit,1,1,100\ndeposit,2,2,5\nwithdrawal,1,3,\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	report := do(t, router, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, report.Code)
	assert.Equal(t, "client,available,held,total,locked\n", report.Body.String())

	accounts := decode[[]AccountDTO](t, do(t, router, http.MethodGet, "/api/accounts", ""))
	assert.Empty(t, accounts)
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestGetAccount(t *testing.T) {
	_, router := setupTestServer(t)
	do(t, router, http.MethodPost, "/api/replay", sampleLog)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"existing client", "/api/accounts/1", http.StatusOK},
		{"unknown client", "/api/accounts/7", http.StatusNotFound},
		{"not a number", "/api/accounts/abc", http.StatusBadRequest},
		{"out of range", "/api/accounts/70000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}

	acc := decode[AccountDTO](t, do(t, router, http.MethodGet, "/api/accounts/1", ""))
	assert.Equal(t, AccountDTO{Client: 1, Available: "1.5000", Held: "0.0000", Total: "1.5000"}, acc)
}

func TestGetEntries(t *testing.T) {
	_, router := setupTestServer(t)
	do(t, router, http.MethodPost, "/api/replay", sampleLog+"dispute, 1, 3,\n")

	rec := do(t, router, http.MethodGet, "/api/accounts/1/entries", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := decode[[]EntryDTO](t, rec)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint32{1, 3, 4}, []uint32{entries[0].Tx, entries[1].Tx, entries[2].Tx})
	assert.Equal(t, "-1.5", entries[2].Amount)
	assert.True(t, entries[1].Disputed)
	assert.Less(t, entries[0].Ordinal, entries[1].Ordinal)

	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/api/accounts/5/entries", "").Code)
}

func TestGetEntries_KeepsFullPrecision(t *testing.T) {
	// GIVEN: A deposit with more than four fractional digits
	// WHEN: Reading the raw entries
	// THEN: The stored amount is shown unrounded
	_, router := setupTestServer(t)
	do(t, router, http.MethodPost, "/api/replay", "type,client,tx,amount\ndeposit,1,1,0.00015\n")

	entries := decode[[]EntryDTO](t, do(t, router, http.MethodGet, "/api/accounts/1/entries", ""))
	require.Len(t, entries, 1)
	assert.Equal(t, "0.00015", entries[0].Amount)

	acc := decode[AccountDTO](t, do(t, router, http.MethodGet, "/api/accounts/1", ""))
	assert.Equal(t, "0.0002", acc.Available)
}

func TestGetReport(t *testing.T) {
	_, router := setupTestServer(t)
	do(t, router, http.MethodPost, "/api/replay", sampleLog)

	rec := do(t, router, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t,
		"client,available,held,total,locked\n"+
			"1,1.5000,0.0000,1.5000,false\n"+
			"2,2.0000,0.0000,2.0000,false\n",
		rec.Body.String())
}

func TestListAccounts_Empty(t *testing.T) {
	_, router := setupTestServer(t)

	rec := do(t, router, http.MethodGet, "/api/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

// =============================================================================
// MISC
// =============================================================================

func TestHealth(t *testing.T) {
	_, router := setupTestServer(t)
	rec := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRequestLogger_RequestID(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(ledger.NewProcessor(store.NewMemory(), 1))
	router := NewRouter(h, zerolog.New(&buf))

	// Generated when absent
	rec := do(t, router, http.MethodGet, "/health", "")
	generated := rec.Header().Get(RequestIDHeader)
	assert.Len(t, generated, 36)
	assert.Contains(t, buf.String(), generated)

	// Echoed when present
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"request_id":"req-42"`)
}
