/*
handlers.go - HTTP API handlers for the replay engine

PURPOSE:
  Exposes the ledger over REST. Handles HTTP request/response and JSON
  serialization, and delegates to ledger.Processor.

ENDPOINTS:
  Health:
    GET    /health                          Liveness

  Accounts:
    GET    /api/accounts                    All accounts, by client
    GET    /api/accounts/{client}           One account
    GET    /api/accounts/{client}/entries   The client's ledger entries
    GET    /api/report                      CSV report

  Replay:
    POST   /api/replay                      Reset, then replay a CSV body

  Scenarios:
    GET    /api/scenarios                   List built-in scenarios
    GET    /api/scenarios/current           Last loaded scenario
    POST   /api/scenarios/load              Reset, then replay a scenario

CONSISTENCY:
  A replay resets the store and ingests a whole batch. Handler serialises
  replays against reads with a RWMutex, so no read ever observes a
  half-ingested batch.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed CSV or event, invalid client id
  - 404: Client has no entries, unknown scenario
  - 500: Store failures

SECURITY NOTE:
  No authentication. POST /api/replay discards all data.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Built-in event logs
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/warp/payments-engine/csvio"
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/report"
)

// MaxReplayBytes caps a POST /api/replay body.
const MaxReplayBytes = 64 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Processor *ledger.Processor

	// mu is held for writing during a replay and for reading otherwise.
	mu sync.RWMutex

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the processor's store.
func NewHandler(p *ledger.Processor) *Handler {
	return &Handler{Processor: p}
}

// Replay resets the store and ingests events as one batch. Used by the
// replay and scenario endpoints, and by the server's -input flag.
func (h *Handler) Replay(ctx context.Context, events iter.Seq2[ledger.Event, error]) (ledger.IngestStats, []ledger.Account, error) {
	return h.replay(ctx, events, "")
}

// replay records scenario as current once the batch is ingested.
func (h *Handler) replay(ctx context.Context, events iter.Seq2[ledger.Event, error], scenario string) (ledger.IngestStats, []ledger.Account, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.currentScenario = ""
	if err := h.Processor.Reset(ctx); err != nil {
		return ledger.IngestStats{}, nil, err
	}
	stats, err := h.Processor.Ingest(ctx, events)
	if err != nil {
		// A failed batch must not stay half-applied.
		if rerr := h.Processor.Reset(context.WithoutCancel(ctx)); rerr != nil {
			return stats, nil, errors.Join(err, rerr)
		}
		return stats, nil, err
	}
	h.currentScenario = scenario
	accounts, err := h.Processor.Accounts(ctx)
	return stats, accounts, err
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns every account, sorted by client.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	accounts, err := h.Processor.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconstruct accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTOs(accounts))
}

// GetAccount returns one client's account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	client, ok := clientParam(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	entries, err := ledger.CollectEntries(r.Context(), h.Processor.Store, client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read entries", err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}

	acc, err := ledger.Fold(client, slicesAll(entries))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconstruct account", err)
		return
	}
	writeJSON(w, http.StatusOK, report.NewRecord(acc))
}

// GetEntries returns the client's ledger entries in replay order.
func (h *Handler) GetEntries(w http.ResponseWriter, r *http.Request) {
	client, ok := clientParam(w, r)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	entries, err := ledger.CollectEntries(r.Context(), h.Processor.Store, client)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read entries", err)
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "Client not found", nil)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReport streams the CSV report.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	accounts, err := h.Processor.Accounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reconstruct accounts", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	if err := report.EmitAll(r.Context(), report.NewCSV(w), accounts); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("write report")
	}
}

// =============================================================================
// REPLAY
// =============================================================================

// ReplayCSV resets the store and replays the CSV request body.
func (h *Handler) ReplayCSV(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, MaxReplayBytes)
	stats, accounts, err := h.Replay(r.Context(), csvio.NewReader(body).Events())
	if err != nil {
		writeReplayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplayResponse(stats, accounts))
}

func writeReplayError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large", err)
	case ledger.IsStoreFailure(err):
		writeError(w, http.StatusInternalServerError, "Replay failed", err)
	default:
		// Malformed events and CSV decode errors
		writeError(w, http.StatusBadRequest, "Invalid transaction log", err)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// clientParam parses {client}; on failure it writes a 400 and returns false.
func clientParam(w http.ResponseWriter, r *http.Request) (ledger.ClientID, bool) {
	raw := chi.URLParam(r, "client")
	id, err := strconv.ParseUint(raw, 10, 16)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid client id", err)
		return 0, false
	}
	return ledger.ClientID(id), true
}

func slicesAll(entries []ledger.Entry) iter.Seq2[ledger.Entry, error] {
	return func(yield func(ledger.Entry, error) bool) {
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
