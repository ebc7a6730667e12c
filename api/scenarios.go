/*
scenarios.go - Built-in event logs for demos and smoke tests

PURPOSE:
	Provides small transaction logs that exercise each replay rule. Loading
	one resets the store and replays it exactly like POST /api/replay.

AVAILABLE SCENARIOS:

	deposit-withdrawal:          Plain deposit then withdrawal
	dispute-deposit:             Disputed deposit moves to held
	dispute-rejected-withdrawal: Dispute on a withdrawal that never committed
	disputed-withdrawal:         Disputed withdrawal held, later one rejected
	chargeback:                  Chargeback locks and truncates the history
	chargeback-withdrawal:       Chargeback on a disputed withdrawal
	chargeback-undisputed:       Chargeback without dispute is ignored
	multi-client:                Several clients, cross-client references

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "chargeback"}

ADDING NEW SCENARIOS:
 1. Add an entry to 'scenarios' with its events
 2. That's it; the handlers look scenarios up by ID

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Replay
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/payments-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	events []ledger.Event
}

func amt(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func dep(client ledger.ClientID, tx ledger.TxID, a string) ledger.Event {
	return ledger.Event{Kind: ledger.KindDeposit, Client: client, Tx: tx, Amount: amt(a)}
}

func wdr(client ledger.ClientID, tx ledger.TxID, a string) ledger.Event {
	return ledger.Event{Kind: ledger.KindWithdrawal, Client: client, Tx: tx, Amount: amt(a)}
}

func ref(kind ledger.EventKind, client ledger.ClientID, tx ledger.TxID) ledger.Event {
	return ledger.Event{Kind: kind, Client: client, Tx: tx}
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "deposit-withdrawal",
			Name:        "Deposit and Withdrawal",
			Description: "100 in, 50 out: 50 available",
			Category:    "basic",
		},
		events: []ledger.Event{dep(1, 1, "100"), wdr(1, 2, "50")},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "dispute-deposit",
			Name:        "Disputed Deposit",
			Description: "A disputed deposit moves from available to held",
			Category:    "dispute",
		},
		events: []ledger.Event{dep(1, 1, "100"), ref(ledger.KindDispute, 1, 1)},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "dispute-rejected-withdrawal",
			Name:        "Dispute on Rejected Withdrawal",
			Description: "Disputing a withdrawal that never committed changes nothing",
			Category:    "dispute",
		},
		events: []ledger.Event{dep(1, 1, "100"), wdr(1, 2, "200"), ref(ledger.KindDispute, 1, 2)},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "disputed-withdrawal",
			Name:        "Disputed Withdrawal",
			Description: "A disputed withdrawal is held; a later overdraft is rejected",
			Category:    "dispute",
		},
		events: []ledger.Event{
			dep(1, 1, "100"),
			wdr(1, 2, "50"),
			ref(ledger.KindDispute, 1, 2),
			wdr(1, 3, "100"),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "chargeback",
			Name:        "Chargeback",
			Description: "A chargeback locks the account and drops everything after the reversed deposit",
			Category:    "chargeback",
		},
		events: []ledger.Event{
			dep(1, 1, "100"),
			dep(1, 2, "50"),
			ref(ledger.KindDispute, 1, 2),
			dep(1, 3, "30"),
			ref(ledger.KindChargeback, 1, 2),
			dep(1, 4, "25"),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "chargeback-withdrawal",
			Name:        "Chargeback on Withdrawal",
			Description: "Reversing a disputed withdrawal locks the account",
			Category:    "chargeback",
		},
		events: []ledger.Event{
			dep(1, 1, "10"),
			wdr(1, 2, "4"),
			ref(ledger.KindDispute, 1, 2),
			ref(ledger.KindChargeback, 1, 2),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "chargeback-undisputed",
			Name:        "Chargeback without Dispute",
			Description: "A chargeback on an undisputed transaction is ignored",
			Category:    "chargeback",
		},
		events: []ledger.Event{dep(1, 1, "10"), ref(ledger.KindChargeback, 1, 1)},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "multi-client",
			Name:        "Multiple Clients",
			Description: "Three clients; client 2 tries to dispute client 1's deposit",
			Category:    "basic",
		},
		events: []ledger.Event{
			dep(1, 1, "1.5"),
			dep(2, 2, "2"),
			dep(1, 3, "2"),
			wdr(1, 4, "1.5"),
			wdr(2, 5, "3"),
			ref(ledger.KindDispute, 2, 1),
			dep(3, 6, "0.00015"),
			ref(ledger.KindResolve, 3, 6),
		},
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	s, _ := findScenario(current)
	writeJSON(w, http.StatusOK, s.ScenarioDTO)
}

// LoadScenario resets the store and replays a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	stats, accounts, err := h.replay(r.Context(), ledger.Events(s.events...), s.ID)
	if err != nil {
		writeReplayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReplayResponse(stats, accounts))
}
