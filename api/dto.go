/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Amounts are always
  strings, never JSON numbers, so clients do not round through float64.
  Account amounts carry four fractional digits; entry amounts are the
  stored value unrounded.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Accounts:  AccountDTO (same shape as the jsonl report)
  Entries:   EntryDTO
  Replay:    ReplayResponse
  Scenarios: ScenarioDTO, LoadScenarioRequest

SEE ALSO:
  - handlers.go: Uses these types
  - report/report.go: Record, the shared account shape
*/
package api

import (
	"github.com/warp/payments-engine/ledger"
	"github.com/warp/payments-engine/report"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// AccountDTO represents one reconstructed account.
type AccountDTO = report.Record

// EntryDTO represents a stored deposit or withdrawal.
type EntryDTO struct {
	Ordinal     int64  `json:"ordinal"`
	Tx          uint32 `json:"tx"`
	Amount      string `json:"amount"`
	Disputed    bool   `json:"disputed"`
	ChargedBack bool   `json:"charged_back"`
}

// ReplayResponse summarises a replayed batch.
type ReplayResponse struct {
	Events   int            `json:"events"`
	ByKind   map[string]int `json:"by_kind"`
	Accounts []AccountDTO   `json:"accounts"`
}

// ScenarioDTO represents a built-in event log.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to replay.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toAccountDTOs(accounts []ledger.Account) []AccountDTO {
	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = report.NewRecord(a)
	}
	return dtos
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		Ordinal:     e.Ordinal,
		Tx:          uint32(e.Tx),
		Amount:      e.Amount.String(),
		Disputed:    e.Disputed,
		ChargedBack: e.ChargedBack,
	}
}

func toReplayResponse(stats ledger.IngestStats, accounts []ledger.Account) ReplayResponse {
	byKind := make(map[string]int, len(stats.ByKind))
	for k, n := range stats.ByKind {
		byKind[string(k)] = n
	}
	return ReplayResponse{
		Events:   stats.Events,
		ByKind:   byKind,
		Accounts: toAccountDTOs(accounts),
	}
}
