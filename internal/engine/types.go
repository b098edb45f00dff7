package engine

import "time"

// StreamState is the on-ledger accounting snapshot of a single payment
// stream, as mirrored from the contract. Amounts that may exceed 64 bits
// travel as base-10 strings; the engine never mutates the state it is given.
type StreamState struct {
	StreamID        int64  `json:"stream_id"`
	RatePerSecond   string `json:"rate_per_second"`
	DepositedAmount string `json:"deposited_amount"`
	WithdrawnAmount string `json:"withdrawn_amount"`
	LastUpdateTime  int64  `json:"last_update_time"` // unix seconds of last on-chain change
	IsActive        bool   `json:"is_active"`

	// UpdatedAt is the persistence layer's last-write timestamp. When set,
	// it stands in for the numeric fields as a state fingerprint.
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// ClaimableResult is the outcome of a claimable-amount calculation.
type ClaimableResult struct {
	StreamID        int64  `json:"stream_id"`
	ClaimableAmount string `json:"claimable_amount"`
	Actionable      bool   `json:"actionable"`
	CalculatedAt    int64  `json:"calculated_at"` // unix seconds the result is valid for
	Cached          bool   `json:"cached"`        // set by the calculator, never stored
}
