package query

// StreamResponse represents a mirrored stream for API queries.
// i128 amounts are decimal strings; 64-bit-safe values are native numbers.
type StreamResponse struct {
	StreamID        int64  `json:"stream_id"`
	Sender          string `json:"sender"`
	Recipient       string `json:"recipient"`
	TokenAddress    string `json:"token_address"`
	RatePerSecond   string `json:"rate_per_second"`
	DepositedAmount string `json:"deposited_amount"`
	WithdrawnAmount string `json:"withdrawn_amount"`
	StartTime       int64  `json:"start_time"`
	LastUpdateTime  int64  `json:"last_update_time"`
	IsActive        bool   `json:"is_active"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// ClaimableResponse represents a claimable-amount calculation for API queries.
type ClaimableResponse struct {
	StreamID        int64  `json:"stream_id"`
	ClaimableAmount string `json:"claimable_amount"`
	Actionable      bool   `json:"actionable"`
	CalculatedAt    int64  `json:"calculated_at"`
	Cached          bool   `json:"cached"`
	AsOfSequence    int64  `json:"as_of_sequence"`
}

// IntegrityReport is the result of an event-log integrity check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
