// internal/event/stream.go
package event

import "fmt"

// Source identifies where in the ledger an event was emitted; it doubles
// as the idempotency key since a (tx, op) pair fires at most once.
type Source struct {
	TxHash  string
	OpIndex int32
	Ledger  int64
}

func (s Source) key() string {
	return fmt.Sprintf("%s:%d", s.TxHash, s.OpIndex)
}

// StreamCreated mirrors the contract's stream_created event.
type StreamCreated struct {
	ID              int64
	Sender          string
	Recipient       string
	TokenAddress    string
	RatePerSecond   string // base-10 i128
	DepositedAmount string // base-10 i128, net of protocol fee
	StartTime       int64  // unix seconds
	Source          Source
}

func (e *StreamCreated) IdempotencyKey() string { return e.Source.key() }
func (e *StreamCreated) EventType() EventType   { return EventTypeStreamCreated }
func (e *StreamCreated) StreamID() int64        { return e.ID }
func (e *StreamCreated) LedgerSequence() int64  { return e.Source.Ledger }

// StreamToppedUp mirrors the contract's stream_topped_up event.
// Amount is net of the protocol fee, as emitted.
type StreamToppedUp struct {
	ID                 int64
	Sender             string
	Amount             string // base-10 i128
	NewDepositedAmount string // base-10 i128, contract's post-top-up total
	Timestamp          int64  // unix seconds, becomes last_update_time
	Source             Source
}

func (e *StreamToppedUp) IdempotencyKey() string { return e.Source.key() }
func (e *StreamToppedUp) EventType() EventType   { return EventTypeStreamToppedUp }
func (e *StreamToppedUp) StreamID() int64        { return e.ID }
func (e *StreamToppedUp) LedgerSequence() int64  { return e.Source.Ledger }

// TokensWithdrawn mirrors the contract's tokens_withdrawn event.
type TokensWithdrawn struct {
	ID        int64
	Recipient string
	Amount    string // base-10 i128
	Timestamp int64  // unix seconds, becomes last_update_time
	Source    Source
}

func (e *TokensWithdrawn) IdempotencyKey() string { return e.Source.key() }
func (e *TokensWithdrawn) EventType() EventType   { return EventTypeTokensWithdrawn }
func (e *TokensWithdrawn) StreamID() int64        { return e.ID }
func (e *TokensWithdrawn) LedgerSequence() int64  { return e.Source.Ledger }

// StreamCancelled mirrors the contract's stream_cancelled event. The
// recipient was settled with everything accrued; the remainder was
// refunded to the sender and the stream is permanently inactive.
type StreamCancelled struct {
	ID              int64
	Sender          string
	Recipient       string
	AmountWithdrawn string // base-10 i128, final withdrawn total
	RefundedAmount  string // base-10 i128
	Timestamp       int64  // unix seconds, becomes last_update_time
	Source          Source
}

func (e *StreamCancelled) IdempotencyKey() string { return e.Source.key() }
func (e *StreamCancelled) EventType() EventType   { return EventTypeStreamCancelled }
func (e *StreamCancelled) StreamID() int64        { return e.ID }
func (e *StreamCancelled) LedgerSequence() int64  { return e.Source.Ledger }

// FeeCollected mirrors the contract's fee_collected event. It does not
// change stream accounting; it is kept in the event log for audit.
type FeeCollected struct {
	ID        int64
	Treasury  string
	FeeAmount string // base-10 i128
	Token     string
	Source    Source
}

func (e *FeeCollected) IdempotencyKey() string { return e.Source.key() }
func (e *FeeCollected) EventType() EventType   { return EventTypeFeeCollected }
func (e *FeeCollected) StreamID() int64        { return e.ID }
func (e *FeeCollected) LedgerSequence() int64  { return e.Source.Ledger }
