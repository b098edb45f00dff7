// internal/state/stream.go
package state

import (
	"fmt"
	"time"

	"StreamLedger/internal/engine"
	"StreamLedger/internal/event"
	i128 "StreamLedger/internal/math"
)

// StreamRecord is the mirrored copy of the contract's Stream struct,
// plus the persistence layer's last-write timestamp.
type StreamRecord struct {
	StreamID        int64
	Sender          string
	Recipient       string
	TokenAddress    string
	RatePerSecond   string // base-10 i128
	DepositedAmount string // base-10 i128
	WithdrawnAmount string // base-10 i128
	StartTime       int64  // unix seconds
	LastUpdateTime  int64  // unix seconds of last on-chain change
	IsActive        bool
	UpdatedAt       time.Time // zero until loaded from the store
}

// NewStreamRecord builds a fresh record from a creation event.
func NewStreamRecord(evt *event.StreamCreated) *StreamRecord {
	return &StreamRecord{
		StreamID:        evt.ID,
		Sender:          evt.Sender,
		Recipient:       evt.Recipient,
		TokenAddress:    evt.TokenAddress,
		RatePerSecond:   evt.RatePerSecond,
		DepositedAmount: evt.DepositedAmount,
		WithdrawnAmount: "0",
		StartTime:       evt.StartTime,
		LastUpdateTime:  evt.StartTime,
		IsActive:        true,
	}
}

// ApplyTopUp replays the contract's top_up_stream state update:
// deposited += net amount, last_update_time advances.
func (r *StreamRecord) ApplyTopUp(evt *event.StreamToppedUp) error {
	deposited, err := i128.ParseI128("deposited_amount", r.DepositedAmount)
	if err != nil {
		return err
	}
	amount, err := i128.ParseI128("amount", evt.Amount)
	if err != nil {
		return err
	}

	r.DepositedAmount = i128.SaturatingAdd(deposited, amount).String()
	r.LastUpdateTime = evt.Timestamp
	return nil
}

// ApplyWithdrawal replays the contract's withdraw state update:
// withdrawn += amount, last_update_time advances, and the stream
// deactivates once fully drained.
func (r *StreamRecord) ApplyWithdrawal(evt *event.TokensWithdrawn) error {
	withdrawn, err := i128.ParseI128("withdrawn_amount", r.WithdrawnAmount)
	if err != nil {
		return err
	}
	amount, err := i128.ParseI128("amount", evt.Amount)
	if err != nil {
		return err
	}
	deposited, err := i128.ParseI128("deposited_amount", r.DepositedAmount)
	if err != nil {
		return err
	}

	total := i128.SaturatingAdd(withdrawn, amount)
	r.WithdrawnAmount = total.String()
	r.LastUpdateTime = evt.Timestamp
	if total.Cmp(deposited) >= 0 {
		r.IsActive = false
	}
	return nil
}

// ApplyCancellation replays the contract's cancel_stream state update.
// The event carries the final withdrawn total after the recipient was
// settled; the stream is permanently inactive afterwards.
func (r *StreamRecord) ApplyCancellation(evt *event.StreamCancelled) error {
	finalWithdrawn, err := i128.ParseI128("amount_withdrawn", evt.AmountWithdrawn)
	if err != nil {
		return err
	}

	r.WithdrawnAmount = finalWithdrawn.String()
	r.LastUpdateTime = evt.Timestamp
	r.IsActive = false
	return nil
}

// Apply dispatches a contract event onto the record.
func (r *StreamRecord) Apply(evt event.Event) error {
	switch e := evt.(type) {
	case *event.StreamToppedUp:
		return r.ApplyTopUp(e)
	case *event.TokensWithdrawn:
		return r.ApplyWithdrawal(e)
	case *event.StreamCancelled:
		return r.ApplyCancellation(e)
	case *event.FeeCollected:
		return nil // audit-only, no accounting change
	default:
		return fmt.Errorf("event %s cannot be applied to an existing stream", evt.EventType())
	}
}

// ToStreamState converts the record into the calculation engine's input.
func (r *StreamRecord) ToStreamState() engine.StreamState {
	state := engine.StreamState{
		StreamID:        r.StreamID,
		RatePerSecond:   r.RatePerSecond,
		DepositedAmount: r.DepositedAmount,
		WithdrawnAmount: r.WithdrawnAmount,
		LastUpdateTime:  r.LastUpdateTime,
		IsActive:        r.IsActive,
	}
	if !r.UpdatedAt.IsZero() {
		updatedAt := r.UpdatedAt
		state.UpdatedAt = &updatedAt
	}
	return state
}

// CanonicalBytes serializes the record deterministically for state hashing.
func (r *StreamRecord) CanonicalBytes() []byte {
	buf := make([]byte, 0, 128)

	buf = appendInt64LE(buf, r.StreamID)
	buf = appendString(buf, r.Sender)
	buf = appendString(buf, r.Recipient)
	buf = appendString(buf, r.TokenAddress)
	buf = appendString(buf, r.RatePerSecond)
	buf = appendString(buf, r.DepositedAmount)
	buf = appendString(buf, r.WithdrawnAmount)
	buf = appendInt64LE(buf, r.StartTime)
	buf = appendInt64LE(buf, r.LastUpdateTime)
	if r.IsActive {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	return buf
}

func appendInt64LE(buf []byte, v int64) []byte {
	u := uint64(v)
	return append(buf,
		byte(u), byte(u>>8), byte(u>>16), byte(u>>24),
		byte(u>>32), byte(u>>40), byte(u>>48), byte(u>>56),
	)
}

func appendString(buf []byte, s string) []byte {
	buf = append(buf, byte(len(s)))
	return append(buf, s...)
}
