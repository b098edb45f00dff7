package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for contract event payloads.
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeStreamCreated
	EventTypeStreamToppedUp
	EventTypeTokensWithdrawn
	EventTypeStreamCancelled
	EventTypeFeeCollected
)

// Envelope wraps every contract event recorded in the local event log.
type Envelope struct {
	// Local identifier assigned at ingestion
	EventID uuid.UUID

	// Local monotonic apply sequence
	Sequence int64

	// Stable dedup key: tx hash + operation index
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Contract stream this event belongs to
	StreamID int64

	// Stellar ledger sequence the event was emitted in (source ordering)
	LedgerSequence int64

	// Ledger close time of the event (NOT wall-clock)
	Timestamp time.Time

	// JSON-encoded event payload as received
	Payload []byte

	// SHA-256 of the mirror state AFTER applying this event
	StateHash [32]byte

	// Previous envelope's state hash (chain integrity)
	PrevHash [32]byte
}

// Sealer finalizes an envelope's hash-chain fields once the post-apply
// record digest is known. Implemented by the ingestion chain hasher.
type Sealer interface {
	Seal(sequence int64, recordDigest []byte) (stateHash, prevHash [32]byte)
}

// Event is the interface all contract event payloads implement.
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// StreamID returns the contract stream identifier
	StreamID() int64

	// LedgerSequence returns the source ordering key
	LedgerSequence() int64
}

func (et EventType) String() string {
	switch et {
	case EventTypeStreamCreated:
		return "StreamCreated"
	case EventTypeStreamToppedUp:
		return "StreamToppedUp"
	case EventTypeTokensWithdrawn:
		return "TokensWithdrawn"
	case EventTypeStreamCancelled:
		return "StreamCancelled"
	case EventTypeFeeCollected:
		return "FeeCollected"
	default:
		return "Unknown"
	}
}
