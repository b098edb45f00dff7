package ingestion

import (
	"encoding/json"
	"fmt"

	"StreamLedger/internal/event"
	i128 "StreamLedger/internal/math"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. Amount strings are validated and normalized through the
// i128 parser before anything reaches the stream mirror.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "StreamCreated":
		return parseStreamCreated(raw.Data)
	case "StreamToppedUp":
		return parseStreamToppedUp(raw.Data)
	case "TokensWithdrawn":
		return parseTokensWithdrawn(raw.Data)
	case "StreamCancelled":
		return parseStreamCancelled(raw.Data)
	case "FeeCollected":
		return parseFeeCollected(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the payloads published by the chain indexer.
// Field names use snake_case to match the contract's event schema; amounts
// that may exceed 64 bits are decimal strings.

type sourceJSON struct {
	TxHash  string `json:"tx_hash"`
	OpIndex int32  `json:"op_index"`
	Ledger  int64  `json:"ledger"`
}

func (s sourceJSON) toSource() (event.Source, error) {
	if s.TxHash == "" {
		return event.Source{}, fmt.Errorf("missing tx_hash")
	}
	return event.Source{TxHash: s.TxHash, OpIndex: s.OpIndex, Ledger: s.Ledger}, nil
}

// normalizeAmount validates a decimal i128 string and returns its canonical
// form (no leading zeros or plus sign), so fingerprints stay stable across
// producers.
func normalizeAmount(field, s string) (string, error) {
	v, err := i128.ParseI128(field, s)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}

type streamCreatedJSON struct {
	StreamID        int64      `json:"stream_id"`
	Sender          string     `json:"sender"`
	Recipient       string     `json:"recipient"`
	TokenAddress    string     `json:"token_address"`
	RatePerSecond   string     `json:"rate_per_second"`
	DepositedAmount string     `json:"deposited_amount"`
	StartTime       int64      `json:"start_time"`
	Source          sourceJSON `json:"source"`
}

func parseStreamCreated(data []byte) (*event.StreamCreated, error) {
	var j streamCreatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StreamCreated: %w", err)
	}

	src, err := j.Source.toSource()
	if err != nil {
		return nil, fmt.Errorf("parse StreamCreated: %w", err)
	}

	rate, err := normalizeAmount("rate_per_second", j.RatePerSecond)
	if err != nil {
		return nil, err
	}
	deposited, err := normalizeAmount("deposited_amount", j.DepositedAmount)
	if err != nil {
		return nil, err
	}

	return &event.StreamCreated{
		ID:              j.StreamID,
		Sender:          j.Sender,
		Recipient:       j.Recipient,
		TokenAddress:    j.TokenAddress,
		RatePerSecond:   rate,
		DepositedAmount: deposited,
		StartTime:       j.StartTime,
		Source:          src,
	}, nil
}

type streamToppedUpJSON struct {
	StreamID           int64      `json:"stream_id"`
	Sender             string     `json:"sender"`
	Amount             string     `json:"amount"`
	NewDepositedAmount string     `json:"new_deposited_amount"`
	Timestamp          int64      `json:"timestamp"`
	Source             sourceJSON `json:"source"`
}

func parseStreamToppedUp(data []byte) (*event.StreamToppedUp, error) {
	var j streamToppedUpJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StreamToppedUp: %w", err)
	}

	src, err := j.Source.toSource()
	if err != nil {
		return nil, fmt.Errorf("parse StreamToppedUp: %w", err)
	}

	amount, err := normalizeAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	newDeposited, err := normalizeAmount("new_deposited_amount", j.NewDepositedAmount)
	if err != nil {
		return nil, err
	}

	return &event.StreamToppedUp{
		ID:                 j.StreamID,
		Sender:             j.Sender,
		Amount:             amount,
		NewDepositedAmount: newDeposited,
		Timestamp:          j.Timestamp,
		Source:             src,
	}, nil
}

type tokensWithdrawnJSON struct {
	StreamID  int64      `json:"stream_id"`
	Recipient string     `json:"recipient"`
	Amount    string     `json:"amount"`
	Timestamp int64      `json:"timestamp"`
	Source    sourceJSON `json:"source"`
}

func parseTokensWithdrawn(data []byte) (*event.TokensWithdrawn, error) {
	var j tokensWithdrawnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TokensWithdrawn: %w", err)
	}

	src, err := j.Source.toSource()
	if err != nil {
		return nil, fmt.Errorf("parse TokensWithdrawn: %w", err)
	}

	amount, err := normalizeAmount("amount", j.Amount)
	if err != nil {
		return nil, err
	}

	return &event.TokensWithdrawn{
		ID:        j.StreamID,
		Recipient: j.Recipient,
		Amount:    amount,
		Timestamp: j.Timestamp,
		Source:    src,
	}, nil
}

type streamCancelledJSON struct {
	StreamID        int64      `json:"stream_id"`
	Sender          string     `json:"sender"`
	Recipient       string     `json:"recipient"`
	AmountWithdrawn string     `json:"amount_withdrawn"`
	RefundedAmount  string     `json:"refunded_amount"`
	Timestamp       int64      `json:"timestamp"`
	Source          sourceJSON `json:"source"`
}

func parseStreamCancelled(data []byte) (*event.StreamCancelled, error) {
	var j streamCancelledJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StreamCancelled: %w", err)
	}

	src, err := j.Source.toSource()
	if err != nil {
		return nil, fmt.Errorf("parse StreamCancelled: %w", err)
	}

	withdrawn, err := normalizeAmount("amount_withdrawn", j.AmountWithdrawn)
	if err != nil {
		return nil, err
	}
	refunded, err := normalizeAmount("refunded_amount", j.RefundedAmount)
	if err != nil {
		return nil, err
	}

	return &event.StreamCancelled{
		ID:              j.StreamID,
		Sender:          j.Sender,
		Recipient:       j.Recipient,
		AmountWithdrawn: withdrawn,
		RefundedAmount:  refunded,
		Timestamp:       j.Timestamp,
		Source:          src,
	}, nil
}

type feeCollectedJSON struct {
	StreamID  int64      `json:"stream_id"`
	Treasury  string     `json:"treasury"`
	FeeAmount string     `json:"fee_amount"`
	Token     string     `json:"token"`
	Source    sourceJSON `json:"source"`
}

func parseFeeCollected(data []byte) (*event.FeeCollected, error) {
	var j feeCollectedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse FeeCollected: %w", err)
	}

	src, err := j.Source.toSource()
	if err != nil {
		return nil, fmt.Errorf("parse FeeCollected: %w", err)
	}

	fee, err := normalizeAmount("fee_amount", j.FeeAmount)
	if err != nil {
		return nil, err
	}

	return &event.FeeCollected{
		ID:        j.StreamID,
		Treasury:  j.Treasury,
		FeeAmount: fee,
		Token:     j.Token,
		Source:    src,
	}, nil
}
