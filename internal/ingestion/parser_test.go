package ingestion

import (
	"encoding/json"
	"errors"
	"testing"

	"StreamLedger/internal/event"
	i128 "StreamLedger/internal/math"
)

func rawFromJSON(t *testing.T, eventType string, payload map[string]interface{}) RawEvent {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return RawEvent{
		Subject:   "soroban.streams.test",
		EventType: eventType,
		Data:      data,
	}
}

func validSource() map[string]interface{} {
	return map[string]interface{}{
		"tx_hash":  "abc123def456",
		"op_index": 0,
		"ledger":   55100200,
	}
}

func TestParseStreamCreated(t *testing.T) {
	raw := rawFromJSON(t, "StreamCreated", map[string]interface{}{
		"stream_id":        42,
		"sender":           "GSENDER",
		"recipient":        "GRECIPIENT",
		"token_address":    "CTOKEN",
		"rate_per_second":  "5",
		"deposited_amount": "1000000",
		"start_time":       1700000000,
		"source":           validSource(),
	})

	evt, err := ParseRawEvent(raw, "StreamCreated")
	if err != nil {
		t.Fatalf("ParseRawEvent: %v", err)
	}

	created, ok := evt.(*event.StreamCreated)
	if !ok {
		t.Fatalf("expected *event.StreamCreated, got %T", evt)
	}
	if created.ID != 42 {
		t.Errorf("stream id = %d, want 42", created.ID)
	}
	if created.RatePerSecond != "5" {
		t.Errorf("rate = %q, want 5", created.RatePerSecond)
	}
	if created.DepositedAmount != "1000000" {
		t.Errorf("deposited = %q, want 1000000", created.DepositedAmount)
	}
	if evt.EventType() != event.EventTypeStreamCreated {
		t.Errorf("event type = %v", evt.EventType())
	}
	if evt.LedgerSequence() != 55100200 {
		t.Errorf("ledger sequence = %d", evt.LedgerSequence())
	}
}

func TestParseNormalizesAmounts(t *testing.T) {
	raw := rawFromJSON(t, "StreamToppedUp", map[string]interface{}{
		"stream_id":            7,
		"sender":               "GSENDER",
		"amount":               "0000500",
		"new_deposited_amount": "+1500",
		"timestamp":            1700000100,
		"source":               validSource(),
	})

	evt, err := ParseRawEvent(raw, "StreamToppedUp")
	if err != nil {
		t.Fatalf("ParseRawEvent: %v", err)
	}

	topup := evt.(*event.StreamToppedUp)
	if topup.Amount != "500" {
		t.Errorf("amount = %q, want canonical 500", topup.Amount)
	}
	if topup.NewDepositedAmount != "1500" {
		t.Errorf("new deposited = %q, want canonical 1500", topup.NewDepositedAmount)
	}
}

func TestParseTokensWithdrawn(t *testing.T) {
	raw := rawFromJSON(t, "TokensWithdrawn", map[string]interface{}{
		"stream_id": 7,
		"recipient": "GRECIPIENT",
		"amount":    "250",
		"timestamp": 1700000200,
		"source":    validSource(),
	})

	evt, err := ParseRawEvent(raw, "TokensWithdrawn")
	if err != nil {
		t.Fatalf("ParseRawEvent: %v", err)
	}

	wd := evt.(*event.TokensWithdrawn)
	if wd.Amount != "250" {
		t.Errorf("amount = %q", wd.Amount)
	}
	if wd.IdempotencyKey() == "" {
		t.Error("expected non-empty idempotency key")
	}
}

func TestParseMalformedAmountFails(t *testing.T) {
	raw := rawFromJSON(t, "TokensWithdrawn", map[string]interface{}{
		"stream_id": 7,
		"recipient": "GRECIPIENT",
		"amount":    "12.5",
		"timestamp": 1700000200,
		"source":    validSource(),
	})

	_, err := ParseRawEvent(raw, "TokensWithdrawn")
	if err == nil {
		t.Fatal("expected error for non-integer amount")
	}

	var parseErr *i128.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *i128.ParseError, got %T: %v", err, err)
	}
	if parseErr.Field != "amount" {
		t.Errorf("field = %q, want amount", parseErr.Field)
	}
}

func TestParseMissingTxHashFails(t *testing.T) {
	raw := rawFromJSON(t, "StreamCancelled", map[string]interface{}{
		"stream_id":        7,
		"sender":           "GSENDER",
		"recipient":        "GRECIPIENT",
		"amount_withdrawn": "100",
		"refunded_amount":  "900",
		"timestamp":        1700000300,
		"source":           map[string]interface{}{"op_index": 1, "ledger": 55100300},
	})

	if _, err := ParseRawEvent(raw, "StreamCancelled"); err == nil {
		t.Fatal("expected error for missing tx_hash")
	}
}

func TestParseUnknownEventType(t *testing.T) {
	raw := rawFromJSON(t, "Bogus", map[string]interface{}{})
	if _, err := ParseRawEvent(raw, "Bogus"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON(t *testing.T) {
	raw := RawEvent{EventType: "StreamCreated", Data: []byte("{not json")}
	if _, err := ParseRawEvent(raw, "StreamCreated"); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
