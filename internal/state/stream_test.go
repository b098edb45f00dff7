package state_test

import (
	"testing"

	"StreamLedger/internal/event"
	"StreamLedger/internal/state"
)

func createdEvent() *event.StreamCreated {
	return &event.StreamCreated{
		ID:              1,
		Sender:          "GSENDER",
		Recipient:       "GRECIPIENT",
		TokenAddress:    "CTOKEN",
		RatePerSecond:   "10",
		DepositedAmount: "1000",
		StartTime:       100,
		Source:          event.Source{TxHash: "aa", OpIndex: 0, Ledger: 5},
	}
}

func TestNewStreamRecord(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	if r.WithdrawnAmount != "0" {
		t.Errorf("withdrawn: got %s, want 0", r.WithdrawnAmount)
	}
	if !r.IsActive {
		t.Error("new stream must be active")
	}
	if r.LastUpdateTime != 100 {
		t.Errorf("last_update_time: got %d, want start_time 100", r.LastUpdateTime)
	}
}

func TestApplyTopUp(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	err := r.ApplyTopUp(&event.StreamToppedUp{
		ID:        1,
		Amount:    "500",
		Timestamp: 150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.DepositedAmount != "1500" {
		t.Errorf("deposited: got %s, want 1500", r.DepositedAmount)
	}
	if r.LastUpdateTime != 150 {
		t.Errorf("last_update_time: got %d, want 150", r.LastUpdateTime)
	}
	if !r.IsActive {
		t.Error("top-up must not deactivate")
	}
}

func TestApplyWithdrawal_Partial(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	err := r.ApplyWithdrawal(&event.TokensWithdrawn{
		ID:        1,
		Amount:    "400",
		Timestamp: 140,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.WithdrawnAmount != "400" {
		t.Errorf("withdrawn: got %s, want 400", r.WithdrawnAmount)
	}
	if !r.IsActive {
		t.Error("partially drained stream must stay active")
	}
}

func TestApplyWithdrawal_DrainDeactivates(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	err := r.ApplyWithdrawal(&event.TokensWithdrawn{
		ID:        1,
		Amount:    "1000",
		Timestamp: 200,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.IsActive {
		t.Error("fully drained stream must deactivate")
	}
	if r.LastUpdateTime != 200 {
		t.Errorf("last_update_time: got %d, want 200", r.LastUpdateTime)
	}
}

func TestApplyCancellation(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	err := r.ApplyCancellation(&event.StreamCancelled{
		ID:              1,
		AmountWithdrawn: "350",
		RefundedAmount:  "650",
		Timestamp:       180,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if r.IsActive {
		t.Error("cancelled stream must be inactive")
	}
	if r.WithdrawnAmount != "350" {
		t.Errorf("withdrawn: got %s, want final total 350", r.WithdrawnAmount)
	}
}

func TestApply_Dispatch(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	if err := r.Apply(&event.FeeCollected{ID: 1, FeeAmount: "10"}); err != nil {
		t.Errorf("fee events are audit-only: %v", err)
	}

	if err := r.Apply(createdEvent()); err == nil {
		t.Error("re-applying a creation event must fail")
	}
}

func TestApply_MalformedAmount(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())

	err := r.ApplyTopUp(&event.StreamToppedUp{ID: 1, Amount: "bogus", Timestamp: 1})
	if err == nil {
		t.Fatal("expected parse error")
	}
	// Record must be unchanged on failure.
	if r.DepositedAmount != "1000" {
		t.Errorf("deposited mutated on failed apply: %s", r.DepositedAmount)
	}
}

func TestToStreamState(t *testing.T) {
	r := state.NewStreamRecord(createdEvent())
	s := r.ToStreamState()

	if s.StreamID != 1 || s.DepositedAmount != "1000" || !s.IsActive {
		t.Errorf("unexpected state: %+v", s)
	}
	if s.UpdatedAt != nil {
		t.Error("zero UpdatedAt must map to nil")
	}
}

func TestCanonicalBytes_Deterministic(t *testing.T) {
	a := state.NewStreamRecord(createdEvent())
	b := state.NewStreamRecord(createdEvent())

	if string(a.CanonicalBytes()) != string(b.CanonicalBytes()) {
		t.Error("canonical bytes differ for identical records")
	}

	if err := b.ApplyTopUp(&event.StreamToppedUp{ID: 1, Amount: "1", Timestamp: 101}); err != nil {
		t.Fatal(err)
	}
	if string(a.CanonicalBytes()) == string(b.CanonicalBytes()) {
		t.Error("canonical bytes identical for different records")
	}
}
