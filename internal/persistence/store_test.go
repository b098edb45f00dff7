package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"StreamLedger/internal/event"
	"StreamLedger/internal/ingestion"
	"StreamLedger/internal/testutil"
)

func testEnvelope(seq int64, evt event.Event, payload string) *event.Envelope {
	return &event.Envelope{
		EventID:        uuid.New(),
		Sequence:       seq,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		StreamID:       evt.StreamID(),
		LedgerSequence: evt.LedgerSequence(),
		Timestamp:      time.Now().UTC(),
		Payload:        json.RawMessage(payload),
	}
}

func createdEvent(streamID int64, txHash string, ledger int64) *event.StreamCreated {
	return &event.StreamCreated{
		ID:              streamID,
		Sender:          "GSENDER",
		Recipient:       "GRECIPIENT",
		TokenAddress:    "CTOKEN",
		RatePerSecond:   "5",
		DepositedAmount: "1000",
		StartTime:       1700000000,
		Source:          event.Source{TxHash: txHash, OpIndex: 0, Ledger: ledger},
	}
}

func TestApplyEventLifecycle(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStreamStore(db)
	hasher := ingestion.NewChainHasher()

	// Create
	created := createdEvent(1, "tx-create", 100)
	applied, err := store.ApplyEvent(ctx, testEnvelope(1, created, `{"k":"create"}`), created, hasher)
	if err != nil {
		t.Fatalf("apply create: %v", err)
	}
	if !applied {
		t.Fatal("create not applied")
	}

	record, err := store.GetStream(ctx, 1)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	if record.DepositedAmount != "1000" || record.WithdrawnAmount != "0" || !record.IsActive {
		t.Errorf("unexpected record after create: %+v", record)
	}

	// Top up
	topup := &event.StreamToppedUp{
		ID:                 1,
		Sender:             "GSENDER",
		Amount:             "500",
		NewDepositedAmount: "1500",
		Timestamp:          1700000100,
		Source:             event.Source{TxHash: "tx-topup", OpIndex: 0, Ledger: 101},
	}
	applied, err = store.ApplyEvent(ctx, testEnvelope(2, topup, `{"k":"topup"}`), topup, hasher)
	if err != nil || !applied {
		t.Fatalf("apply topup: applied=%v err=%v", applied, err)
	}

	record, _ = store.GetStream(ctx, 1)
	if record.DepositedAmount != "1500" {
		t.Errorf("deposited = %s, want 1500", record.DepositedAmount)
	}

	// Withdraw
	withdraw := &event.TokensWithdrawn{
		ID:        1,
		Recipient: "GRECIPIENT",
		Amount:    "300",
		Timestamp: 1700000200,
		Source:    event.Source{TxHash: "tx-withdraw", OpIndex: 0, Ledger: 102},
	}
	applied, err = store.ApplyEvent(ctx, testEnvelope(3, withdraw, `{"k":"withdraw"}`), withdraw, hasher)
	if err != nil || !applied {
		t.Fatalf("apply withdraw: applied=%v err=%v", applied, err)
	}

	record, _ = store.GetStream(ctx, 1)
	if record.WithdrawnAmount != "300" {
		t.Errorf("withdrawn = %s, want 300", record.WithdrawnAmount)
	}
	if record.LastUpdateTime != 1700000200 {
		t.Errorf("last update = %d, want 1700000200", record.LastUpdateTime)
	}

	// Watermark follows the last committed sequence.
	wm, err := store.Watermark(ctx)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if wm != 3 {
		t.Errorf("watermark = %d, want 3", wm)
	}
}

func TestApplyEventDuplicateSkipped(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStreamStore(db)
	hasher := ingestion.NewChainHasher()

	created := createdEvent(2, "tx-dup", 200)

	applied, err := store.ApplyEvent(ctx, testEnvelope(1, created, `{}`), created, hasher)
	if err != nil || !applied {
		t.Fatalf("first apply: applied=%v err=%v", applied, err)
	}
	tipAfterFirst := hasher.PrevHash()

	// Same idempotency key again: skipped, chain untouched.
	applied, err = store.ApplyEvent(ctx, testEnvelope(2, created, `{}`), created, hasher)
	if err != nil {
		t.Fatalf("second apply: %v", err)
	}
	if applied {
		t.Error("duplicate event applied")
	}
	if hasher.PrevHash() != tipAfterFirst {
		t.Error("hash chain advanced on a skipped duplicate")
	}

	isDup, err := store.IsDuplicate(created.EventType().String(), created.IdempotencyKey())
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !isDup {
		t.Error("IsDuplicate did not report applied event")
	}
}

func TestChainTipAndVerify(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStreamStore(db)
	hasher := ingestion.NewChainHasher()

	if _, _, ok, err := store.ChainTip(ctx); err != nil || ok {
		t.Fatalf("empty log: ok=%v err=%v", ok, err)
	}

	created := createdEvent(3, "tx-tip-1", 300)
	if _, err := store.ApplyEvent(ctx, testEnvelope(1, created, `{}`), created, hasher); err != nil {
		t.Fatalf("apply: %v", err)
	}

	topup := &event.StreamToppedUp{
		ID: 3, Sender: "GSENDER", Amount: "1", NewDepositedAmount: "1001",
		Timestamp: 1700000100,
		Source:    event.Source{TxHash: "tx-tip-2", OpIndex: 0, Ledger: 301},
	}
	if _, err := store.ApplyEvent(ctx, testEnvelope(2, topup, `{}`), topup, hasher); err != nil {
		t.Fatalf("apply: %v", err)
	}

	tip, seq, ok, err := store.ChainTip(ctx)
	if err != nil || !ok {
		t.Fatalf("chain tip: ok=%v err=%v", ok, err)
	}
	if seq != 2 {
		t.Errorf("tip sequence = %d, want 2", seq)
	}
	if tip != hasher.PrevHash() {
		t.Error("stored tip does not match in-memory chain")
	}

	breaks, err := store.VerifyHashChain(ctx)
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if len(breaks) != 0 {
		t.Errorf("unexpected chain breaks: %v", breaks)
	}

	marks, err := store.LedgerHighWaterMarks(ctx)
	if err != nil {
		t.Fatalf("high-water marks: %v", err)
	}
	if marks[3] != 301 {
		t.Errorf("mark for stream 3 = %d, want 301", marks[3])
	}
}

func TestListStreamsFilterAndCursor(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewStreamStore(db)
	hasher := ingestion.NewChainHasher()

	for i := int64(1); i <= 3; i++ {
		created := createdEvent(i, fmt.Sprintf("tx-list-%d", i), 400+i)
		if i == 2 {
			created.Recipient = "GOTHER"
		}
		if _, err := store.ApplyEvent(ctx, testEnvelope(i, created, `{}`), created, hasher); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	all, err := store.ListStreams(ctx, nil, 10, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}

	recipient := "GRECIPIENT"
	filtered, err := store.ListStreams(ctx, &recipient, 10, nil)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Errorf("filtered len = %d, want 2", len(filtered))
	}

	after := int64(1)
	page, err := store.ListStreams(ctx, nil, 10, &after)
	if err != nil {
		t.Fatalf("list after cursor: %v", err)
	}
	if len(page) != 2 || page[0].StreamID != 2 {
		t.Errorf("cursor page wrong: %+v", page)
	}
}

func TestGetStreamNotFound(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStreamStore(db)
	if _, err := store.GetStream(context.Background(), 99999); err != ErrStreamNotFound {
		t.Errorf("err = %v, want ErrStreamNotFound", err)
	}
}
