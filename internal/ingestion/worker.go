package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"StreamLedger/internal/event"
	"StreamLedger/internal/observability"
)

// ApplyStore persists an event and its stream record transition atomically.
// Returns false when the event log already holds the idempotency key.
type ApplyStore interface {
	ApplyEvent(ctx context.Context, env *event.Envelope, evt event.Event, sealer event.Sealer) (bool, error)
}

// Worker is the single goroutine that drains the NATS event channel and
// applies contract events to the stream mirror in arrival order. Running
// exactly one worker keeps the hash chain and the per-stream sequence
// tracking free of locks.
type Worker struct {
	store       ApplyStore
	dedup       *IdempotencyChecker
	seqTracker  *SequenceTracker
	hasher      *ChainHasher
	sequence    int64
	publishChan chan<- PublishableEvent
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

// NewWorker creates an apply worker. startSequence is the highest sequence
// already in the event log; publishChan and metrics may be nil.
func NewWorker(
	store ApplyStore,
	dedup *IdempotencyChecker,
	seqTracker *SequenceTracker,
	hasher *ChainHasher,
	startSequence int64,
	publishChan chan<- PublishableEvent,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Worker {
	return &Worker{
		store:       store,
		dedup:       dedup,
		seqTracker:  seqTracker,
		hasher:      hasher,
		sequence:    startSequence,
		publishChan: publishChan,
		logger:      logger,
		metrics:     metrics,
	}
}

// Run consumes raw events until the context is cancelled or the channel
// closes.
func (w *Worker) Run(ctx context.Context, eventChan <-chan RawEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-eventChan:
			if !ok {
				return nil
			}
			w.handle(ctx, raw)
		}
	}
}

func (w *Worker) handle(ctx context.Context, raw RawEvent) {
	evt, err := ParseRawEvent(raw, raw.EventType)
	if err != nil {
		// Poison message: redelivery cannot fix a malformed payload.
		w.logger.Warn().
			Str("subject", raw.Subject).
			Err(err).
			Msg("unparseable event dropped")
		w.reject(raw.EventType, "parse")
		raw.AckFunc()
		return
	}

	eventType := evt.EventType().String()

	if w.dedup.IsDuplicate(eventType, evt.IdempotencyKey()) {
		raw.AckFunc()
		return
	}

	if !w.seqTracker.Observe(evt.StreamID(), evt.LedgerSequence()) {
		if w.metrics != nil {
			w.metrics.StaleEventsDropped.WithLabelValues(eventType).Inc()
		}
		w.logger.Debug().
			Int64("stream_id", evt.StreamID()).
			Int64("ledger", evt.LedgerSequence()).
			Msg("stale event dropped")
		raw.AckFunc()
		return
	}

	env := &event.Envelope{
		EventID:        uuid.New(),
		Sequence:       w.sequence + 1,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		StreamID:       evt.StreamID(),
		LedgerSequence: evt.LedgerSequence(),
		Timestamp:      raw.Timestamp,
		Payload:        raw.Data,
	}

	applied, err := w.store.ApplyEvent(ctx, env, evt, w.hasher)
	if err != nil {
		w.logger.Error().
			Int64("stream_id", evt.StreamID()).
			Str("event_type", eventType).
			Err(err).
			Msg("apply failed, message will be redelivered")
		w.reject(eventType, "apply")
		raw.NakFunc()
		return
	}

	if !applied {
		// Caught by the event log's unique constraint (tier 2 missed it).
		w.dedup.MarkProcessed(eventType, evt.IdempotencyKey())
		raw.AckFunc()
		return
	}

	w.sequence = env.Sequence
	w.dedup.MarkProcessed(eventType, evt.IdempotencyKey())

	if w.metrics != nil {
		w.metrics.IngestEventsApplied.WithLabelValues(eventType).Inc()
		w.metrics.ApplySequence.Set(float64(w.sequence))
		w.metrics.IngestApplyDuration.WithLabelValues(eventType).
			Observe(time.Since(raw.Timestamp).Seconds())
	}

	raw.AckFunc()

	if w.publishChan != nil {
		pub := PublishableEvent{
			Sequence:       env.Sequence,
			EventType:      eventType,
			StreamID:       env.StreamID,
			IdempotencyKey: env.IdempotencyKey,
			Payload:        env.Payload,
			StateHash:      env.StateHash[:],
			Timestamp:      env.Timestamp,
		}
		select {
		case w.publishChan <- pub:
		default:
			if w.metrics != nil {
				w.metrics.PublishDrops.Inc()
			}
		}
	}
}

func (w *Worker) reject(eventType, reason string) {
	if w.metrics != nil {
		if eventType == "" {
			eventType = "Unknown"
		}
		w.metrics.IngestEventsRejected.WithLabelValues(eventType, reason).Inc()
	}
}
