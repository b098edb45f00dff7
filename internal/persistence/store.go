package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"StreamLedger/internal/event"
	"StreamLedger/internal/state"
)

// ErrStreamNotFound is returned when no mirrored stream has the given id.
var ErrStreamNotFound = errors.New("stream not found")

// StreamStore persists the stream mirror and its event log in Postgres.
type StreamStore struct {
	db *sql.DB
}

func NewStreamStore(db *sql.DB) *StreamStore {
	return &StreamStore{db: db}
}

// GetStream loads a mirrored stream record.
func (s *StreamStore) GetStream(ctx context.Context, streamID int64) (*state.StreamRecord, error) {
	r := &state.StreamRecord{}
	err := s.db.QueryRowContext(ctx, `
		SELECT stream_id, sender, recipient, token_address,
		       rate_per_second, deposited_amount, withdrawn_amount,
		       start_time, last_update_time, is_active, updated_at
		FROM projections.streams
		WHERE stream_id = $1
	`, streamID).Scan(
		&r.StreamID, &r.Sender, &r.Recipient, &r.TokenAddress,
		&r.RatePerSecond, &r.DepositedAmount, &r.WithdrawnAmount,
		&r.StartTime, &r.LastUpdateTime, &r.IsActive, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrStreamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stream %d: %w", streamID, err)
	}
	return r, nil
}

// ListStreams returns mirrored streams, optionally filtered by recipient,
// with cursor pagination on stream_id.
func (s *StreamStore) ListStreams(ctx context.Context, recipient *string, limit int, afterID *int64) ([]state.StreamRecord, error) {
	query := `
		SELECT stream_id, sender, recipient, token_address,
		       rate_per_second, deposited_amount, withdrawn_amount,
		       start_time, last_update_time, is_active, updated_at
		FROM projections.streams
		WHERE TRUE
	`
	args := []interface{}{}
	argIdx := 1

	if recipient != nil {
		query += fmt.Sprintf(" AND recipient = $%d", argIdx)
		args = append(args, *recipient)
		argIdx++
	}

	if afterID != nil {
		query += fmt.Sprintf(" AND stream_id > $%d", argIdx)
		args = append(args, *afterID)
		argIdx++
	}

	query += " ORDER BY stream_id"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []state.StreamRecord
	for rows.Next() {
		var r state.StreamRecord
		if err := rows.Scan(
			&r.StreamID, &r.Sender, &r.Recipient, &r.TokenAddress,
			&r.RatePerSecond, &r.DepositedAmount, &r.WithdrawnAmount,
			&r.StartTime, &r.LastUpdateTime, &r.IsActive, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// ApplyEvent atomically records a contract event and replays its state
// transition on the mirrored stream. Returns false when the event log
// already holds the idempotency key (the apply is skipped entirely).
func (s *StreamStore) ApplyEvent(ctx context.Context, env *event.Envelope, evt event.Event, sealer event.Sealer) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin apply tx: %w", err)
	}
	defer tx.Rollback()

	// Tier-2 final arbiter: the unique constraint on idempotency_key.
	var exists bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM event_log.events WHERE idempotency_key = $1)
	`, env.IdempotencyKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup check: %w", err)
	}
	if exists {
		return false, nil
	}

	record, err := s.applyTransition(ctx, tx, evt)
	if err != nil {
		return false, err
	}

	if err := s.upsertStream(ctx, tx, record); err != nil {
		return false, err
	}

	env.StateHash, env.PrevHash = sealer.Seal(env.Sequence, record.CanonicalBytes())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO event_log.events
			(event_id, sequence, event_type, idempotency_key, stream_id,
			 ledger_sequence, payload, state_hash, prev_hash, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) DO NOTHING
	`,
		env.EventID, env.Sequence, env.EventType.String(), env.IdempotencyKey,
		env.StreamID, env.LedgerSequence, env.Payload,
		env.StateHash[:], env.PrevHash[:], env.Timestamp,
	)
	if err != nil {
		return false, fmt.Errorf("insert event %s: %w", env.EventID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence)
		VALUES ('main', $1)
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = EXCLUDED.last_sequence
	`, env.Sequence); err != nil {
		return false, fmt.Errorf("update watermark: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit apply: %w", err)
	}

	return true, nil
}

func (s *StreamStore) applyTransition(ctx context.Context, tx *sql.Tx, evt event.Event) (*state.StreamRecord, error) {
	if created, ok := evt.(*event.StreamCreated); ok {
		return state.NewStreamRecord(created), nil
	}

	record, err := s.getStreamForUpdate(ctx, tx, evt.StreamID())
	if err != nil {
		return nil, err
	}
	if err := record.Apply(evt); err != nil {
		return nil, fmt.Errorf("apply %s to stream %d: %w", evt.EventType(), evt.StreamID(), err)
	}
	return record, nil
}

func (s *StreamStore) getStreamForUpdate(ctx context.Context, tx *sql.Tx, streamID int64) (*state.StreamRecord, error) {
	r := &state.StreamRecord{}
	err := tx.QueryRowContext(ctx, `
		SELECT stream_id, sender, recipient, token_address,
		       rate_per_second, deposited_amount, withdrawn_amount,
		       start_time, last_update_time, is_active, updated_at
		FROM projections.streams
		WHERE stream_id = $1
		FOR UPDATE
	`, streamID).Scan(
		&r.StreamID, &r.Sender, &r.Recipient, &r.TokenAddress,
		&r.RatePerSecond, &r.DepositedAmount, &r.WithdrawnAmount,
		&r.StartTime, &r.LastUpdateTime, &r.IsActive, &r.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stream %d: %w", streamID, ErrStreamNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock stream %d: %w", streamID, err)
	}
	return r, nil
}

func (s *StreamStore) upsertStream(ctx context.Context, tx *sql.Tx, r *state.StreamRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.streams
			(stream_id, sender, recipient, token_address,
			 rate_per_second, deposited_amount, withdrawn_amount,
			 start_time, last_update_time, is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (stream_id) DO UPDATE SET
			rate_per_second  = EXCLUDED.rate_per_second,
			deposited_amount = EXCLUDED.deposited_amount,
			withdrawn_amount = EXCLUDED.withdrawn_amount,
			last_update_time = EXCLUDED.last_update_time,
			is_active        = EXCLUDED.is_active,
			updated_at       = NOW()
	`,
		r.StreamID, r.Sender, r.Recipient, r.TokenAddress,
		r.RatePerSecond, r.DepositedAmount, r.WithdrawnAmount,
		r.StartTime, r.LastUpdateTime, r.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upsert stream %d: %w", r.StreamID, err)
	}
	return nil
}

// IsDuplicate implements ingestion.DBIdempotencyChecker.
func (s *StreamStore) IsDuplicate(eventType string, idempotencyKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM event_log.events
			WHERE idempotency_key = $1 AND event_type = $2
		)
	`, idempotencyKey, eventType).Scan(&exists)
	return exists, err
}

// Watermark returns the last committed apply sequence.
func (s *StreamStore) Watermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

// ChainTip returns the state hash and sequence of the latest event-log
// entry, so the hash chain resumes across restarts. ok is false on an
// empty log.
func (s *StreamStore) ChainTip(ctx context.Context) (hash [32]byte, sequence int64, ok bool, err error) {
	var raw []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT state_hash, sequence FROM event_log.events
		ORDER BY sequence DESC LIMIT 1
	`).Scan(&raw, &sequence)
	if err == sql.ErrNoRows {
		return hash, 0, false, nil
	}
	if err != nil {
		return hash, 0, false, err
	}
	copy(hash[:], raw)
	return hash, sequence, true, nil
}

// LedgerHighWaterMarks returns the highest applied ledger sequence per
// stream, used to warm the ingestion sequence tracker on startup.
func (s *StreamStore) LedgerHighWaterMarks(ctx context.Context) (map[int64]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_id, MAX(ledger_sequence)
		FROM event_log.events
		GROUP BY stream_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marks := make(map[int64]int64)
	for rows.Next() {
		var id, seq int64
		if err := rows.Scan(&id, &seq); err != nil {
			return nil, err
		}
		marks[id] = seq
	}
	return marks, rows.Err()
}

// VerifyHashChain reports event-log sequences whose prev_hash does not
// match the preceding entry's state_hash (limited to the first 10 breaks).
func (s *StreamStore) VerifyHashChain(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		ORDER BY e1.sequence
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []int64
	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		breaks = append(breaks, seq)
	}
	return breaks, rows.Err()
}
