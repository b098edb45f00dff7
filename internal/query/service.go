package query

import (
	"context"
	"fmt"

	"StreamLedger/internal/engine"
	"StreamLedger/internal/persistence"
	"StreamLedger/internal/state"
)

// QueryService provides read-only access to the stream mirror and the
// claimable calculation engine. All responses include as_of_sequence for
// freshness semantics: the apply sequence the mirror had reached when the
// query ran.
type QueryService struct {
	store *persistence.StreamStore
	calc  *engine.Calculator
}

func NewQueryService(store *persistence.StreamStore, calc *engine.Calculator) *QueryService {
	return &QueryService{store: store, calc: calc}
}

// GetClaimable computes the amount currently withdrawable by the stream's
// recipient, as of requestedAt (unix seconds) or the present moment when
// requestedAt is nil.
func (qs *QueryService) GetClaimable(ctx context.Context, streamID int64, requestedAt *int64) (*ClaimableResponse, error) {
	asOfSeq, err := qs.store.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	record, err := qs.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	result, err := qs.calc.GetClaimableAmount(record.ToStreamState(), requestedAt)
	if err != nil {
		return nil, err
	}

	return &ClaimableResponse{
		StreamID:        result.StreamID,
		ClaimableAmount: result.ClaimableAmount,
		Actionable:      result.Actionable,
		CalculatedAt:    result.CalculatedAt,
		Cached:          result.Cached,
		AsOfSequence:    asOfSeq,
	}, nil
}

// GetStream returns a single mirrored stream record.
func (qs *QueryService) GetStream(ctx context.Context, streamID int64) (*StreamResponse, error) {
	asOfSeq, err := qs.store.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	record, err := qs.store.GetStream(ctx, streamID)
	if err != nil {
		return nil, err
	}

	resp := toStreamResponse(record, asOfSeq)
	return &resp, nil
}

// ListStreams returns mirrored streams with optional recipient filtering
// and cursor-based pagination.
func (qs *QueryService) ListStreams(ctx context.Context, recipient *string, limit int, afterID *int64) ([]StreamResponse, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	asOfSeq, err := qs.store.Watermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	records, err := qs.store.ListStreams(ctx, recipient, limit, afterID)
	if err != nil {
		return nil, err
	}

	responses := make([]StreamResponse, 0, len(records))
	for i := range records {
		responses = append(responses, toStreamResponse(&records[i], asOfSeq))
	}
	return responses, nil
}

// VerifyIntegrity checks the event log's hash chain.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	breaks, err := qs.store.VerifyHashChain(ctx)
	if err != nil {
		return nil, err
	}
	return &IntegrityReport{
		IsHealthy:       len(breaks) == 0,
		HashChainBreaks: breaks,
	}, nil
}

// ClearCache drops all memoized claimable results (explicit invalidation).
func (qs *QueryService) ClearCache() {
	qs.calc.ClearCache()
}

func toStreamResponse(r *state.StreamRecord, asOfSeq int64) StreamResponse {
	return StreamResponse{
		StreamID:        r.StreamID,
		Sender:          r.Sender,
		Recipient:       r.Recipient,
		TokenAddress:    r.TokenAddress,
		RatePerSecond:   r.RatePerSecond,
		DepositedAmount: r.DepositedAmount,
		WithdrawnAmount: r.WithdrawnAmount,
		StartTime:       r.StartTime,
		LastUpdateTime:  r.LastUpdateTime,
		IsActive:        r.IsActive,
		AsOfSequence:    asOfSeq,
	}
}
