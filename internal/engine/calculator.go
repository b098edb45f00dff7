package engine

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	i128 "StreamLedger/internal/math"
	"StreamLedger/internal/observability"
)

// Clock supplies the current wall-clock time. Injected so tests are fully
// deterministic without real-time delays.
type Clock func() time.Time

// Config controls a Calculator instance.
type Config struct {
	// CacheTTL is how long a computed result may be served from cache.
	// Zero disables caching entirely.
	CacheTTL time.Duration

	// Clock defaults to time.Now.
	Clock Clock

	// TrustUpdatedAt selects the cheap updated_at fingerprint over the
	// field-concatenation fingerprint when the state carries one.
	TrustUpdatedAt bool
}

// DefaultConfig returns the standard production configuration.
func DefaultConfig() Config {
	return Config{
		CacheTTL:       time.Second,
		Clock:          time.Now,
		TrustUpdatedAt: true,
	}
}

// Calculator computes the amount currently withdrawable by a stream's
// recipient, reproducing the contract's i128 saturating arithmetic
// bit-for-bit. It is safe for concurrent use; the memoization cache is
// its only shared state.
type Calculator struct {
	cfg     Config
	cache   *resultCache
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewCalculator creates a calculator. metrics may be nil.
func NewCalculator(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Calculator {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.CacheTTL < 0 {
		cfg.CacheTTL = 0
	}
	return &Calculator{
		cfg:     cfg,
		cache:   newResultCache(),
		logger:  logger,
		metrics: metrics,
	}
}

// GetClaimableAmount returns the claimable amount for state as of
// requestedAt (unix seconds), or as of the injected clock when requestedAt
// is nil. Results are memoized for the configured TTL; Cached reports
// whether this call was served from the cache.
//
// Malformed amount strings fail with *math.ParseError. Overflow never
// fails: the contract saturates, so the engine saturates.
func (c *Calculator) GetClaimableAmount(state StreamState, requestedAt *int64) (ClaimableResult, error) {
	calculatedAt := c.resolveCalculatedAt(requestedAt)

	fp := Fingerprint(state, c.cfg.TrustUpdatedAt)
	key := fmt.Sprintf("%d:%s:%d", state.StreamID, fp, calculatedAt)

	if c.cfg.CacheTTL > 0 {
		if v, ok := c.cache.get(key, c.cfg.Clock()); ok {
			if c.metrics != nil {
				c.metrics.CalcRequests.WithLabelValues("cache").Inc()
			}
			v.Cached = true
			return v, nil
		}
	}

	start := c.cfg.Clock()
	result, err := c.compute(state, calculatedAt)
	if err != nil {
		var parseErr *i128.ParseError
		if c.metrics != nil && errors.As(err, &parseErr) {
			c.metrics.CalcErrors.WithLabelValues(parseErr.Field).Inc()
		}
		c.logger.Warn().
			Int64("stream_id", state.StreamID).
			Err(err).
			Msg("claimable calculation rejected")
		return ClaimableResult{}, err
	}

	if c.cfg.CacheTTL > 0 {
		now := c.cfg.Clock()
		c.cache.put(key, result, now.Add(c.cfg.CacheTTL))
		if c.metrics != nil {
			c.metrics.CalcDuration.Observe(now.Sub(start).Seconds())
			c.metrics.CacheEntries.Set(float64(c.cache.size()))
		}
	}
	if c.metrics != nil {
		c.metrics.CalcRequests.WithLabelValues("computed").Inc()
	}

	return result, nil
}

// ClearCache drops all memoized results immediately.
func (c *Calculator) ClearCache() {
	c.cache.clear()
	if c.metrics != nil {
		c.metrics.CacheEntries.Set(0)
	}
}

// CacheSize returns the number of live cache entries.
func (c *Calculator) CacheSize() int {
	return c.cache.size()
}

func (c *Calculator) resolveCalculatedAt(requestedAt *int64) int64 {
	if requestedAt != nil {
		return *requestedAt
	}
	// Floor of wall-clock milliseconds, matching the second the contract
	// ledger would report.
	return c.cfg.Clock().UnixMilli() / 1000
}

// compute mirrors the contract's calculate_claimable exactly:
//
//	elapsed   = now.saturating_sub(last_update_time)
//	streamed  = (elapsed as i128).checked_mul(rate).unwrap_or(i128::MAX)
//	remaining = deposited.saturating_sub(withdrawn)
//	claimable = min(streamed, remaining), zeroed when inactive or negative
func (c *Calculator) compute(state StreamState, calculatedAt int64) (ClaimableResult, error) {
	lastUpdate := state.LastUpdateTime
	if lastUpdate < 0 {
		lastUpdate = 0
	}
	now := calculatedAt
	if now < 0 {
		now = 0
	}

	// Clock skew or out-of-order queries yield zero elapsed, not an error.
	var elapsed int64
	if now > lastUpdate {
		elapsed = now - lastUpdate
	}

	rate, err := i128.ParseI128("rate_per_second", state.RatePerSecond)
	if err != nil {
		return ClaimableResult{}, err
	}
	deposited, err := i128.ParseI128("deposited_amount", state.DepositedAmount)
	if err != nil {
		return ClaimableResult{}, err
	}
	withdrawn, err := i128.ParseI128("withdrawn_amount", state.WithdrawnAmount)
	if err != nil {
		return ClaimableResult{}, err
	}

	streamed := i128.SaturatingMul(big.NewInt(elapsed), rate)

	// May be negative when a stream is over-withdrawn upstream; not
	// clamped here so the min() below suppresses the claim.
	remaining := i128.SaturatingSub(deposited, withdrawn)

	raw := i128.Min(streamed, remaining)

	claimable := new(big.Int)
	if state.IsActive && raw.Sign() > 0 {
		claimable = raw
	}

	return ClaimableResult{
		StreamID:        state.StreamID,
		ClaimableAmount: claimable.String(),
		Actionable:      claimable.Sign() > 0,
		CalculatedAt:    calculatedAt,
	}, nil
}
