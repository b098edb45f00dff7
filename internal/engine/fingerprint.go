package engine

import (
	"strconv"
	"strings"
)

// Fingerprint derives a compact identifier from the mutable fields of a
// stream state. Pure: the same logical state always yields the same string.
//
// When trustUpdatedAt is set and the state carries a persistence-layer
// write timestamp, that timestamp alone identifies the state — mirror
// writes are the only source of mutation, so it is a cheaper but equally
// valid proxy for hashing the numeric fields. Deployments whose store
// touches updated_at on writes unrelated to the accounting fields must
// run with trustUpdatedAt disabled or cached results can go stale.
func Fingerprint(state StreamState, trustUpdatedAt bool) string {
	if trustUpdatedAt && state.UpdatedAt != nil {
		return strconv.FormatInt(state.UpdatedAt.UnixNano(), 10)
	}

	active := "0"
	if state.IsActive {
		active = "1"
	}

	return strings.Join([]string{
		state.RatePerSecond,
		state.DepositedAmount,
		state.WithdrawnAmount,
		strconv.FormatInt(state.LastUpdateTime, 10),
		active,
	}, "|")
}
