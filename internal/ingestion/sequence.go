package ingestion

// SequenceTracker tracks the highest ledger sequence seen per stream so
// stale (regressing) deliveries can be dropped. Ledger sequences naturally
// skip numbers between a stream's transactions, so gaps are accepted;
// several events from one transaction share a sequence, so equality is too.
// Not thread-safe — only accessed from the single apply worker goroutine.
type SequenceTracker struct {
	lastSeen map[int64]int64 // stream id -> highest ledger sequence applied
}

func NewSequenceTracker() *SequenceTracker {
	return &SequenceTracker{
		lastSeen: make(map[int64]int64),
	}
}

// Observe reports whether an event at ledgerSeq for streamID is fresh and,
// if so, records it. A sequence below the highest already applied means a
// redelivery of old history; the caller drops it.
func (st *SequenceTracker) Observe(streamID, ledgerSeq int64) bool {
	last, seen := st.lastSeen[streamID]
	if seen && ledgerSeq < last {
		return false
	}
	st.lastSeen[streamID] = ledgerSeq
	return true
}

// Warm seeds the tracker from persisted per-stream high-water marks.
func (st *SequenceTracker) Warm(marks map[int64]int64) {
	for id, seq := range marks {
		if seq > st.lastSeen[id] {
			st.lastSeen[id] = seq
		}
	}
}
