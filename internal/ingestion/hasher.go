package ingestion

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "StreamLedger:genesis:v1"

// ChainHasher computes the event log's integrity chain:
// state_hash[N] = SHA-256(prev_hash || sequence || record_digest).
type ChainHasher struct {
	prevHash [32]byte
}

// NewChainHasher initializes with the genesis hash.
func NewChainHasher() *ChainHasher {
	return &ChainHasher{
		prevHash: sha256.Sum256([]byte(genesisHashSeed)),
	}
}

// NewChainHasherFrom resumes the chain from a persisted tip, so restarts
// continue the same chain instead of forking from genesis.
func NewChainHasherFrom(prev [32]byte) *ChainHasher {
	return &ChainHasher{prevHash: prev}
}

// ComputeHash advances the chain with the canonical bytes of the stream
// record after the event was applied.
func (h *ChainHasher) ComputeHash(sequence int64, recordDigest []byte) [32]byte {
	hasher := sha256.New()

	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(recordDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))

	h.prevHash = hash

	return hash
}

// PrevHash returns the current chain tip.
func (h *ChainHasher) PrevHash() [32]byte {
	return h.prevHash
}

// Seal implements event.Sealer: it advances the chain and returns both the
// new state hash and the tip it was chained from.
func (h *ChainHasher) Seal(sequence int64, recordDigest []byte) (stateHash, prevHash [32]byte) {
	prevHash = h.prevHash
	stateHash = h.ComputeHash(sequence, recordDigest)
	return stateHash, prevHash
}
