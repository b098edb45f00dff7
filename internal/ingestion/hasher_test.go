package ingestion

import (
	"bytes"
	"testing"
)

func TestChainHasherDeterministic(t *testing.T) {
	h1 := NewChainHasher()
	h2 := NewChainHasher()

	digest := []byte("record bytes")

	a := h1.ComputeHash(1, digest)
	b := h2.ComputeHash(1, digest)

	if a != b {
		t.Error("same input produced different hashes")
	}
}

func TestChainHasherChains(t *testing.T) {
	h := NewChainHasher()
	genesis := h.PrevHash()

	first := h.ComputeHash(1, []byte("one"))
	if h.PrevHash() != first {
		t.Error("tip did not advance after ComputeHash")
	}

	second := h.ComputeHash(2, []byte("two"))
	if second == first || second == genesis {
		t.Error("chained hash collided with an earlier link")
	}

	// Same payload at a different position in the chain hashes differently.
	fresh := NewChainHasher()
	fresh.ComputeHash(1, []byte("ignored"))
	other := fresh.ComputeHash(2, []byte("two"))
	if other == second {
		t.Error("hash must depend on the previous link")
	}
}

func TestChainHasherResume(t *testing.T) {
	h := NewChainHasher()
	h.ComputeHash(1, []byte("one"))
	tip := h.PrevHash()

	resumed := NewChainHasherFrom(tip)
	next := h.ComputeHash(2, []byte("two"))
	resumedNext := resumed.ComputeHash(2, []byte("two"))

	if next != resumedNext {
		t.Error("resumed chain diverged from the original")
	}
}

func TestChainHasherSeal(t *testing.T) {
	h := NewChainHasher()
	before := h.PrevHash()

	stateHash, prevHash := h.Seal(1, []byte("record"))

	if prevHash != before {
		t.Error("Seal did not return the tip it chained from")
	}
	if stateHash == prevHash {
		t.Error("state hash equals prev hash")
	}
	if h.PrevHash() != stateHash {
		t.Error("Seal did not advance the tip")
	}
	if bytes.Equal(stateHash[:], make([]byte, 32)) {
		t.Error("state hash is zero")
	}
}
