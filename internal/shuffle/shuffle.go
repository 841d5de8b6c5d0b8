// Package shuffle implements the Fisher-Yates-style swap-or-not shuffle
// used to derive validator-to-core rotation assignments, grounded on the
// teacher's beacon-chain committee shuffling in
// pkg/consensus/shuf_shuffling.go. The round function there hashes with
// SHA-256 because that is what the beacon chain spec mandates; this
// adaptation swaps in Blake2-256 (via internal/crypto) since every other
// hash in this codebase's domain is Blake2, and reuses the rest of the
// algorithm unchanged (90-round pivot/flip/bit-select network).
package shuffle

import (
	"encoding/binary"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
)

const roundCount = 90

// shuffledIndex computes the shuffled position of index within [0, count)
// under seed, using the swap-or-not network.
func shuffledIndex(index, count uint64, seed [32]byte) uint64 {
	if count <= 1 {
		return 0
	}
	cur := index
	for round := uint64(0); round < roundCount; round++ {
		var pivotInput [33]byte
		copy(pivotInput[:32], seed[:])
		pivotInput[32] = byte(round)
		pivotHash := crypto.Blake2b256(pivotInput[:])
		pivot := binary.LittleEndian.Uint64(pivotHash[:8]) % count

		flip := (pivot + count - cur) % count
		position := flip
		if cur > flip {
			position = cur
		}

		var srcInput [37]byte
		copy(srcInput[:32], seed[:])
		srcInput[32] = byte(round)
		binary.LittleEndian.PutUint32(srcInput[33:], uint32(position/256))
		source := crypto.Blake2b256(srcInput[:])

		byteIdx := (position % 256) / 8
		bitIdx := position % 8
		if (source[byteIdx]>>bitIdx)&1 != 0 {
			cur = flip
		}
	}
	return cur
}

// List returns a full permutation of indices [0, n) under seed: out[i] is
// the original index now occupying shuffled position i.
func List(n int, seed [32]byte) []int {
	out := make([]int, n)
	for i := 0; i < n; i++ {
		out[i] = int(shuffledIndex(uint64(i), uint64(n), seed))
	}
	return out
}
