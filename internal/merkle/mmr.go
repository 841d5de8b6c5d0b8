// Package merkle implements spec.md §4.K: the binary state trie and the
// Merkle mountain range used to track accumulation-root history.
package merkle

import (
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// SuperPeak bags a Merkle mountain range's peaks into a single root by
// folding right to left: the rightmost peak seeds the accumulator, and
// each peak to its left is combined in via Blake2-256. Returns the zero
// hash for an empty range.
func SuperPeak(peaks []jamtypes.Hash) jamtypes.Hash {
	if len(peaks) == 0 {
		return jamtypes.Hash{}
	}
	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = crypto.Blake2b256(peaks[i][:], acc[:])
	}
	return acc
}

// AppendPeak inserts a new leaf hash into an MMR peak list, merging equal-
// height peaks pairwise the way a binary counter carries: the new leaf is
// combined with the last peak whenever the range currently holds a peak
// at that height, carrying upward until a gap is found.
func AppendPeak(peaks []jamtypes.Hash, leaf jamtypes.Hash) []jamtypes.Hash {
	out := append([]jamtypes.Hash(nil), peaks...)
	carry := leaf
	for i := 0; i < len(out); i++ {
		if out[i] == (jamtypes.Hash{}) {
			out[i] = carry
			return out
		}
		carry = crypto.Blake2b256(out[i][:], carry[:])
		out[i] = jamtypes.Hash{}
	}
	return append(out, carry)
}
