// Package assurances implements spec.md §4.G: per-core availability
// bitfields signed by validators, aggregated into super-majority report
// emission. Bitfield representation follows the teacher's fixed-length
// Bitvector idiom in ssz/bitfield.go (packed bytes, bit i lives at byte
// i/8, offset i%8), adapted here to a plain byte slice since the wire
// format is already a flat []byte rather than a wrapped SSZ type.
package assurances

import (
	"fmt"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// Code enumerates the AssurancesError variants of spec.md §7.
type Code int

const (
	_ Code = iota
	BadAnchor
	BadBitfieldLength
	BadValidatorIndex
	NotSortedOrUniqueAssurances
	BadSignature
	CoreNotAvailable
)

var codeNames = map[Code]string{
	BadAnchor:                   "BadAnchor",
	BadBitfieldLength:           "BadBitfieldLength",
	BadValidatorIndex:           "BadValidatorIndex",
	NotSortedOrUniqueAssurances: "NotSortedOrUniqueAssurances",
	BadSignature:                "BadSignature",
	CoreNotAvailable:            "CoreNotAvailable",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// Error pairs a Code with context.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("assurances: %s: %s", e.Code, e.Msg) }

func fail(code Code, msg string) error { return &Error{Code: code, Msg: msg} }

const availableSignTag = "jam_available"

// Result carries the work reports that became available this block, one
// per core that crossed the super-majority threshold.
type Result struct {
	Reported []jamtypes.WorkReport
}

// Process validates ex against h's current availability state and
// validator set, then clears and emits every core whose assurance count
// reaches the super-majority, per spec §4.G.
func Process(cfg *params.Config, h *jamstate.Handler, ex []jamtypes.Assurance) (Result, error) {
	if err := checkSorted(ex); err != nil {
		return Result{}, err
	}

	var parent jamtypes.Hash
	if hist := h.RecentHistory(); len(hist) > 0 {
		parent = hist[len(hist)-1].HeaderHash
	}

	_, curr, _ := h.Validators()
	availability := h.Availability()

	counts := make([]int, cfg.CoresCount)

	for _, a := range ex {
		if a.Anchor != parent {
			return Result{}, fail(BadAnchor, "assurance anchor does not match parent header hash")
		}
		if len(a.Bitfield) != cfg.AvailBitfieldBytes {
			return Result{}, fail(BadBitfieldLength, "bitfield length does not match core count")
		}
		if int(a.ValidatorIndex) >= len(curr) {
			return Result{}, fail(BadValidatorIndex, "validator index out of range")
		}

		msg := append([]byte(availableSignTag), crypto.Blake2b256(a.Anchor[:], a.Bitfield)[:]...)
		if !crypto.VerifyEd25519(curr[a.ValidatorIndex].Ed25519, msg, a.Signature[:]) {
			return Result{}, fail(BadSignature, "assurance signature invalid")
		}

		for c := 0; c < cfg.CoresCount; c++ {
			if !bitSet(a.Bitfield, c) {
				continue
			}
			if availability[c].Report == nil {
				return Result{}, fail(CoreNotAvailable, "assurance bit set for core with no pending report")
			}
			counts[c]++
		}
	}

	var reported []jamtypes.WorkReport
	for c := 0; c < cfg.CoresCount; c++ {
		if counts[c] < cfg.ValidatorsSuperMajority {
			continue
		}
		reported = append(reported, *availability[c].Report)
		availability[c] = jamstate.AvailabilitySlot{}
	}
	h.SetAvailability(availability)

	return Result{Reported: reported}, nil
}

// bitSet reports whether bit i is set in a packed bitfield, bit 0 being
// the least-significant bit of byte 0.
func bitSet(bf []byte, i int) bool {
	return bf[i/8]&(1<<uint(i%8)) != 0
}

// checkSorted enforces spec §4.G's strictly-ascending, unique validator
// index ordering.
func checkSorted(ex []jamtypes.Assurance) error {
	for i := 1; i < len(ex); i++ {
		if ex[i-1].ValidatorIndex >= ex[i].ValidatorIndex {
			return fail(NotSortedOrUniqueAssurances, "assurances not sorted by validator index")
		}
	}
	return nil
}
