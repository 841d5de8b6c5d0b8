// Package header implements spec.md §4.D: the block header verifier. Five
// checks run in sequence, each against the unmutated parent state; any
// failure returns a distinct HeaderErrorCode and the caller aborts with σ
// unchanged (spec §7 "no partial commit"). Grounded structurally on the
// teacher's validate-then-mutate header-rule shape (error-first returns, no
// partial mutation) adapted from ethereum header verification idiom.
package header

import (
	"fmt"

	"github.com/bloppan/vinwolf-sub001/internal/codec"
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// ErrorCode enumerates header verification failures (spec §7 HeaderError).
type ErrorCode int

const (
	_ ErrorCode = iota
	BadParentStateRoot
	BadParentHeader
	BadExtrinsicHash
	BadValidatorIndex
	BadOffenders
	BadTicketAttempt
)

func (c ErrorCode) String() string {
	switch c {
	case BadParentStateRoot:
		return "BadParentStateRoot"
	case BadParentHeader:
		return "BadParentHeader"
	case BadExtrinsicHash:
		return "BadExtrinsicHash"
	case BadValidatorIndex:
		return "BadValidatorIndex"
	case BadOffenders:
		return "BadOffenders"
	case BadTicketAttempt:
		return "BadTicketAttempt"
	default:
		return "Unknown"
	}
}

// Error wraps an ErrorCode with context, satisfying the error interface.
type Error struct {
	Code ErrorCode
	Msg  string
}

func (e *Error) Error() string { return fmt.Sprintf("header: %s: %s", e.Code, e.Msg) }

func fail(code ErrorCode, msg string) error { return &Error{Code: code, Msg: msg} }

// ParentInfo is the subset of the recent-history entry the header checks
// against (spec §4.D step 5).
type ParentInfo struct {
	HeaderHash jamtypes.Hash
	StateRoot  jamtypes.Hash
}

// Verify runs the five checks of spec §4.D against header/extrinsic h/ex,
// the previously-stored time τ, and the parent block's info. Step 5 runs
// only when isBootstrap is false and h.Slot is exactly τ+1.
func Verify(cfg *params.Config, h jamtypes.Header, ex jamtypes.Extrinsic, tau jamtypes.TimeSlot, parent ParentInfo, isBootstrap bool) error {
	if err := verifyTicketsMarkAttempts(cfg, h); err != nil {
		return err
	}
	if err := verifyExtrinsicHash(h, ex); err != nil {
		return err
	}
	if uint16(h.AuthorIndex) >= uint16(cfg.ValidatorsCount) {
		return fail(BadValidatorIndex, "author index out of range")
	}
	if err := verifyOffendersMarker(h, ex); err != nil {
		return err
	}
	if !isBootstrap && h.Slot-tau == 1 {
		if h.ParentStateRoot != parent.StateRoot {
			return fail(BadParentStateRoot, "parent state root mismatch")
		}
		if h.Parent != parent.HeaderHash {
			return fail(BadParentHeader, "parent header hash mismatch")
		}
	}
	return nil
}

func verifyTicketsMarkAttempts(cfg *params.Config, h jamtypes.Header) error {
	if h.TicketsMark == nil {
		return nil
	}
	for _, id := range h.TicketsMark.IDs {
		_ = id // ticket ids carry no attempt number themselves; attempts are
		// validated against the submitted tickets in internal/safrole. This
		// check exists at the header layer only for the epoch/tickets mark
		// entries that do carry an attempt (none in this wire shape), kept
		// as a no-op placeholder consistent with spec wording "each entry's
		// attempt < TICKET_ENTRIES_PER_VALIDATOR" being enforced where the
		// attempt field actually lives (safrole's ticket extrinsic check).
	}
	return nil
}

// verifyExtrinsicHash recomputes H.extrinsic_hash per spec §4.D step 2 and
// compares it against the header's claimed value.
func verifyExtrinsicHash(h jamtypes.Header, ex jamtypes.Extrinsic) error {
	got := ComputeExtrinsicHash(ex)
	if got != h.ExtrinsicHash {
		return fail(BadExtrinsicHash, "extrinsic hash mismatch")
	}
	return nil
}

// ComputeExtrinsicHash implements spec §4.D step 2: Blake2-256 over the
// concatenation of Blake2-256 of each of
// {tickets, preimages, guarantees-sub-hash, assurances, disputes}.
func ComputeExtrinsicHash(ex jamtypes.Extrinsic) jamtypes.Hash {
	ticketsHash := crypto.Blake2b256(marshalTicketsLenPrefixed(ex.Tickets))
	preimagesHash := crypto.Blake2b256(marshalPreimagesLenPrefixed(ex.Preimages))
	guaranteesHash := crypto.Blake2b256(marshalGuaranteesSubHash(ex.Guarantees))
	assurancesHash := crypto.Blake2b256(marshalAssurancesLenPrefixed(ex.Assurances))
	disputesHash := crypto.Blake2b256(marshalDisputesFull(ex.Disputes))
	return crypto.Blake2b256(ticketsHash[:], preimagesHash[:], guaranteesHash[:], assurancesHash[:], disputesHash[:])
}

func marshalTicketsLenPrefixed(ts []jamtypes.Ticket) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(ts))))
	for _, t := range ts {
		w.Write([]byte{t.Attempt})
		w.Write(codec.EncodeUnsigned(uint64(len(t.Proof))))
		w.Write(t.Proof)
	}
	return w.Bytes()
}

func marshalPreimagesLenPrefixed(ps []jamtypes.Preimage) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(ps))))
	for _, p := range ps {
		w.Write(codec.MarshalUint32(uint32(p.ServiceID)))
		w.Write(codec.EncodeUnsigned(uint64(len(p.Blob))))
		w.Write(p.Blob)
	}
	return w.Bytes()
}

// marshalGuaranteesSubHash implements the specific schema of spec §4.D step
// 2: count, then per guarantee (blake2_256(report_encoded), slot u32-le,
// signatures-len-prefixed).
func marshalGuaranteesSubHash(gs []jamtypes.Guarantee) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(gs))))
	for _, g := range gs {
		repEnc := codec.MarshalWorkReport(g.Report)
		repHash := crypto.Blake2b256(repEnc)
		w.Write(repHash[:])
		w.Write(codec.MarshalUint32(uint32(g.Slot)))
		w.Write(codec.EncodeUnsigned(uint64(len(g.Signatures))))
		for _, sig := range g.Signatures {
			w.Write(codec.MarshalUint16(uint16(sig.ValidatorIndex)))
			w.Write(sig.Signature[:])
		}
	}
	return w.Bytes()
}

func marshalAssurancesLenPrefixed(as []jamtypes.Assurance) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(as))))
	for _, a := range as {
		w.Write(a.Anchor[:])
		w.Write(codec.EncodeUnsigned(uint64(len(a.Bitfield))))
		w.Write(a.Bitfield)
		w.Write(codec.MarshalUint16(uint16(a.ValidatorIndex)))
		w.Write(a.Signature[:])
	}
	return w.Bytes()
}

func marshalDisputesFull(d jamtypes.DisputesExtrinsic) []byte {
	w := codec.NewWriter()
	w.Write(codec.EncodeUnsigned(uint64(len(d.Verdicts))))
	for _, v := range d.Verdicts {
		w.Write(v.Target[:])
		w.Write(codec.MarshalUint32(v.Age))
		w.Write(codec.EncodeUnsigned(uint64(len(v.Judgements))))
		for _, j := range v.Judgements {
			if j.Valid {
				w.Write([]byte{1})
			} else {
				w.Write([]byte{0})
			}
			w.Write(codec.MarshalUint16(uint16(j.ValidatorIndex)))
			w.Write(j.Signature[:])
		}
	}
	w.Write(codec.EncodeUnsigned(uint64(len(d.Culprits))))
	for _, c := range d.Culprits {
		w.Write(c.Target[:])
		w.Write(c.Key[:])
		w.Write(c.Signature[:])
	}
	w.Write(codec.EncodeUnsigned(uint64(len(d.Faults))))
	for _, f := range d.Faults {
		w.Write(f.Target[:])
		if f.Valid {
			w.Write([]byte{1})
		} else {
			w.Write([]byte{0})
		}
		w.Write(f.Key[:])
		w.Write(f.Signature[:])
	}
	return w.Bytes()
}

// verifyOffendersMarker checks spec §4.D step 4: the header's offenders
// marker must equal the set union of culprit and fault keys, cardinality
// included.
func verifyOffendersMarker(h jamtypes.Header, ex jamtypes.Extrinsic) error {
	want := make(map[jamtypes.Ed25519Public]struct{})
	for _, c := range ex.Disputes.Culprits {
		want[c.Key] = struct{}{}
	}
	for _, f := range ex.Disputes.Faults {
		want[f.Key] = struct{}{}
	}
	if len(want) != len(h.OffendersMark) {
		return fail(BadOffenders, "offenders marker cardinality mismatch")
	}
	seen := make(map[jamtypes.Ed25519Public]struct{}, len(h.OffendersMark))
	for _, o := range h.OffendersMark {
		if _, ok := want[o]; !ok {
			return fail(BadOffenders, "offenders marker contains key outside culprits/faults union")
		}
		if _, dup := seen[o]; dup {
			return fail(BadOffenders, "offenders marker contains duplicate key")
		}
		seen[o] = struct{}{}
	}
	return nil
}

// ComputeHeaderHash hashes the wire encoding of h per spec §6's
// UnsignedHeader field order, plus the seal, the same way
// ComputeExtrinsicHash folds the extrinsic's sub-sections. Used by
// internal/stf to produce the header_hash recorded in recent history.
func ComputeHeaderHash(h jamtypes.Header) jamtypes.Hash {
	w := codec.NewWriter()
	w.Write(h.Parent[:])
	w.Write(h.ParentStateRoot[:])
	w.Write(h.ExtrinsicHash[:])
	w.Write(codec.MarshalUint32(uint32(h.Slot)))
	if h.EpochMark != nil {
		w.Write([]byte{1})
		w.Write(h.EpochMark.Entropy1[:])
		w.Write(h.EpochMark.Entropy2[:])
		w.Write(codec.EncodeUnsigned(uint64(len(h.EpochMark.Validators))))
		for _, v := range h.EpochMark.Validators {
			w.Write(v.Bandersnatch[:])
			w.Write(v.Ed25519[:])
		}
	} else {
		w.Write([]byte{0})
	}
	if h.TicketsMark != nil {
		w.Write([]byte{1})
		w.Write(codec.EncodeUnsigned(uint64(len(h.TicketsMark.IDs))))
		for _, id := range h.TicketsMark.IDs {
			w.Write(id[:])
		}
	} else {
		w.Write([]byte{0})
	}
	w.Write(codec.MarshalUint16(h.AuthorIndex))
	w.Write(codec.EncodeUnsigned(uint64(len(h.EntropySource))))
	w.Write(h.EntropySource)
	w.Write(codec.EncodeUnsigned(uint64(len(h.OffendersMark))))
	for _, o := range h.OffendersMark {
		w.Write(o[:])
	}
	w.Write(codec.EncodeUnsigned(uint64(len(h.Seal))))
	w.Write(h.Seal)
	return crypto.Blake2b256(w.Bytes())
}
