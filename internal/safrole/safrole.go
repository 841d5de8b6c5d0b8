// Package safrole implements spec.md §4.E: epoch rotation, ticket-extrinsic
// validation via Ring-VRF, fallback-key derivation, and block seal
// verification. Grounded structurally on the teacher's epoch-boundary
// processing shape (named constants, Err<Component><Reason> vars, a pure
// Process entry point that mutates nothing on failure) from
// pkg/consensus/epoch_processor.go, and on pkg/consensus/parallel_bls.go's
// worker-pool fan-out for the Ring-VRF verification batch spec §5 permits.
package safrole

import (
	"errors"
	"sort"
	"sync"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// Code enumerates the SafroleError variants of spec.md §7.
type Code int

const (
	_ Code = iota
	BadSlot
	UnexpectedTicket
	BadTicketOrder
	BadTicketProof
	BadTicketAttempt
	DuplicateTicket
	TooManyTickets
	InvalidTicketSeal
	TicketNotMatch
	KeyNotMatch
	TicketsOrKeysNone
	EmptyEpochMark
	WrongEpochMark
	UnexpectedEpochMark
	EmptyTicketsMark
	WrongTicketsMark
	UnexpectedTicketsMark
	InvalidEntropySource
)

var codeNames = map[Code]string{
	BadSlot: "BadSlot", UnexpectedTicket: "UnexpectedTicket", BadTicketOrder: "BadTicketOrder",
	BadTicketProof: "BadTicketProof", BadTicketAttempt: "BadTicketAttempt", DuplicateTicket: "DuplicateTicket",
	TooManyTickets: "TooManyTickets", InvalidTicketSeal: "InvalidTicketSeal", TicketNotMatch: "TicketNotMatch",
	KeyNotMatch: "KeyNotMatch", TicketsOrKeysNone: "TicketsOrKeysNone", EmptyEpochMark: "EmptyEpochMark",
	WrongEpochMark: "WrongEpochMark", UnexpectedEpochMark: "UnexpectedEpochMark", EmptyTicketsMark: "EmptyTicketsMark",
	WrongTicketsMark: "WrongTicketsMark", UnexpectedTicketsMark: "UnexpectedTicketsMark",
	InvalidEntropySource: "InvalidEntropySource",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return "Unknown"
}

// Error pairs a Code with context, matching the header package's shape.
type Error struct {
	Code Code
	Msg  string
}

func (e *Error) Error() string { return "safrole: " + e.Code.String() + ": " + e.Msg }

func fail(code Code, msg string) error { return &Error{Code: code, Msg: msg} }

var errNilHandler = errors.New("safrole: nil handler")

const (
	ticketSealInputTag = "jam_ticket_seal"
	fallbackSealTag    = "jam_fallback_seal"
	entropyTag         = "jam_entropy"
)

// RingVerifyWorkers bounds the Ring-VRF verification fan-out spec §5 allows.
// 1 keeps verification sequential (the default, and what every test in this
// package relies on for deterministic ordering of early-exit errors).
var RingVerifyWorkers = 1

// Process runs the full 8-step algorithm of spec §4.E against h, mutating
// it only on success. offenders is the just-computed disputes offender set
// (ed25519 keys) for this block, used to null γ_k entries on epoch
// rotation.
func Process(cfg *params.Config, h *jamstate.Handler, header jamtypes.Header, tickets []jamtypes.Ticket, offenders []jamtypes.Ed25519Public) error {
	if h == nil {
		return errNilHandler
	}
	tau := h.Time()
	if header.Slot <= tau {
		return fail(BadSlot, "header slot does not advance time")
	}

	epoch := int(tau) / cfg.EpochLength
	m := int(tau) % cfg.EpochLength
	epochPrime := int(header.Slot) / cfg.EpochLength
	mPrime := int(header.Slot) % cfg.EpochLength
	newEpoch := epochPrime > epoch

	entropy := h.Entropy()
	prev, curr, next := h.Validators()
	safrole := h.Safrole()
	safrole.TicketAccumulator = append([]jamtypes.Ticket(nil), safrole.TicketAccumulator...)

	ticketsMarkAdmissible := !newEpoch && crossedCutoff(m, mPrime, cfg.TicketSubmissionEnds) && len(safrole.TicketAccumulator) == cfg.EpochLength

	if err := verifyTicketsExtrinsicShape(cfg, mPrime, tickets); err != nil {
		return err
	}

	if newEpoch {
		entropy[3], entropy[2], entropy[1] = entropy[2], entropy[1], entropy[0]

		newPrev := append([]jamtypes.ValidatorKey(nil), curr...)
		newCurr := append([]jamtypes.ValidatorKey(nil), safrole.PendingValidators...)
		newGammaK := append([]jamtypes.ValidatorKey(nil), next...)
		nullOffenders(newGammaK, offenders)

		bandersnatchKeys := make([]jamtypes.BandersnatchPublic, len(newGammaK))
		for i, v := range newGammaK {
			bandersnatchKeys[i] = v.Bandersnatch
		}
		commitment := crypto.RingCommitment(bandersnatchKeys)

		seal, sealErr := computeEpochSeal(cfg, epoch, epochPrime, m, entropy, newCurr, safrole.TicketAccumulator)
		if sealErr != nil {
			return sealErr
		}

		wantMark := jamtypes.EpochMark{
			Entropy1:   entropy[1],
			Entropy2:   entropy[2],
			Validators: make([]jamtypes.EpochMarkEntry, len(newGammaK)),
		}
		for i, v := range newGammaK {
			wantMark.Validators[i] = jamtypes.EpochMarkEntry{Bandersnatch: v.Bandersnatch, Ed25519: v.Ed25519}
		}
		if err := checkEpochMark(header.EpochMark, wantMark); err != nil {
			return err
		}

		safrole.TicketAccumulator = nil
		safrole.Seal = seal
		safrole.EpochRoot = commitment
		safrole.PendingValidators = newGammaK

		prev, curr = newPrev, newCurr
	} else if ticketsMarkAdmissible {
		mark := outsideIn(safrole.TicketAccumulator)
		if err := checkTicketsMark(header.TicketsMark, mark); err != nil {
			return err
		}
	} else if header.TicketsMark != nil {
		return fail(UnexpectedTicketsMark, "tickets mark present outside the admissible window")
	}

	if newEpoch && header.TicketsMark != nil {
		return fail(UnexpectedTicketsMark, "tickets mark present alongside epoch mark")
	}

	ring := bandersnatchRing(safrole.PendingValidators)
	ids, err := verifyTicketProofsForExtrinsic(ring, entropy, tickets)
	if err != nil {
		return err
	}
	for i := 1; i < len(ids); i++ {
		if !ids[i-1].Less(ids[i]) {
			return fail(BadTicketOrder, "ticket ids not strictly ascending")
		}
	}
	merged, err := mergeTickets(cfg, safrole.TicketAccumulator, tickets)
	if err != nil {
		return err
	}
	safrole.TicketAccumulator = merged

	i := int(header.Slot) % cfg.EpochLength
	if err := verifySeal(header, safrole.Seal, i, entropy, curr); err != nil {
		return err
	}
	if err := verifyEntropySource(header, safrole.Seal, i, &entropy, curr); err != nil {
		return err
	}

	h.SetEntropy(entropy)
	h.SetValidators(prev, curr, next)
	h.SetSafrole(safrole)
	h.SetTime(header.Slot)
	return nil
}

// crossedCutoff reports whether the submission window boundary S lies in
// (m, m'] within the same epoch, i.e. this block is the first to land at or
// after the cutoff.
func crossedCutoff(m, mPrime, s int) bool {
	return m < s && mPrime >= s
}

func nullOffenders(keys []jamtypes.ValidatorKey, offenders []jamtypes.Ed25519Public) {
	bad := make(map[jamtypes.Ed25519Public]struct{}, len(offenders))
	for _, o := range offenders {
		bad[o] = struct{}{}
	}
	for i := range keys {
		if _, ok := bad[keys[i].Ed25519]; ok {
			keys[i] = jamtypes.Zero()
		}
	}
}

func checkEpochMark(got *jamtypes.EpochMark, want jamtypes.EpochMark) error {
	if got == nil {
		return fail(EmptyEpochMark, "epoch mark required on epoch boundary")
	}
	if got.Entropy1 != want.Entropy1 || got.Entropy2 != want.Entropy2 || len(got.Validators) != len(want.Validators) {
		return fail(WrongEpochMark, "epoch mark content mismatch")
	}
	for i := range want.Validators {
		if got.Validators[i] != want.Validators[i] {
			return fail(WrongEpochMark, "epoch mark validator entry mismatch")
		}
	}
	return nil
}

func checkTicketsMark(got *jamtypes.TicketsMark, want []jamtypes.Hash) error {
	if got == nil {
		return fail(EmptyTicketsMark, "tickets mark required after submission cutoff with saturated accumulator")
	}
	if len(got.IDs) != len(want) {
		return fail(WrongTicketsMark, "tickets mark length mismatch")
	}
	for i := range want {
		if got.IDs[i] != want[i] {
			return fail(WrongTicketsMark, "tickets mark content mismatch")
		}
	}
	return nil
}

// outsideIn interleaves a sorted ticket accumulator as
// ids[0], ids[n-1], ids[1], ids[n-2], ... per spec §4.E step 4e.
func outsideIn(ts []jamtypes.Ticket) []jamtypes.Hash {
	n := len(ts)
	ids := make([]jamtypes.Hash, n)
	for i, t := range ts {
		ids[i] = crypto.VRFOutput(proofGamma(t.Proof))
	}
	out := make([]jamtypes.Hash, n)
	lo, hi := 0, n-1
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			out[i] = ids[lo]
			lo++
		} else {
			out[i] = ids[hi]
			hi--
		}
	}
	return out
}

func proofGamma(proof jamtypes.VrfSignature) [32]byte {
	rp, err := crypto.UnmarshalRingProof(proof)
	if err != nil {
		return [32]byte{}
	}
	return rp.Gamma
}

// computeEpochSeal implements spec §4.E step 4e.
func computeEpochSeal(cfg *params.Config, epoch, epochPrime, m int, entropy [4]jamtypes.Hash, currValidators []jamtypes.ValidatorKey, accumulator []jamtypes.Ticket) (jamstate.Seal, error) {
	if epochPrime == epoch+1 && m >= cfg.TicketSubmissionEnds && len(accumulator) == cfg.EpochLength {
		ids := outsideIn(accumulator)
		return jamstate.Seal{Kind: jamstate.SealTickets, Tickets: idsToTickets(accumulator, ids)}, nil
	}
	keys := make([]jamtypes.BandersnatchPublic, cfg.EpochLength)
	for i := 0; i < cfg.EpochLength; i++ {
		var ibuf [4]byte
		ibuf[0] = byte(i)
		ibuf[1] = byte(i >> 8)
		ibuf[2] = byte(i >> 16)
		ibuf[3] = byte(i >> 24)
		digest := crypto.Blake2b256(entropy[2][:], ibuf[:])
		idx := int(digest[0]) % len(currValidators)
		keys[i] = currValidators[idx].Bandersnatch
	}
	return jamstate.Seal{Kind: jamstate.SealKeys, Keys: keys}, nil
}

// idsToTickets re-orders the ticket accumulator to follow the outside-in id
// sequence so Seal.Tickets[i] is the ticket whose id is ids[i].
func idsToTickets(accumulator []jamtypes.Ticket, ids []jamtypes.Hash) []jamtypes.Ticket {
	byID := make(map[jamtypes.Hash]jamtypes.Ticket, len(accumulator))
	for _, t := range accumulator {
		byID[crypto.VRFOutput(proofGamma(t.Proof))] = t
	}
	out := make([]jamtypes.Ticket, len(ids))
	for i, id := range ids {
		out[i] = byID[id]
	}
	return out
}

// verifyTicketsExtrinsicShape implements the cutoff/cap/attempt-bound part
// of spec §4.E step 6, ahead of epoch-boundary processing (the cutoff check
// only needs the pre-rotation slot arithmetic, not γ_z or η).
func verifyTicketsExtrinsicShape(cfg *params.Config, mPrime int, tickets []jamtypes.Ticket) error {
	if mPrime >= cfg.TicketSubmissionEnds {
		if len(tickets) > 0 {
			return fail(UnexpectedTicket, "ticket extrinsic after submission cutoff")
		}
		return nil
	}
	if len(tickets) > cfg.MaxTicketsPerExtrinsic {
		return fail(TooManyTickets, "ticket extrinsic exceeds MAX_TICKETS_PER_EXTRINSIC")
	}
	for _, t := range tickets {
		if int(t.Attempt) >= cfg.TicketEntriesPerValidator {
			return fail(BadTicketAttempt, "ticket attempt out of range")
		}
	}
	return nil
}

// bandersnatchRing extracts the ordered Bandersnatch public keys that γ_z
// (the epoch root commitment) was built over, the actual ring submitted
// tickets must verify against (spec §4.E step 6).
func bandersnatchRing(validators []jamtypes.ValidatorKey) []jamtypes.BandersnatchPublic {
	ring := make([]jamtypes.BandersnatchPublic, len(validators))
	for i, v := range validators {
		ring[i] = v.Bandersnatch
	}
	return ring
}

// verifyTicketProofsForExtrinsic runs the Ring-VRF proof check for every
// submitted ticket against the real validator ring γ_z was committed over
// and η[2], per spec §4.E step 6.
func verifyTicketProofsForExtrinsic(ring []jamtypes.BandersnatchPublic, entropy [4]jamtypes.Hash, tickets []jamtypes.Ticket) ([]jamtypes.Hash, error) {
	if len(tickets) == 0 {
		return nil, nil
	}
	return verifyTicketProofs(ring, entropy, tickets)
}

// verifyTicketProofs runs Ring-VRF verification for every ticket, fanned
// out across RingVerifyWorkers goroutines and reassembled by original
// index before any order-sensitive check (spec §5).
func verifyTicketProofs(ring []jamtypes.BandersnatchPublic, entropy [4]jamtypes.Hash, tickets []jamtypes.Ticket) ([]jamtypes.Hash, error) {
	ids := make([]jamtypes.Hash, len(tickets))
	errs := make([]error, len(tickets))

	workers := RingVerifyWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(tickets) {
		workers = len(tickets)
	}
	if workers <= 1 {
		for i, t := range tickets {
			ids[i], errs[i] = verifyOneTicket(ring, entropy, t)
		}
	} else {
		var wg sync.WaitGroup
		idxCh := make(chan int)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range idxCh {
					ids[i], errs[i] = verifyOneTicket(ring, entropy, tickets[i])
				}
			}()
		}
		for i := range tickets {
			idxCh <- i
		}
		close(idxCh)
		wg.Wait()
	}
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return ids, nil
}

func verifyOneTicket(ring []jamtypes.BandersnatchPublic, entropy [4]jamtypes.Hash, t jamtypes.Ticket) (jamtypes.Hash, error) {
	proof, err := crypto.UnmarshalRingProof(t.Proof)
	if err != nil {
		return jamtypes.Hash{}, fail(BadTicketProof, "malformed ring proof")
	}
	input := append([]byte(ticketSealInputTag), entropy[2][:]...)
	input = append(input, t.Attempt)
	out, ok := crypto.RingVerify(ring, input, proof)
	if !ok {
		return jamtypes.Hash{}, fail(BadTicketProof, "ring vrf verification failed")
	}
	return out, nil
}

// mergeTickets implements the merge-sort-dedup-truncate step of spec §4.E
// step 6.
func mergeTickets(cfg *params.Config, accumulator []jamtypes.Ticket, fresh []jamtypes.Ticket) ([]jamtypes.Ticket, error) {
	combined := append(append([]jamtypes.Ticket(nil), accumulator...), fresh...)
	type idTicket struct {
		id jamtypes.Hash
		t  jamtypes.Ticket
	}
	withIDs := make([]idTicket, len(combined))
	for i, t := range combined {
		withIDs[i] = idTicket{id: crypto.VRFOutput(proofGamma(t.Proof)), t: t}
	}
	sort.Slice(withIDs, func(i, j int) bool { return withIDs[i].id.Less(withIDs[j].id) })
	out := make([]jamtypes.Ticket, 0, len(withIDs))
	var lastID jamtypes.Hash
	for i, wt := range withIDs {
		if i > 0 && wt.id == lastID {
			return nil, fail(DuplicateTicket, "duplicate ticket id across extrinsic and accumulator")
		}
		lastID = wt.id
		out = append(out, wt.t)
	}
	if len(out) > cfg.EpochLength {
		out = out[:cfg.EpochLength]
	}
	return out, nil
}

// verifySeal implements spec §4.E step 7's ticket/fallback seal check.
func verifySeal(header jamtypes.Header, seal jamstate.Seal, i int, entropy [4]jamtypes.Hash, curr []jamtypes.ValidatorKey) error {
	switch seal.Kind {
	case jamstate.SealTickets:
		if i >= len(seal.Tickets) {
			return fail(TicketsOrKeysNone, "seal slot index out of range")
		}
		ticket := seal.Tickets[i]
		input := append([]byte(ticketSealInputTag), entropy[3][:]...)
		input = append(input, ticket.Attempt)
		proof, err := ietfProofFromHeaderSeal(header.Seal)
		if err != nil {
			return fail(InvalidTicketSeal, "malformed seal proof")
		}
		if int(header.AuthorIndex) >= len(curr) {
			return fail(BadTicketProof, "author index out of range")
		}
		out, ok := crypto.IETFVerify(curr[header.AuthorIndex].Bandersnatch, input, proof)
		if !ok {
			return fail(InvalidTicketSeal, "ietf vrf verification failed")
		}
		expected := crypto.VRFOutput(proofGamma(ticket.Proof))
		if out != expected {
			return fail(TicketNotMatch, "seal vrf output does not match ticket id")
		}
		return nil
	case jamstate.SealKeys:
		if i >= len(seal.Keys) {
			return fail(TicketsOrKeysNone, "seal slot index out of range")
		}
		if int(header.AuthorIndex) >= len(curr) {
			return fail(KeyNotMatch, "author index out of range")
		}
		if curr[header.AuthorIndex].Bandersnatch != seal.Keys[i] {
			return fail(KeyNotMatch, "author bandersnatch key does not match fallback key")
		}
		return nil
	default:
		return fail(TicketsOrKeysNone, "seal not yet established")
	}
}

func ietfProofFromHeaderSeal(sig jamtypes.VrfSignature) (crypto.IETFProof, error) {
	if len(sig) != 96 {
		return crypto.IETFProof{}, errors.New("seal: wrong ietf proof length")
	}
	var p crypto.IETFProof
	copy(p.Gamma[:], sig[0:32])
	copy(p.Challenge[:], sig[32:64])
	copy(p.Response[:], sig[64:96])
	return p, nil
}

// verifyEntropySource implements spec §4.E step 7's trailing entropy mix.
func verifyEntropySource(header jamtypes.Header, seal jamstate.Seal, i int, entropy *[4]jamtypes.Hash, curr []jamtypes.ValidatorKey) error {
	var sealOutput jamtypes.Hash
	switch seal.Kind {
	case jamstate.SealTickets:
		sealOutput = crypto.VRFOutput(proofGamma(seal.Tickets[i].Proof))
	case jamstate.SealKeys:
		proof, err := ietfProofFromHeaderSeal(header.Seal)
		if err != nil {
			return fail(InvalidEntropySource, "malformed seal for entropy derivation")
		}
		input := append([]byte(fallbackSealTag), entropy[3][:]...)
		out, ok := crypto.IETFVerify(curr[header.AuthorIndex].Bandersnatch, input, proof)
		if !ok {
			return fail(InvalidEntropySource, "ietf vrf verification failed for fallback seal")
		}
		sealOutput = out
	}
	input := append([]byte(entropyTag), sealOutput[:]...)
	proof, err := ietfProofFromHeaderSeal(header.EntropySource)
	if err != nil {
		return fail(InvalidEntropySource, "malformed entropy source proof")
	}
	out, ok := crypto.IETFVerify(curr[header.AuthorIndex].Bandersnatch, input, proof)
	if !ok {
		return fail(InvalidEntropySource, "entropy source vrf verification failed")
	}
	entropy[0] = crypto.Blake2b256(entropy[0][:], out[:])
	return nil
}
