// Package disputes implements spec.md §4.F: verdict/culprit/fault
// validation, offender-set maintenance, and availability invalidation for
// reports whose verdict resolved bad or wonky. Grounded structurally on the
// teacher's judgement-classification shape (count positive votes, classify,
// update a violation set, reject malformed evidence) from
// pkg/consensus/attester_slashing.go — the classification rule itself
// (exactly 2V/3+1 good, exactly 0 bad, exactly V/3 wonky) has no
// beacon-chain analogue and is original domain logic.
package disputes

import (
	"errors"
	"fmt"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// Code enumerates the DisputesError variants of spec.md §7.
type Code int

const (
	_ Code = iota
	OffenderAlreadyReported
	BadVerdictSignature
	NotSortedOrUniqueJudgements
	BadJudgementAge
	BadVoteCount
	NotSortedOrUniqueVerdicts
	NotSortedOrUniqueCulprits
	NotSortedOrUniqueFaults
	TargetAlreadyJudged
	InsufficientCulprits
	MissingFault
)

var codeNames = map[Code]string{
	OffenderAlreadyReported: "OffenderAlreadyReported", BadVerdictSignature: "BadVerdictSignature",
	NotSortedOrUniqueJudgements: "NotSortedOrUniqueJudgements", BadJudgementAge: "BadJudgementAge",
	BadVoteCount: "BadVoteCount", NotSortedOrUniqueVerdicts: "NotSortedOrUniqueVerdicts",
	NotSortedOrUniqueCulprits: "NotSortedOrUniqueCulprits", NotSortedOrUniqueFaults: "NotSortedOrUniqueFaults",
	TargetAlreadyJudged: "TargetAlreadyJudged", InsufficientCulprits: "InsufficientCulprits",
	MissingFault: "MissingFault",
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

func (e *Error) Error() string { return fmt.Sprintf("disputes: %s: %s", e.Code, e.Msg) }

func fail(code Code, msg string) error { return &Error{Code: code, Msg: msg} }

var errNilHandler = errors.New("disputes: nil handler")

const judgementSignTag = "jam_judgement"

// Result carries the observable effects of one disputes-extrinsic
// application: the offenders newly reported this block, and the report
// hashes whose availability slot must be invalidated.
type Result struct {
	NewOffenders []jamtypes.Ed25519Public
	Invalidate   map[jamtypes.Hash]struct{}
}

// Process validates ex and mutates h's disputes and availability segments
// accordingly, per spec §4.F. tau is not consulted: a judgement's
// validator set is chosen from the verdict's declared age alone (0 selects
// κ, any other age selects κ⁻).
func Process(cfg *params.Config, h *jamstate.Handler, ex jamtypes.DisputesExtrinsic, tau jamtypes.TimeSlot) (Result, error) {
	if h == nil {
		return Result{}, errNilHandler
	}
	if err := checkSorted(ex); err != nil {
		return Result{}, err
	}

	prev, curr, _ := h.Validators()
	disputes := h.Disputes()

	alreadyJudged := make(map[jamtypes.Hash]struct{})
	for _, hh := range disputes.Good {
		alreadyJudged[hh] = struct{}{}
	}
	for _, hh := range disputes.Bad {
		alreadyJudged[hh] = struct{}{}
	}
	for _, hh := range disputes.Wonky {
		alreadyJudged[hh] = struct{}{}
	}

	reportedOffenders := make(map[jamtypes.Ed25519Public]struct{}, len(disputes.Offenders))
	for _, o := range disputes.Offenders {
		reportedOffenders[o] = struct{}{}
	}

	type classified struct {
		target jamtypes.Hash
		class  int // 0 good, 1 bad, 2 wonky
	}
	var classifications []classified

	for _, v := range ex.Verdicts {
		if _, dup := alreadyJudged[v.Target]; dup {
			return Result{}, fail(TargetAlreadyJudged, "verdict target already present in ψ")
		}
		alreadyJudged[v.Target] = struct{}{}
		if len(v.Judgements) != cfg.ValidatorsSuperMajority {
			return Result{}, fail(BadVoteCount, "verdict does not carry exactly 2V/3+1 judgements")
		}

		// Age 0 means the disputed report belongs to the current epoch
		// (validators κ); any nonzero age reaches back into the previous
		// epoch's set (κ⁻) — disputes only ever need to distinguish "this
		// epoch" from "one epoch ago" since a report's availability window
		// never spans further back than that.
		validators := curr
		if v.Age != 0 {
			validators = prev
		}

		positive := 0
		for _, j := range v.Judgements {
			if int(j.ValidatorIndex) >= len(validators) {
				return Result{}, fail(BadVerdictSignature, "judgement validator index out of range")
			}
			msg := append([]byte(judgementSignTag), v.Target[:]...)
			if !crypto.VerifyEd25519(validators[j.ValidatorIndex].Ed25519, msg, j.Signature[:]) {
				return Result{}, fail(BadVerdictSignature, "judgement signature invalid")
			}
			if j.Valid {
				positive++
			}
		}

		class, err := classify(cfg, positive)
		if err != nil {
			return Result{}, err
		}
		classifications = append(classifications, classified{target: v.Target, class: class})
	}

	culpritsByTarget := make(map[jamtypes.Hash][]jamtypes.Culprit)
	for _, c := range ex.Culprits {
		if _, ok := reportedOffenders[c.Key]; ok {
			return Result{}, fail(OffenderAlreadyReported, "culprit key already an offender")
		}
		msg := append([]byte("jam_culprit"), c.Target[:]...)
		if !crypto.VerifyEd25519(c.Key, msg, c.Signature[:]) {
			return Result{}, fail(BadVerdictSignature, "culprit signature invalid")
		}
		culpritsByTarget[c.Target] = append(culpritsByTarget[c.Target], c)
	}

	faultsByTarget := make(map[jamtypes.Hash][]jamtypes.Fault)
	for _, f := range ex.Faults {
		if _, ok := reportedOffenders[f.Key]; ok {
			return Result{}, fail(OffenderAlreadyReported, "fault key already an offender")
		}
		msg := append([]byte("jam_fault"), f.Target[:]...)
		if !crypto.VerifyEd25519(f.Key, msg, f.Signature[:]) {
			return Result{}, fail(BadVerdictSignature, "fault signature invalid")
		}
		faultsByTarget[f.Target] = append(faultsByTarget[f.Target], f)
	}

	invalidate := make(map[jamtypes.Hash]struct{})
	var newOffenders []jamtypes.Ed25519Public

	for _, cl := range classifications {
		switch cl.class {
		case 1: // bad
			if len(culpritsByTarget[cl.target]) < 2 {
				return Result{}, fail(InsufficientCulprits, "bad verdict requires at least two culprits")
			}
			if len(faultsByTarget[cl.target]) == 0 {
				return Result{}, fail(MissingFault, "bad verdict requires a contradicting fault")
			}
			disputes.Bad = append(disputes.Bad, cl.target)
			invalidate[cl.target] = struct{}{}
		case 0: // good
			// A good verdict's judgements are unanimous by construction
			// (2V/3+1 positive out of exactly 2V/3+1 judgements), so there
			// is no dissenting judge within the verdict itself requiring a
			// matching fault; any culprits/faults submitted alongside it
			// are still absorbed into the offender set below.
			disputes.Good = append(disputes.Good, cl.target)
		case 2: // wonky
			disputes.Wonky = append(disputes.Wonky, cl.target)
			invalidate[cl.target] = struct{}{}
		}
		for _, c := range culpritsByTarget[cl.target] {
			if _, ok := reportedOffenders[c.Key]; !ok {
				reportedOffenders[c.Key] = struct{}{}
				newOffenders = append(newOffenders, c.Key)
			}
		}
		for _, f := range faultsByTarget[cl.target] {
			if _, ok := reportedOffenders[f.Key]; !ok {
				reportedOffenders[f.Key] = struct{}{}
				newOffenders = append(newOffenders, f.Key)
			}
		}
	}

	disputes.Offenders = append(disputes.Offenders, newOffenders...)
	h.SetDisputes(disputes)

	availability := h.Availability()
	for i := range availability {
		if availability[i].Report == nil {
			continue
		}
		if _, drop := invalidate[availability[i].Report.PackageHash]; drop {
			availability[i] = jamstate.AvailabilitySlot{}
		}
	}
	h.SetAvailability(availability)

	return Result{NewOffenders: newOffenders, Invalidate: invalidate}, nil
}

// classify implements spec §4.F's three-way vote classification.
func classify(cfg *params.Config, positive int) (int, error) {
	good := cfg.ValidatorsSuperMajority
	wonky := cfg.ValidatorsCount / 3
	switch positive {
	case good:
		return 0, nil
	case 0:
		return 1, nil
	case wonky:
		return 2, nil
	default:
		return 0, fail(BadVoteCount, "verdict positive-vote count matches none of good/bad/wonky thresholds")
	}
}

// checkSorted enforces spec §4.F's canonical-key ordering requirements.
func checkSorted(ex jamtypes.DisputesExtrinsic) error {
	for i := 1; i < len(ex.Verdicts); i++ {
		if !ex.Verdicts[i-1].Target.Less(ex.Verdicts[i].Target) {
			return fail(NotSortedOrUniqueVerdicts, "verdicts not sorted by target hash")
		}
	}
	for _, v := range ex.Verdicts {
		for i := 1; i < len(v.Judgements); i++ {
			if v.Judgements[i-1].ValidatorIndex >= v.Judgements[i].ValidatorIndex {
				return fail(NotSortedOrUniqueJudgements, "judgements not sorted by validator index")
			}
		}
	}
	for i := 1; i < len(ex.Culprits); i++ {
		if !keyLess(ex.Culprits[i-1].Key, ex.Culprits[i].Key) {
			return fail(NotSortedOrUniqueCulprits, "culprits not sorted by key")
		}
	}
	for i := 1; i < len(ex.Faults); i++ {
		if !keyLess(ex.Faults[i-1].Key, ex.Faults[i].Key) {
			return fail(NotSortedOrUniqueFaults, "faults not sorted by key")
		}
	}
	return nil
}

func keyLess(a, b jamtypes.Ed25519Public) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
