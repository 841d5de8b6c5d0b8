// Package stf wires every component package into the single ordered
// pipeline spec.md §2 describes for one state-transition-function
// invocation. No teacher file plays this exact conductor role; the shape
// — one Apply entry point calling ordered sub-phases and returning a
// typed ProcessError, with σ left unmutated on any failure — is grounded
// on the layered validate-then-commit idiom the rest of this module's
// packages already follow (header.Verify, safrole.Process, and so on),
// generalized to a top-level block-application loop.
package stf

import (
	"github.com/bloppan/vinwolf-sub001/internal/accumulation"
	"github.com/bloppan/vinwolf-sub001/internal/assurances"
	"github.com/bloppan/vinwolf-sub001/internal/authorization"
	"github.com/bloppan/vinwolf-sub001/internal/disputes"
	"github.com/bloppan/vinwolf-sub001/internal/guarantees"
	"github.com/bloppan/vinwolf-sub001/internal/header"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
	"github.com/bloppan/vinwolf-sub001/internal/preimages"
	"github.com/bloppan/vinwolf-sub001/internal/recenthistory"
	"github.com/bloppan/vinwolf-sub001/internal/safrole"
	"github.com/bloppan/vinwolf-sub001/internal/statistics"
)

// Stage names the pipeline step a ProcessError originated from, spec §7.
type Stage int

const (
	_ Stage = iota
	StageHeader
	StageDisputes
	StageSafrole
	StageAssurances
	StageGuarantees
	StageAccumulation
	StagePreimages
)

func (s Stage) String() string {
	switch s {
	case StageHeader:
		return "Header"
	case StageDisputes:
		return "Disputes"
	case StageSafrole:
		return "Safrole"
	case StageAssurances:
		return "Assurances"
	case StageGuarantees:
		return "Guarantees"
	case StageAccumulation:
		return "Accumulation"
	case StagePreimages:
		return "Preimages"
	default:
		return "Unknown"
	}
}

// ProcessError wraps the failing stage's own error, matching spec §7's
// per-component error sum type. σ is left unchanged whenever Apply
// returns one: every stage below either fully commits or fully aborts.
type ProcessError struct {
	Stage Stage
	Err   error
}

func (e *ProcessError) Error() string { return e.Stage.String() + ": " + e.Err.Error() }
func (e *ProcessError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) *ProcessError { return &ProcessError{Stage: stage, Err: err} }

// ParentInfo is the parent block's header hash and post-state root, used
// by the header verifier's parent-linkage check (§4.D step 5).
type ParentInfo = header.ParentInfo

// Markers surfaces the side effects a caller (a fuzzer harness, a test,
// a CLI) typically wants to report back after one successful Apply.
type Markers struct {
	ReportedPackages []guarantees.Reported
	AccumulationRoot jamtypes.Hash
	NewOffenders     []jamtypes.Ed25519Public
}

// Apply runs the full control-flow pipeline of spec.md §2 against one
// block. Every stage runs against a clone of h's state (jamstate.State's
// Clone, the same mechanism the teacher-adapted state package already
// exposes for independent working copies); h itself is only overwritten,
// in one shot, once every stage has succeeded. A failure at any stage
// therefore leaves h completely untouched, matching spec §7's "no
// partial commit" rule without needing per-stage undo logic.
func Apply(cfg *params.Config, h *jamstate.Handler, block jamtypes.Block, inv accumulation.Invoker, parent ParentInfo, isBootstrap bool) (Markers, error) {
	working := jamstate.NewHandler(h.State().Clone())
	tau := working.Time()

	if err := header.Verify(cfg, block.Header, block.Extrinsic, tau, parent, isBootstrap); err != nil {
		return Markers{}, fail(StageHeader, err)
	}

	recenthistory.PushPartial(cfg, working, header.ComputeHeaderHash(block.Header), block.Header.ParentStateRoot)

	disputesResult, err := disputes.Process(cfg, working, block.Extrinsic.Disputes, tau)
	if err != nil {
		return Markers{}, fail(StageDisputes, err)
	}

	if err := safrole.Process(cfg, working, block.Header, block.Extrinsic.Tickets, working.Disputes().Offenders); err != nil {
		return Markers{}, fail(StageSafrole, err)
	}

	assuranceResult, err := assurances.Process(cfg, working, block.Extrinsic.Assurances)
	if err != nil {
		return Markers{}, fail(StageAssurances, err)
	}

	guaranteeResult, err := guarantees.Process(cfg, working, block.Extrinsic.Guarantees, block.Header.Slot)
	if err != nil {
		return Markers{}, fail(StageGuarantees, err)
	}

	accResult, err := accumulation.Process(cfg, working, inv, block.Header.Slot, assuranceResult.Reported)
	if err != nil {
		return Markers{}, fail(StageAccumulation, err)
	}

	reportedLookup := make([]jamtypes.SegmentRootLookupEntry, 0, len(guaranteeResult.Reported))
	for _, r := range guaranteeResult.Reported {
		reportedLookup = append(reportedLookup, jamtypes.SegmentRootLookupEntry{
			WorkPackageHash: r.PackageHash,
			SegmentRoot:     r.ExportsRoot,
		})
	}
	recenthistory.Finalize(working, reportedLookup, accResult.Root)

	if err := preimages.Process(working, block.Extrinsic.Preimages, block.Header.Slot); err != nil {
		return Markers{}, fail(StagePreimages, err)
	}

	consumed := make(map[int]jamtypes.Hash, len(block.Extrinsic.Guarantees))
	for _, g := range block.Extrinsic.Guarantees {
		consumed[int(g.Report.CoreIndex)] = g.Report.AuthorizerHash
	}
	authorization.Update(cfg, working, block.Header.Slot, consumed)

	newEpoch := int(block.Header.Slot)/cfg.EpochLength > int(tau)/cfg.EpochLength
	statistics.Update(cfg, working, block.Header, block.Extrinsic, newEpoch, coreEffects(block.Extrinsic.Guarantees), serviceEffects(accResult))

	*h.State() = *working.State()

	return Markers{
		ReportedPackages: guaranteeResult.Reported,
		AccumulationRoot: accResult.Root,
		NewOffenders:     disputesResult.NewOffenders,
	}, nil
}

func coreEffects(gs []jamtypes.Guarantee) []statistics.CoreEffect {
	out := make([]statistics.CoreEffect, 0, len(gs))
	for _, g := range gs {
		var bundleSize uint64
		for _, r := range g.Report.Results {
			bundleSize += uint64(len(r.Output))
		}
		out = append(out, statistics.CoreEffect{
			CoreIndex:     int(g.Report.CoreIndex),
			Imports:       uint32(len(g.Report.SegmentRootLookup)),
			Exports:       uint32(len(g.Report.Results)),
			ExtrinsicSize: uint64(len(g.Report.AuthOutput)),
			BundleSize:    bundleSize,
		})
	}
	return out
}

func serviceEffects(acc accumulation.Result) []statistics.ServiceEffect {
	out := make([]statistics.ServiceEffect, 0, len(acc.Outcomes))
	for id, o := range acc.Outcomes {
		out = append(out, statistics.ServiceEffect{
			ServiceID:       id,
			AccumulateGas:   o.GasUsed,
			AccumulateCount: 1,
		})
	}
	return out
}
