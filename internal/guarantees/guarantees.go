// Package guarantees implements spec.md §4.H: work-report validity
// checks, the validator-to-core rotation assignment, and the
// consume-once availability handoff. The rotation itself is grounded on
// the teacher's beacon-chain committee shuffling in
// pkg/consensus/shuf_shuffling.go, adapted via internal/shuffle; the
// Code/Error/pure-Process shape follows the same pattern used across
// internal/disputes and internal/safrole.
package guarantees

import (
	"fmt"

	"github.com/bloppan/vinwolf-sub001/internal/codec"
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/merkle"
	"github.com/bloppan/vinwolf-sub001/internal/params"
	"github.com/bloppan/vinwolf-sub001/internal/shuffle"
)

// Code enumerates the ReportError variants of spec.md §7 that this
// package is responsible for.
type Code int

const (
	_ Code = iota
	BadCoreIndex
	FutureReportSlot
	ReportEpochBeforeLast
	InsufficientGuarantees
	OutOfOrderGuarantee
	WrongAssignment
	CoreEngaged
	AnchorNotRecent
	BadStateRoot
	BadBeefyMmrRoot
	BadLookupAnchorSlot
	CoreUnauthorized
	BadSignature
)

var codeNames = map[Code]string{
	BadCoreIndex: "BadCoreIndex", FutureReportSlot: "FutureReportSlot",
	ReportEpochBeforeLast: "ReportEpochBeforeLast", InsufficientGuarantees: "InsufficientGuarantees",
	OutOfOrderGuarantee: "OutOfOrderGuarantee", WrongAssignment: "WrongAssignment",
	CoreEngaged: "CoreEngaged", AnchorNotRecent: "AnchorNotRecent",
	BadStateRoot: "BadStateRoot", BadBeefyMmrRoot: "BadBeefyMmrRoot",
	BadLookupAnchorSlot: "BadLookupAnchorSlot", CoreUnauthorized: "CoreUnauthorized",
	BadSignature: "BadSignature",
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

func (e *Error) Error() string { return fmt.Sprintf("guarantees: %s: %s", e.Code, e.Msg) }

func fail(code Code, msg string) error { return &Error{Code: code, Msg: msg} }

const guaranteeSignTag = "jam_guarantee"

// Reported is one emitted (package_hash, exports_root) pair.
type Reported struct {
	PackageHash jamtypes.Hash
	ExportsRoot jamtypes.Hash
}

// Result carries the observable effects of one guarantees-extrinsic
// application.
type Result struct {
	Reported  []Reported
	Reporters []jamtypes.Ed25519Public
}

// Process validates ex against h's current state and tau, writing newly
// guaranteed reports into ρ, per spec §4.H.
func Process(cfg *params.Config, h *jamstate.Handler, ex []jamtypes.Guarantee, tau jamtypes.TimeSlot) (Result, error) {
	for i := 1; i < len(ex); i++ {
		if ex[i-1].Report.CoreIndex >= ex[i].Report.CoreIndex {
			return Result{}, fail(OutOfOrderGuarantee, "guarantees not strictly ascending by core index")
		}
	}

	_, curr, _ := h.Validators()
	keys := nullOffenders(curr, h.Disputes().Offenders)
	history := h.RecentHistory()
	authPools := h.AuthPools()
	availability := h.Availability()

	rotationFloor := cfg.RotationPeriod * (int(tau)/cfg.RotationPeriod - 1)

	var reported []Reported
	reporterSet := make(map[jamtypes.Ed25519Public]struct{})
	var reporters []jamtypes.Ed25519Public

	for _, g := range ex {
		report := g.Report
		core := int(report.CoreIndex)
		if core >= cfg.CoresCount {
			return Result{}, fail(BadCoreIndex, "core index out of range")
		}
		if g.Slot > tau {
			return Result{}, fail(FutureReportSlot, "guarantee slot in the future")
		}
		if int(g.Slot) <= rotationFloor {
			return Result{}, fail(ReportEpochBeforeLast, "guarantee slot precedes the last rotation window")
		}
		if availability[core].Report != nil {
			return Result{}, fail(CoreEngaged, "core already has a pending report")
		}

		entry, ok := findHistory(history, report.Context.Anchor)
		if !ok {
			return Result{}, fail(AnchorNotRecent, "report anchor not found in recent history")
		}
		if entry.StateRoot != report.Context.StateRoot {
			return Result{}, fail(BadStateRoot, "report state root does not match anchor entry")
		}
		if merkle.SuperPeak(entry.MMRPeaks) != report.Context.BeefyMMRRoot {
			return Result{}, fail(BadBeefyMmrRoot, "report beefy mmr root does not match anchor entry")
		}
		if int(report.Context.LookupAnchorSlot)+cfg.MaxAgeLookupAnchor < int(tau) {
			return Result{}, fail(BadLookupAnchorSlot, "lookup anchor slot too old")
		}

		if !authorizerPresent(authPools, core, report.AuthorizerHash) {
			return Result{}, fail(CoreUnauthorized, "authorizer not present in core's pool")
		}

		if len(g.Signatures) != 2 && len(g.Signatures) != 3 {
			return Result{}, fail(InsufficientGuarantees, "guarantee must carry 2 or 3 signatures")
		}

		seed := rotationSeed(cfg, h, tau, g.Slot)
		assignment := assignCores(cfg, keys, seed, tau, g.Slot)

		digest := crypto.Blake2b256(codec.MarshalWorkReport(report))
		msg := append([]byte(guaranteeSignTag), digest[:]...)

		for _, sig := range g.Signatures {
			if int(sig.ValidatorIndex) >= len(keys) {
				return Result{}, fail(BadSignature, "signature validator index out of range")
			}
			if assignment[sig.ValidatorIndex] != core {
				return Result{}, fail(WrongAssignment, "signer not assigned to this core for the covering rotation")
			}
			if !crypto.VerifyEd25519(keys[sig.ValidatorIndex].Ed25519, msg, sig.Signature[:]) {
				return Result{}, fail(BadSignature, "guarantee signature invalid")
			}
			key := keys[sig.ValidatorIndex].Ed25519
			if _, seen := reporterSet[key]; !seen {
				reporterSet[key] = struct{}{}
				reporters = append(reporters, key)
			}
		}

		availability[core] = jamstate.AvailabilitySlot{Report: &report, Timeout: tau}
		reported = append(reported, Reported{PackageHash: report.PackageHash, ExportsRoot: report.ExportsRoot})
	}

	h.SetAvailability(availability)
	return Result{Reported: reported, Reporters: reporters}, nil
}

// nullOffenders returns a copy of keys with every offender's Ed25519 key
// zeroed, so no signature can ever verify against it regardless of the
// rotation's assignment.
func nullOffenders(keys []jamtypes.ValidatorKey, offenders []jamtypes.Ed25519Public) []jamtypes.ValidatorKey {
	bad := make(map[jamtypes.Ed25519Public]struct{}, len(offenders))
	for _, o := range offenders {
		bad[o] = struct{}{}
	}
	out := append([]jamtypes.ValidatorKey(nil), keys...)
	for i := range out {
		if _, ok := bad[out[i].Ed25519]; ok {
			out[i].Ed25519 = jamtypes.Ed25519Public{}
		}
	}
	return out
}

func findHistory(history []jamstate.RecentHistoryEntry, anchor jamtypes.Hash) (jamstate.RecentHistoryEntry, bool) {
	for _, e := range history {
		if e.HeaderHash == anchor {
			return e, true
		}
	}
	return jamstate.RecentHistoryEntry{}, false
}

func authorizerPresent(pools [][]jamtypes.Hash, core int, hash jamtypes.Hash) bool {
	if core >= len(pools) {
		return false
	}
	for _, h := range pools[core] {
		if h == hash {
			return true
		}
	}
	return false
}

// rotationSeed picks the entropy snapshot covering slot: η[2] when slot
// falls in the epoch containing tau, η[3] when it falls in the one
// before — the only two epochs a guarantee's slot can legally reach
// given the (ROTATION_PERIOD·(⌊τ/ROTATION_PERIOD⌋−1), τ] bound.
func rotationSeed(cfg *params.Config, h *jamstate.Handler, tau, slot jamtypes.TimeSlot) jamtypes.Hash {
	entropy := h.Entropy()
	if int(slot)/cfg.EpochLength == int(tau)/cfg.EpochLength {
		return entropy[2]
	}
	return entropy[3]
}

// assignCores computes, for every validator index, the core it is
// assigned to guarantee for the rotation covering slot: base assignment
// c_i = ⌊C·i/V⌋, permuted by the swap-or-not shuffle under seed, then
// cyclically rotated by ⌊(slot mod E)/ROTATION_PERIOD⌋.
func assignCores(cfg *params.Config, keys []jamtypes.ValidatorKey, seed jamtypes.Hash, tau, slot jamtypes.TimeSlot) []int {
	v := len(keys)
	base := make([]int, v)
	for i := 0; i < v; i++ {
		base[i] = cfg.CoresCount * i / v
	}
	perm := shuffle.List(v, seed)
	permuted := make([]int, v)
	for i := 0; i < v; i++ {
		permuted[i] = base[perm[i]]
	}
	shift := (int(slot) % cfg.EpochLength) / cfg.RotationPeriod
	out := make([]int, v)
	for i := 0; i < v; i++ {
		out[i] = permuted[(i+shift)%v]
	}
	return out
}
