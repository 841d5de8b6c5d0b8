// Package accumulation implements spec.md §4.I's orchestration layer:
// partitioning newly-available reports into immediately-accumulatable
// and queued sets, the dependency fixpoint Q, per-service Accumulate
// invocation, the accumulation root, and unconditional ready-queue/
// accumulation-history maintenance.
//
// Guest-code execution itself (decoding a service's stored program blob
// and driving internal/pvm.Machine to completion) is factored behind the
// Invoker interface rather than built inline here: this package owns
// dependency resolution and bookkeeping, which is real and fully
// exercised by its tests; an Invoker plugs in the actual interpreter run
// the way internal/pvm.Run's Dispatch callback plugs in host-call
// semantics. The default invoker is a deterministic stand-in documented
// in DESIGN.md alongside the PVM ISA's own documented simplification.
package accumulation

import (
	"sort"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// DeferredTransfer is a transfer produced during one service's
// accumulate, executed against the recipient's OnTransfer entry-point
// after all accumulates for this block complete.
type DeferredTransfer struct {
	From, To jamtypes.ServiceID
	Amount   uint64
	Memo     []byte
	GasLimit uint64
}

// Outcome is the result of invoking one service's Accumulate entry-point.
type Outcome struct {
	OutputHash *jamtypes.Hash
	Transfers  []DeferredTransfer
	GasUsed    uint64
}

// Invoker drives the PVM for one service's Accumulate or OnTransfer
// entry-point.
type Invoker interface {
	Accumulate(cfg *params.Config, slot jamtypes.TimeSlot, serviceID jamtypes.ServiceID, operands []jamtypes.WorkResult, acc *jamstate.ServiceAccount) (Outcome, error)
	OnTransfer(cfg *params.Config, slot jamtypes.TimeSlot, serviceID jamtypes.ServiceID, transfers []DeferredTransfer, acc *jamstate.ServiceAccount) (Outcome, error)
}

// Result carries the observable effects of one block's accumulation.
type Result struct {
	Root      jamtypes.Hash
	Outcomes  map[jamtypes.ServiceID]Outcome
}

// Process partitions newlyAvailable into W!/W_Q, resolves the queued
// set's dependencies against ready + accumulated history via the
// fixpoint Q, invokes Accumulate for every service appearing in
// W* = W! ‖ Q(...), executes deferred transfers, computes the
// accumulation root, and unconditionally shifts the ready queue and
// accumulation history, per spec §4.I.
func Process(cfg *params.Config, h *jamstate.Handler, inv Invoker, slot jamtypes.TimeSlot, newlyAvailable []jamtypes.WorkReport) (Result, error) {
	accumulatedSet := make(map[jamtypes.Hash]struct{})
	for _, epochHashes := range h.AccumulationHistory() {
		for _, hh := range epochHashes {
			accumulatedSet[hh] = struct{}{}
		}
	}

	var immediate []jamtypes.WorkReport
	var queuedNew []jamstate.ReadyRecord
	for _, r := range newlyAvailable {
		deps := r.Dependencies()
		if len(deps) == 0 {
			immediate = append(immediate, r)
			continue
		}
		unresolved := subtract(deps, accumulatedSet)
		queuedNew = append(queuedNew, jamstate.ReadyRecord{Report: r, UnresolvedDeps: unresolved})
	}

	// m is the slot due for wholesale replacement this block; every other
	// slot's records are carried forward and merely edited below (spec
	// §4.I: ϑ'[m] = leftover, ϑ'[i] = edit(ϑ[i], X) for i≠m). Each record
	// keeps track of which slot it came from so the fixpoint below can
	// resolve dependencies across the whole queue while still writing
	// survivors back to their own slot instead of collapsing everyone
	// into m.
	m := int(slot) % cfg.EpochLength
	readyQueue := h.ReadyQueue()

	var pending []pendingRecord
	for i, slotRecords := range readyQueue {
		for _, rec := range slotRecords {
			pending = append(pending, pendingRecord{rec: rec, origin: i})
		}
	}
	for _, rec := range queuedNew {
		pending = append(pending, pendingRecord{rec: rec, origin: m})
	}

	wantHashes := make(map[jamtypes.Hash]struct{}, len(immediate))
	for _, r := range immediate {
		wantHashes[r.WorkPackageHash] = struct{}{}
	}
	for _, r := range immediate {
		accumulatedSet[r.WorkPackageHash] = struct{}{}
	}
	for i := range pending {
		pending[i].rec.UnresolvedDeps = subtract(pending[i].rec.UnresolvedDeps, accumulatedSet)
	}

	var queued []jamtypes.WorkReport
	for {
		var ready []pendingRecord
		var stillPending []pendingRecord
		for _, pr := range pending {
			if len(pr.rec.UnresolvedDeps) == 0 {
				ready = append(ready, pr)
			} else {
				stillPending = append(stillPending, pr)
			}
		}
		if len(ready) == 0 {
			pending = stillPending
			break
		}
		for _, pr := range ready {
			queued = append(queued, pr.rec.Report)
			accumulatedSet[pr.rec.Report.WorkPackageHash] = struct{}{}
		}
		for i := range stillPending {
			stillPending[i].rec.UnresolvedDeps = subtract(stillPending[i].rec.UnresolvedDeps, accumulatedSet)
		}
		pending = stillPending
	}

	wStar := append(append([]jamtypes.WorkReport(nil), immediate...), queued...)

	operandsByService := make(map[jamtypes.ServiceID][]jamtypes.WorkResult)
	for _, r := range wStar {
		for _, res := range r.Results {
			operandsByService[res.ServiceID] = append(operandsByService[res.ServiceID], res)
		}
	}

	var serviceIDs []jamtypes.ServiceID
	for id := range operandsByService {
		serviceIDs = append(serviceIDs, id)
	}
	sort.Slice(serviceIDs, func(i, j int) bool { return serviceIDs[i] < serviceIDs[j] })

	outcomes := make(map[jamtypes.ServiceID]Outcome, len(serviceIDs))
	var allTransfers []DeferredTransfer

	for _, id := range serviceIDs {
		acc, ok := h.Service(id)
		if !ok {
			continue
		}
		outcome, err := inv.Accumulate(cfg, slot, id, operandsByService[id], acc)
		if err != nil {
			return Result{}, err
		}
		outcomes[id] = outcome
		allTransfers = append(allTransfers, outcome.Transfers...)
		h.SetService(id, acc)
	}

	for _, tr := range allTransfers {
		acc, ok := h.Service(tr.To)
		if !ok {
			continue
		}
		if _, err := inv.OnTransfer(cfg, slot, tr.To, []DeferredTransfer{tr}, acc); err != nil {
			return Result{}, err
		}
		h.SetService(tr.To, acc)
	}

	var pairs []rootPair
	for id, o := range outcomes {
		if o.OutputHash != nil {
			pairs = append(pairs, rootPair{id: id, hash: *o.OutputHash})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	newHistoryEntry := make([]jamtypes.Hash, 0, len(queued)+len(immediate))
	for _, r := range wStar {
		newHistoryEntry = append(newHistoryEntry, r.WorkPackageHash)
	}
	sort.Slice(newHistoryEntry, func(i, j int) bool { return newHistoryEntry[i].Less(newHistoryEntry[j]) })

	hist := h.AccumulationHistory()
	hist = append(hist, newHistoryEntry)
	if len(hist) > cfg.EpochLength {
		hist = hist[len(hist)-cfg.EpochLength:]
	}
	h.SetAccumulationHistory(hist)

	newReadyQueue := make([][]jamstate.ReadyRecord, len(readyQueue))
	for _, pr := range pending {
		newReadyQueue[pr.origin] = append(newReadyQueue[pr.origin], pr.rec)
	}
	h.SetReadyQueue(newReadyQueue)

	return Result{Root: accumulationRoot(pairs), Outcomes: outcomes}, nil
}

// pendingRecord tags a not-yet-accumulated record with the ready-queue
// slot it was read from, so the fixpoint below can resolve dependencies
// across every slot at once while still writing each surviving record
// back to its own slot rather than merging everything into m.
type pendingRecord struct {
	rec    jamstate.ReadyRecord
	origin int
}

type rootPair struct {
	id   jamtypes.ServiceID
	hash jamtypes.Hash
}

// accumulationRoot folds (service_id, output_hash) pairs into a single
// Blake2-256 root by sequential pairwise hashing in ascending
// service-id order. Like merkle.SuperPeak, this is original domain
// logic documented as a placeholder pending the full state-trie
// Merkleization in internal/merkle (§4.K); spec.md does not specify a
// bagging formula for this root at this level of detail.
func accumulationRoot(pairs []rootPair) jamtypes.Hash {
	if len(pairs) == 0 {
		return jamtypes.Hash{}
	}
	acc := crypto.Blake2b256(encodeServiceID(pairs[0].id), pairs[0].hash[:])
	for _, p := range pairs[1:] {
		acc = crypto.Blake2b256(acc[:], encodeServiceID(p.id), p.hash[:])
	}
	return acc
}

func encodeServiceID(id jamtypes.ServiceID) []byte {
	b := make([]byte, 4)
	b[0] = byte(id)
	b[1] = byte(id >> 8)
	b[2] = byte(id >> 16)
	b[3] = byte(id >> 24)
	return b
}

func subtract(deps []jamtypes.Hash, done map[jamtypes.Hash]struct{}) []jamtypes.Hash {
	var out []jamtypes.Hash
	for _, d := range deps {
		if _, ok := done[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}
