// Package statistics implements spec.md §4.J's first bullet: per-
// validator counters that accumulate across an epoch and roll over at
// the boundary, and per-core/per-service counters that reset every
// block. Grounded on the teacher's epoch-boundary rollover shape in
// pkg/consensus/epoch_boundary.go (a dedicated boundary-processing entry
// point separate from per-block accounting), adapted from a balance/
// attestation rollover to this protocol's block/ticket/preimage/
// guarantee/assurance counters.
package statistics

import (
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// ServiceEffect carries the accumulation-side-effect counters
// (internal/accumulation is the only producer) folded into a service's
// per-block statistics.
type ServiceEffect struct {
	ServiceID       jamtypes.ServiceID
	RefinementGas   uint64
	RefinementCount uint32
	AccumulateGas   uint64
	AccumulateCount uint32
	OnTransfersGas  uint64
	OnTransfersCount uint32
}

// CoreEffect carries the per-core gas/import/export counters a
// guarantee's work-report contributes.
type CoreEffect struct {
	CoreIndex     int
	GasUsed       uint64
	Imports       uint32
	Exports       uint32
	ExtrinsicSize uint64
	BundleSize    uint64
}

// Update folds one block's extrinsics and accumulation side effects into
// h's statistics segment, per spec §4.J. newEpoch rolls curr into prev
// and resets curr before applying this block's counters — mirroring the
// protocol's "accumulate over an epoch, then roll at the boundary" rule.
func Update(cfg *params.Config, h *jamstate.Handler, header jamtypes.Header, ex jamtypes.Extrinsic, newEpoch bool, cores []CoreEffect, services []ServiceEffect) {
	stats := h.Statistics()

	if newEpoch {
		stats.Prev = stats.Curr
		stats.Curr = make([]jamstate.ValidatorStatRecord, cfg.ValidatorsCount)
	}
	if stats.Curr == nil {
		stats.Curr = make([]jamstate.ValidatorStatRecord, cfg.ValidatorsCount)
	}

	author := int(header.AuthorIndex)
	if author < len(stats.Curr) {
		stats.Curr[author].Blocks++
		stats.Curr[author].Tickets += uint32(len(ex.Tickets))
		stats.Curr[author].Preimages += uint32(len(ex.Preimages))
		for _, p := range ex.Preimages {
			stats.Curr[author].PreimagesSize += uint64(len(p.Blob))
		}
	}
	for _, g := range ex.Guarantees {
		for _, sig := range g.Signatures {
			if int(sig.ValidatorIndex) < len(stats.Curr) {
				stats.Curr[sig.ValidatorIndex].Guarantees++
			}
		}
	}
	for _, a := range ex.Assurances {
		if int(a.ValidatorIndex) < len(stats.Curr) {
			stats.Curr[a.ValidatorIndex].Assurances++
		}
	}

	cstats := make([]jamstate.CoreStatRecord, cfg.CoresCount)
	for _, c := range cores {
		if c.CoreIndex < 0 || c.CoreIndex >= cfg.CoresCount {
			continue
		}
		cstats[c.CoreIndex] = jamstate.CoreStatRecord{
			GasUsed: c.GasUsed, Imports: c.Imports, Exports: c.Exports,
			ExtrinsicSize: c.ExtrinsicSize, BundleSize: c.BundleSize,
		}
	}
	stats.Cores = cstats

	sstats := make(map[jamtypes.ServiceID]jamstate.ServiceStatRecord, len(services))
	for _, s := range services {
		rec := sstats[s.ServiceID]
		rec.RefinementGas += s.RefinementGas
		rec.RefinementCount += s.RefinementCount
		rec.AccumulateGas += s.AccumulateGas
		rec.AccumulateCount += s.AccumulateCount
		rec.OnTransfersGas += s.OnTransfersGas
		rec.OnTransfersCount += s.OnTransfersCount
		sstats[s.ServiceID] = rec
	}
	for _, p := range ex.Preimages {
		rec := sstats[p.ServiceID]
		rec.ProvidedCount++
		rec.ProvidedSize += uint64(len(p.Blob))
		sstats[p.ServiceID] = rec
	}
	stats.Services = sstats

	h.SetStatistics(stats)
}
