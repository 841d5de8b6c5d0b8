// Package recenthistory implements spec.md §4.J's recent-history
// maintenance: a partial entry for the just-included block is pushed
// before accumulation, then finalized once the accumulation root is
// known, and the ring buffer is truncated to a fixed depth. Grounded on
// the teacher's MMR peak handling conventions; the push-then-finalize
// two-phase shape has no direct beacon-chain analogue (finality there is
// checkpoint-based, not per-block) and is original domain logic.
package recenthistory

import (
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/merkle"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// PushPartial appends the just-included block's {header_hash,
// parent_state_root} as a new ring-buffer entry with no reported
// packages and no MMR peaks yet, truncating the oldest entry once the
// buffer exceeds cfg.RecentHistorySize.
func PushPartial(cfg *params.Config, h *jamstate.Handler, headerHash, parentStateRoot jamtypes.Hash) {
	hist := append(h.RecentHistory(), jamstate.RecentHistoryEntry{
		HeaderHash: headerHash,
		StateRoot:  parentStateRoot,
	})
	if len(hist) > cfg.RecentHistorySize {
		hist = hist[len(hist)-cfg.RecentHistorySize:]
	}
	h.SetRecentHistory(hist)
}

// Finalize fills in the most recent entry's reported packages and
// appends accumulationRoot to the MMR peak sequence, once accumulation
// for this block has run.
func Finalize(h *jamstate.Handler, reported []jamtypes.SegmentRootLookupEntry, accumulationRoot jamtypes.Hash) {
	hist := h.RecentHistory()
	if len(hist) == 0 {
		return
	}
	last := len(hist) - 1
	hist[last].ReportedPackages = reported
	hist[last].MMRPeaks = merkle.AppendPeak(hist[last].MMRPeaks, accumulationRoot)
	h.SetRecentHistory(hist)
}
