// Package authorization implements spec.md §4.J's authorizer-pool
// maintenance: the authorizer consumed by an accepted guarantee is
// removed from its core's pool, and the queue's entry for the current
// slot is pushed in, capped at a fixed pool size with FIFO eviction.
// Grounded on the same ring-buffer-with-cap idiom used by
// internal/recenthistory; authorizer pools have no beacon-chain analogue
// in the teacher, so the push/cap/evict shape is original domain logic
// applied consistently with the rest of this codebase's ring buffers.
package authorization

import (
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

// Update consumes, for every core with an accepted guarantee this block,
// the authorizer named by consumed[core] from α[core] (removing its
// first occurrence), then pushes φ[core][slot mod E] onto α[core],
// evicting the oldest entry once the pool reaches cfg.MaxAuthPool.
func Update(cfg *params.Config, h *jamstate.Handler, slot jamtypes.TimeSlot, consumed map[int]jamtypes.Hash) {
	pools := h.AuthPools()
	queues := h.AuthQueues()
	i := int(slot) % cfg.EpochLength

	out := make([][]jamtypes.Hash, len(pools))
	for c := range pools {
		pool := append([]jamtypes.Hash(nil), pools[c]...)
		if hash, ok := consumed[c]; ok {
			pool = removeFirst(pool, hash)
		}
		if c < len(queues) && len(queues[c]) > 0 {
			next := queues[c][i%len(queues[c])]
			pool = append(pool, next)
		}
		if len(pool) > cfg.MaxAuthPool {
			pool = pool[len(pool)-cfg.MaxAuthPool:]
		}
		out[c] = pool
	}
	h.SetAuthPools(out)
}

func removeFirst(pool []jamtypes.Hash, hash jamtypes.Hash) []jamtypes.Hash {
	for i, h := range pool {
		if h == hash {
			return append(append([]jamtypes.Hash(nil), pool[:i]...), pool[i+1:]...)
		}
	}
	return pool
}
