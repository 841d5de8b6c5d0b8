package authorization

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func TestUpdateConsumesAndPushes(t *testing.T) {
	cfg := params.Tiny
	h := jamstate.NewHandler(jamstate.New(cfg))

	used := jamtypes.Hash{1}
	next := jamtypes.Hash{2}
	h.SetAuthPools([][]jamtypes.Hash{{used}, {}})
	h.SetAuthQueues([][]jamtypes.Hash{make([]jamtypes.Hash, cfg.EpochLength), make([]jamtypes.Hash, cfg.EpochLength)})
	queues := h.AuthQueues()
	queues[0][0] = next
	h.SetAuthQueues(queues)

	Update(cfg, h, 0, map[int]jamtypes.Hash{0: used})

	pool := h.AuthPools()[0]
	if len(pool) != 1 || pool[0] != next {
		t.Fatalf("expected consumed authorizer replaced by queued one, got %+v", pool)
	}
}

func TestUpdateCapsPoolSize(t *testing.T) {
	cfg := params.Tiny
	h := jamstate.NewHandler(jamstate.New(cfg))

	pool := make([]jamtypes.Hash, cfg.MaxAuthPool)
	for i := range pool {
		pool[i] = jamtypes.Hash{byte(i + 1)}
	}
	h.SetAuthPools([][]jamtypes.Hash{pool, {}})
	queues := make([][]jamtypes.Hash, 2)
	queues[0] = make([]jamtypes.Hash, cfg.EpochLength)
	queues[0][0] = jamtypes.Hash{99}
	queues[1] = make([]jamtypes.Hash, cfg.EpochLength)
	h.SetAuthQueues(queues)

	Update(cfg, h, 0, nil)

	got := h.AuthPools()[0]
	if len(got) != cfg.MaxAuthPool {
		t.Fatalf("expected pool capped at %d, got %d", cfg.MaxAuthPool, len(got))
	}
	if got[len(got)-1] != (jamtypes.Hash{99}) {
		t.Fatalf("expected newest entry retained, got %+v", got)
	}
}
