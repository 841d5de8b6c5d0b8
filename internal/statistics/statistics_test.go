package statistics

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func TestUpdateCountsAuthorAndSigners(t *testing.T) {
	cfg := params.Tiny
	h := jamstate.NewHandler(jamstate.New(cfg))

	header := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{AuthorIndex: 1}}
	ex := jamtypes.Extrinsic{
		Tickets:   []jamtypes.Ticket{{}, {}},
		Preimages: []jamtypes.Preimage{{ServiceID: 7, Blob: make([]byte, 10)}},
		Guarantees: []jamtypes.Guarantee{{Signatures: []jamtypes.GuarantorSignature{
			{ValidatorIndex: 2}, {ValidatorIndex: 3},
		}}},
		Assurances: []jamtypes.Assurance{{ValidatorIndex: 4}},
	}

	Update(cfg, h, header, ex, false, nil, nil)

	stats := h.Statistics()
	if stats.Curr[1].Blocks != 1 || stats.Curr[1].Tickets != 2 || stats.Curr[1].Preimages != 1 {
		t.Fatalf("author stats not recorded: %+v", stats.Curr[1])
	}
	if stats.Curr[2].Guarantees != 1 || stats.Curr[3].Guarantees != 1 {
		t.Fatalf("guarantor stats not recorded: %+v %+v", stats.Curr[2], stats.Curr[3])
	}
	if stats.Curr[4].Assurances != 1 {
		t.Fatalf("assurance stats not recorded: %+v", stats.Curr[4])
	}
	if stats.Services[7].ProvidedCount != 1 || stats.Services[7].ProvidedSize != 10 {
		t.Fatalf("service stats not recorded: %+v", stats.Services[7])
	}
}

func TestUpdateRollsOverAtEpochBoundary(t *testing.T) {
	cfg := params.Tiny
	h := jamstate.NewHandler(jamstate.New(cfg))

	header := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{AuthorIndex: 0}}
	Update(cfg, h, header, jamtypes.Extrinsic{}, false, nil, nil)
	if h.Statistics().Curr[0].Blocks != 1 {
		t.Fatal("first update did not record a block")
	}

	Update(cfg, h, header, jamtypes.Extrinsic{}, true, nil, nil)
	stats := h.Statistics()
	if stats.Prev[0].Blocks != 1 {
		t.Fatalf("epoch rollover did not move curr into prev: %+v", stats.Prev[0])
	}
	if stats.Curr[0].Blocks != 1 {
		t.Fatalf("new epoch did not start counting from zero plus this block: %+v", stats.Curr[0])
	}
}
