package preimages

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func newHandlerWithSolicited(id jamtypes.ServiceID, blob []byte) *jamstate.Handler {
	s := jamstate.New(params.Tiny)
	h := jamstate.NewHandler(s)
	acc := &jamstate.ServiceAccount{
		Storage:   map[jamtypes.Hash][]byte{},
		Preimages: map[jamtypes.Hash][]byte{},
		Lookup:    map[jamtypes.Hash][]jamtypes.TimeSlot{},
	}
	acc.Lookup[crypto.Blake2b256(blob)] = nil
	h.SetService(id, acc)
	return h
}

func TestProcessStoresSolicitedPreimage(t *testing.T) {
	blob := []byte("hello world")
	h := newHandlerWithSolicited(1, blob)

	err := Process(h, []jamtypes.Preimage{{ServiceID: 1, Blob: blob}}, 5)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	acc, _ := h.Service(1)
	key := crypto.Blake2b256(blob)
	if string(acc.Preimages[key]) != string(blob) {
		t.Fatal("expected blob stored")
	}
	if len(acc.Lookup[key]) != 1 || acc.Lookup[key][0] != 5 {
		t.Fatalf("expected lookup stamped with slot 5, got %v", acc.Lookup[key])
	}
}

func TestProcessRejectsUnsolicitedPreimage(t *testing.T) {
	h := jamstate.NewHandler(jamstate.New(params.Tiny))
	h.SetService(1, &jamstate.ServiceAccount{
		Storage:   map[jamtypes.Hash][]byte{},
		Preimages: map[jamtypes.Hash][]byte{},
		Lookup:    map[jamtypes.Hash][]jamtypes.TimeSlot{},
	})

	err := Process(h, []jamtypes.Preimage{{ServiceID: 1, Blob: []byte("never solicited")}}, 1)
	if err == nil {
		t.Fatal("expected rejection of unsolicited preimage")
	}
}

func TestProcessRejectsAlreadyProvided(t *testing.T) {
	blob := []byte("dup")
	h := newHandlerWithSolicited(1, blob)
	if err := Process(h, []jamtypes.Preimage{{ServiceID: 1, Blob: blob}}, 1); err != nil {
		t.Fatalf("first provide should succeed: %v", err)
	}
	if err := Process(h, []jamtypes.Preimage{{ServiceID: 1, Blob: blob}}, 2); err == nil {
		t.Fatal("expected rejection of already-provided preimage")
	}
}

func TestProcessRejectsUnsortedExtrinsic(t *testing.T) {
	a := []byte("a")
	b := []byte("bb")
	h := newHandlerWithSolicited(1, a)
	acc, _ := h.Service(1)
	acc.Lookup[crypto.Blake2b256(b)] = nil
	h.SetService(1, acc)

	var first, second jamtypes.Preimage = jamtypes.Preimage{ServiceID: 1, Blob: a}, jamtypes.Preimage{ServiceID: 1, Blob: b}
	ordered := []jamtypes.Preimage{first, second}
	if !crypto.Blake2b256(a).Less(crypto.Blake2b256(b)) {
		ordered = []jamtypes.Preimage{second, first}
	}
	unsorted := []jamtypes.Preimage{ordered[1], ordered[0]}

	if err := Process(h, unsorted, 1); err == nil {
		t.Fatal("expected rejection of unsorted preimages extrinsic")
	}
}
