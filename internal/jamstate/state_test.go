package jamstate

import (
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func TestNewShapesSegmentsToConfig(t *testing.T) {
	s := New(params.Tiny)
	if len(s.CurrValidators) != params.Tiny.ValidatorsCount {
		t.Fatalf("curr validators: got %d want %d", len(s.CurrValidators), params.Tiny.ValidatorsCount)
	}
	if len(s.Availability) != params.Tiny.CoresCount {
		t.Fatalf("availability: got %d want %d", len(s.Availability), params.Tiny.CoresCount)
	}
	if len(s.AuthPools) != params.Tiny.CoresCount || len(s.AuthQueues) != params.Tiny.CoresCount {
		t.Fatal("auth pools/queues not sized to core count")
	}
	if len(s.AccumulationHistory) != params.Tiny.EpochLength {
		t.Fatalf("accumulation history: got %d want %d", len(s.AccumulationHistory), params.Tiny.EpochLength)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(params.Tiny)
	s.CurrValidators[0].Ed25519[0] = 0xAB
	s.Services[1] = newServiceAccount()
	s.Services[1].Balance = 100

	clone := s.Clone()
	clone.CurrValidators[0].Ed25519[0] = 0xCD
	clone.Services[1].Balance = 200

	if s.CurrValidators[0].Ed25519[0] != 0xAB {
		t.Fatal("mutating clone affected original validators")
	}
	if s.Services[1].Balance != 100 {
		t.Fatal("mutating clone affected original service account")
	}
}

func TestSerializeFromKeyvalsRoundTrip(t *testing.T) {
	s := New(params.Tiny)
	s.Time = 42
	s.Entropy[0] = jamtypes.Hash{1, 2, 3}
	s.CurrValidators[0].Ed25519[0] = 9
	s.Safrole.Seal = Seal{Kind: SealKeys, Keys: make([]jamtypes.BandersnatchPublic, params.Tiny.EpochLength)}
	s.Safrole.Seal.Keys[0][0] = 7
	s.Disputes.Bad = append(s.Disputes.Bad, jamtypes.Hash{9, 9, 9})

	acc := newServiceAccount()
	acc.Balance = 12345
	acc.CodeHash = jamtypes.Hash{4, 4, 4}
	acc.Storage[jamtypes.Hash{1}] = []byte("hello")
	acc.Preimages[jamtypes.Hash{2}] = []byte("world")
	acc.Lookup[jamtypes.Hash{3}] = []jamtypes.TimeSlot{1, 2, 3}
	s.Services[7] = acc

	kv := s.Serialize()
	back, err := FromKeyvals(params.Tiny, kv)
	if err != nil {
		t.Fatal(err)
	}

	if back.Time != s.Time {
		t.Fatalf("time: got %d want %d", back.Time, s.Time)
	}
	if back.Entropy[0] != s.Entropy[0] {
		t.Fatal("entropy mismatch")
	}
	if back.CurrValidators[0].Ed25519[0] != 9 {
		t.Fatal("validators mismatch")
	}
	if back.Safrole.Seal.Kind != SealKeys || back.Safrole.Seal.Keys[0][0] != 7 {
		t.Fatal("safrole seal mismatch")
	}
	if len(back.Disputes.Bad) != 1 || back.Disputes.Bad[0] != (jamtypes.Hash{9, 9, 9}) {
		t.Fatal("disputes mismatch")
	}

	gotAcc, ok := back.Services[7]
	if !ok {
		t.Fatal("service 7 missing after round trip")
	}
	if gotAcc.Balance != 12345 || gotAcc.CodeHash != (jamtypes.Hash{4, 4, 4}) {
		t.Fatal("service info mismatch")
	}
	if string(gotAcc.Storage[jamtypes.Hash{1}]) != "hello" {
		t.Fatal("storage entry lost in round trip")
	}
	if string(gotAcc.Preimages[jamtypes.Hash{2}]) != "world" {
		t.Fatal("preimage entry lost in round trip")
	}
	slots := gotAcc.Lookup[jamtypes.Hash{3}]
	if len(slots) != 3 || slots[0] != 1 || slots[1] != 2 || slots[2] != 3 {
		t.Fatal("lookup entry lost in round trip")
	}
}

func TestSerializeDeterministic(t *testing.T) {
	s := New(params.Tiny)
	s.Services[3] = newServiceAccount()
	s.Services[1] = newServiceAccount()

	kv1 := s.Serialize()
	kv2 := s.Serialize()
	if len(kv1) != len(kv2) {
		t.Fatal("non-deterministic key count")
	}
	for k, v := range kv1 {
		if string(kv2[k]) != string(v) {
			t.Fatal("non-deterministic serialization")
		}
	}
}

func TestHandlerSegmentAccessors(t *testing.T) {
	h := NewHandler(New(params.Tiny))
	h.SetTime(5)
	if h.Time() != 5 {
		t.Fatal("time accessor round trip failed")
	}
	acc := newServiceAccount()
	acc.Balance = 1
	h.SetService(1, acc)
	got, ok := h.Service(1)
	if !ok || got.Balance != 1 {
		t.Fatal("service accessor round trip failed")
	}
	h.DeleteService(1)
	if _, ok := h.Service(1); ok {
		t.Fatal("service not deleted")
	}
}
