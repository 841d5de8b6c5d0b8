package guarantees

import (
	"crypto/ed25519"
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/codec"
	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

type keyPair struct {
	pub  jamtypes.Ed25519Public
	priv ed25519.PrivateKey
}

func genKeys(t *testing.T, n int) []keyPair {
	t.Helper()
	out := make([]keyPair, n)
	for i := 0; i < n; i++ {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			t.Fatal(err)
		}
		var pk jamtypes.Ed25519Public
		copy(pk[:], pub)
		out[i] = keyPair{pub: pk, priv: priv}
	}
	return out
}

// scenario builds a self-consistent single-core guarantee setup: one
// recent-history entry, one authorizer in core 0's pool, and a work
// report whose context matches that entry.
func scenario(t *testing.T, cfg *params.Config, keys []keyPair) (*jamstate.Handler, jamtypes.WorkReport, jamtypes.TimeSlot) {
	t.Helper()
	s := jamstate.New(cfg)
	for i, k := range keys {
		s.CurrValidators[i].Ed25519 = k.pub
	}

	anchor := jamtypes.Hash{1, 1, 1}
	peaks := []jamtypes.Hash{{2}, {3}}
	s.RecentHistory = []jamstate.RecentHistoryEntry{{HeaderHash: anchor, StateRoot: jamtypes.Hash{4}, MMRPeaks: peaks}}

	authHash := jamtypes.Hash{5}
	s.AuthPools = [][]jamtypes.Hash{{authHash}, {}}

	h := jamstate.NewHandler(s)

	tau := jamtypes.TimeSlot(cfg.RotationPeriod)
	report := jamtypes.WorkReport{
		PackageHash:     jamtypes.Hash{6},
		ExportsRoot:     jamtypes.Hash{7},
		CoreIndex:       0,
		AuthorizerHash:  authHash,
		Context: jamtypes.WorkContext{
			Anchor:           anchor,
			StateRoot:        jamtypes.Hash{4},
			BeefyMMRRoot:     superPeakForTest(peaks),
			LookupAnchorSlot: tau,
		},
	}
	return h, report, tau
}

func superPeakForTest(peaks []jamtypes.Hash) jamtypes.Hash {
	acc := peaks[len(peaks)-1]
	for i := len(peaks) - 2; i >= 0; i-- {
		acc = crypto.Blake2b256(peaks[i][:], acc[:])
	}
	return acc
}

func signGuarantee(kp keyPair, idx int, report jamtypes.WorkReport) jamtypes.GuarantorSignature {
	digest := crypto.Blake2b256(codec.MarshalWorkReport(report))
	msg := append([]byte(guaranteeSignTag), digest[:]...)
	sig := ed25519.Sign(kp.priv, msg)
	var out [64]byte
	copy(out[:], sig)
	return jamtypes.GuarantorSignature{ValidatorIndex: jamtypes.ValidatorIndex(idx), Signature: out}
}

func assignedToCore(cfg *params.Config, keys []keyPair, seed jamtypes.Hash, tau, slot jamtypes.TimeSlot, core int) []int {
	vkeys := make([]jamtypes.ValidatorKey, len(keys))
	for i, k := range keys {
		vkeys[i].Ed25519 = k.pub
	}
	assignment := assignCores(cfg, vkeys, seed, tau, slot)
	var out []int
	for i, c := range assignment {
		if c == core {
			out = append(out, i)
		}
	}
	return out
}

func TestProcessAcceptsWellFormedGuarantee(t *testing.T) {
	cfg := params.Tiny
	keys := genKeys(t, cfg.ValidatorsCount)
	h, report, tau := scenario(t, cfg, keys)

	seed := rotationSeed(cfg, h, tau, tau)
	signers := assignedToCore(cfg, keys, seed, tau, tau, 0)
	if len(signers) < 2 {
		t.Fatalf("rotation assigned fewer than 2 validators to core 0: %v", signers)
	}

	var sigs []jamtypes.GuarantorSignature
	for _, i := range signers[:2] {
		sigs = append(sigs, signGuarantee(keys[i], i, report))
	}

	ex := []jamtypes.Guarantee{{Report: report, Slot: tau, Signatures: sigs}}
	res, err := Process(cfg, h, ex, tau)
	if err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if len(res.Reported) != 1 || res.Reported[0].PackageHash != report.PackageHash {
		t.Fatalf("unexpected reported list: %+v", res.Reported)
	}
	if h.Availability()[0].Report == nil {
		t.Fatal("core not marked engaged after guarantee")
	}
}

func TestProcessRejectsCoreEngaged(t *testing.T) {
	cfg := params.Tiny
	keys := genKeys(t, cfg.ValidatorsCount)
	h, report, tau := scenario(t, cfg, keys)

	avail := h.Availability()
	avail[0] = jamstate.AvailabilitySlot{Report: &jamtypes.WorkReport{CoreIndex: 0}}
	h.SetAvailability(avail)

	seed := rotationSeed(cfg, h, tau, tau)
	signers := assignedToCore(cfg, keys, seed, tau, tau, 0)
	var sigs []jamtypes.GuarantorSignature
	for _, i := range signers[:2] {
		sigs = append(sigs, signGuarantee(keys[i], i, report))
	}

	ex := []jamtypes.Guarantee{{Report: report, Slot: tau, Signatures: sigs}}
	_, err := Process(cfg, h, ex, tau)
	ge, ok := err.(*Error)
	if !ok || ge.Code != CoreEngaged {
		t.Fatalf("expected CoreEngaged, got %v", err)
	}
}

func TestProcessRejectsWrongAssignment(t *testing.T) {
	cfg := params.Tiny
	keys := genKeys(t, cfg.ValidatorsCount)
	h, report, tau := scenario(t, cfg, keys)

	seed := rotationSeed(cfg, h, tau, tau)
	unassigned := -1
	assignment := func() []int {
		vkeys := make([]jamtypes.ValidatorKey, len(keys))
		for i, k := range keys {
			vkeys[i].Ed25519 = k.pub
		}
		return assignCores(cfg, vkeys, seed, tau, tau)
	}()
	for i, c := range assignment {
		if c != 0 {
			unassigned = i
			break
		}
	}
	if unassigned == -1 {
		t.Skip("every validator assigned to core 0 in this tiny configuration")
	}

	sigs := []jamtypes.GuarantorSignature{signGuarantee(keys[unassigned], unassigned, report)}
	// pad with a correctly-assigned validator so the count check passes.
	signers := assignedToCore(cfg, keys, seed, tau, tau, 0)
	sigs = append(sigs, signGuarantee(keys[signers[0]], signers[0], report))

	ex := []jamtypes.Guarantee{{Report: report, Slot: tau, Signatures: sigs}}
	_, err := Process(cfg, h, ex, tau)
	ge, ok := err.(*Error)
	if !ok || ge.Code != WrongAssignment {
		t.Fatalf("expected WrongAssignment, got %v", err)
	}
}

func TestProcessRejectsOutOfOrderGuarantees(t *testing.T) {
	cfg := params.Tiny
	keys := genKeys(t, cfg.ValidatorsCount)
	h, report, tau := scenario(t, cfg, keys)

	r2 := report
	r2.CoreIndex = 0
	ex := []jamtypes.Guarantee{
		{Report: jamtypes.WorkReport{CoreIndex: 1}, Slot: tau},
		{Report: r2, Slot: tau},
	}
	_, err := Process(cfg, h, ex, tau)
	ge, ok := err.(*Error)
	if !ok || ge.Code != OutOfOrderGuarantee {
		t.Fatalf("expected OutOfOrderGuarantee, got %v", err)
	}
}
