package safrole

import (
	"math/big"
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/crypto"
	"github.com/bloppan/vinwolf-sub001/internal/jamstate"
	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
	"github.com/bloppan/vinwolf-sub001/internal/params"
)

func marshalIETFProof(p crypto.IETFProof) jamtypes.VrfSignature {
	out := make([]byte, 0, 96)
	out = append(out, p.Gamma[:]...)
	out = append(out, p.Challenge[:]...)
	out = append(out, p.Response[:]...)
	return jamtypes.VrfSignature(out)
}

// buildFallbackSealBlock constructs a minimal but internally-consistent
// block whose seal uses the fallback-key variant (no tickets in play), with
// validator 0 as both author and sole Keys-seal holder for the target slot.
func buildFallbackSealBlock(t *testing.T, cfg *params.Config, slot jamtypes.TimeSlot) (*jamstate.Handler, jamtypes.Header) {
	t.Helper()
	sk := big.NewInt(777001)
	pubPoint := crypto.ScalarMul(crypto.Generator(), sk)
	pub := crypto.Serialize(pubPoint)

	s := jamstate.New(cfg)
	s.CurrValidators[0].Bandersnatch = pub
	s.Safrole.Seal = jamstate.Seal{Kind: jamstate.SealKeys, Keys: make([]jamtypes.BandersnatchPublic, cfg.EpochLength)}
	i := int(slot) % cfg.EpochLength
	s.Safrole.Seal.Keys[i] = pub

	h := jamstate.NewHandler(s)
	entropy := h.Entropy()

	fallbackInput := append([]byte(fallbackSealTag), entropy[3][:]...)
	fallbackProof := crypto.IETFSign(sk, pubPoint, fallbackInput)
	sealOutput, ok := crypto.IETFVerify(pub, fallbackInput, fallbackProof)
	if !ok {
		t.Fatal("setup: fallback proof failed self-check")
	}

	entropyInput := append([]byte(entropyTag), sealOutput[:]...)
	entropyProof := crypto.IETFSign(sk, pubPoint, entropyInput)

	header := jamtypes.Header{
		UnsignedHeader: jamtypes.UnsignedHeader{
			Slot:          slot,
			AuthorIndex:   0,
			EntropySource: marshalIETFProof(entropyProof),
		},
		Seal: marshalIETFProof(fallbackProof),
	}
	return h, header
}

func TestProcessRejectsNonAdvancingSlot(t *testing.T) {
	h := jamstate.NewHandler(jamstate.New(params.Tiny))
	h.SetTime(5)
	header := jamtypes.Header{UnsignedHeader: jamtypes.UnsignedHeader{Slot: 5}}
	err := Process(params.Tiny, h, header, nil, nil)
	se, ok := err.(*Error)
	if !ok || se.Code != BadSlot {
		t.Fatalf("expected BadSlot, got %v", err)
	}
}

func TestProcessAcceptsFallbackSealAndAdvancesTime(t *testing.T) {
	h, header := buildFallbackSealBlock(t, params.Tiny, 1)
	if err := Process(params.Tiny, h, header, nil, nil); err != nil {
		t.Fatalf("expected acceptance, got %v", err)
	}
	if h.Time() != 1 {
		t.Fatalf("time not advanced: got %d", h.Time())
	}
}

func TestProcessRejectsWrongFallbackKey(t *testing.T) {
	h, header := buildFallbackSealBlock(t, params.Tiny, 1)
	// Corrupt the fallback key at the target slot so it no longer matches
	// the author's bandersnatch key.
	safrole := h.Safrole()
	i := int(header.Slot) % params.Tiny.EpochLength
	safrole.Seal.Keys[i] = jamtypes.BandersnatchPublic{0xFF}
	h.SetSafrole(safrole)

	err := Process(params.Tiny, h, header, nil, nil)
	se, ok := err.(*Error)
	if !ok || se.Code != KeyNotMatch {
		t.Fatalf("expected KeyNotMatch, got %v", err)
	}
}

func TestProcessRejectsTooManyTickets(t *testing.T) {
	h, header := buildFallbackSealBlock(t, params.Tiny, 1)
	tickets := make([]jamtypes.Ticket, params.Tiny.MaxTicketsPerExtrinsic+1)
	err := Process(params.Tiny, h, header, tickets, nil)
	se, ok := err.(*Error)
	if !ok || se.Code != TooManyTickets {
		t.Fatalf("expected TooManyTickets, got %v", err)
	}
}

func TestProcessRejectsUnexpectedTicketAfterCutoff(t *testing.T) {
	cfg := params.Tiny
	h, header := buildFallbackSealBlock(t, cfg, jamtypes.TimeSlot(cfg.TicketSubmissionEnds))
	tickets := []jamtypes.Ticket{{Attempt: 0, Proof: []byte{1, 2, 3}}}
	err := Process(cfg, h, header, tickets, nil)
	se, ok := err.(*Error)
	if !ok || se.Code != UnexpectedTicket {
		t.Fatalf("expected UnexpectedTicket, got %v", err)
	}
}

// TestProcessAcceptsTicketSignedWithRealValidatorRing builds a ticket via
// crypto.RingSign over the actual pending-validator Bandersnatch ring (not
// a fabricated stand-in) and checks Process accepts it, guarding against
// ticket verification silently degrading to a ring with no correspondence
// to real validator membership.
func TestProcessAcceptsTicketSignedWithRealValidatorRing(t *testing.T) {
	cfg := params.Tiny
	s := jamstate.New(cfg)

	skA, skB, skC := big.NewInt(1001), big.NewInt(1002), big.NewInt(1003)
	pointA := crypto.ScalarMul(crypto.Generator(), skA)
	pointB := crypto.ScalarMul(crypto.Generator(), skB)
	pointC := crypto.ScalarMul(crypto.Generator(), skC)
	pubA, pubB, pubC := crypto.Serialize(pointA), crypto.Serialize(pointB), crypto.Serialize(pointC)

	s.Safrole.PendingValidators = []jamtypes.ValidatorKey{
		{Bandersnatch: pubA}, {Bandersnatch: pubB}, {Bandersnatch: pubC},
	}
	s.Safrole.EpochRoot = crypto.RingCommitment([]jamtypes.BandersnatchPublic{pubA, pubB, pubC})

	sealSK := big.NewInt(2001)
	sealPoint := crypto.ScalarMul(crypto.Generator(), sealSK)
	sealPub := crypto.Serialize(sealPoint)
	s.CurrValidators[0].Bandersnatch = sealPub
	s.Safrole.Seal = jamstate.Seal{Kind: jamstate.SealKeys, Keys: make([]jamtypes.BandersnatchPublic, cfg.EpochLength)}
	slot := jamtypes.TimeSlot(1)
	s.Safrole.Seal.Keys[int(slot)%cfg.EpochLength] = sealPub

	h := jamstate.NewHandler(s)
	entropy := h.Entropy()

	fallbackInput := append([]byte(fallbackSealTag), entropy[3][:]...)
	fallbackProof := crypto.IETFSign(sealSK, sealPoint, fallbackInput)
	sealOutput, ok := crypto.IETFVerify(sealPub, fallbackInput, fallbackProof)
	if !ok {
		t.Fatal("setup: fallback proof failed self-check")
	}
	entropyInput := append([]byte(entropyTag), sealOutput[:]...)
	entropyProof := crypto.IETFSign(sealSK, sealPoint, entropyInput)

	ticketInput := append([]byte(ticketSealInputTag), entropy[2][:]...)
	ticketInput = append(ticketInput, 0)
	ring := []*crypto.Point{pointA, pointB, pointC}
	ticketProof, err := crypto.RingSign(skB, 1, ring, ticketInput)
	if err != nil {
		t.Fatalf("setup: ring sign failed: %v", err)
	}
	if _, ok := crypto.RingVerify([]jamtypes.BandersnatchPublic{pubA, pubB, pubC}, ticketInput, ticketProof); !ok {
		t.Fatal("setup: ring proof failed self-check")
	}

	header := jamtypes.Header{
		UnsignedHeader: jamtypes.UnsignedHeader{
			Slot:          slot,
			AuthorIndex:   0,
			EntropySource: marshalIETFProof(entropyProof),
		},
		Seal: marshalIETFProof(fallbackProof),
	}
	tickets := []jamtypes.Ticket{{Attempt: 0, Proof: ticketProof.Marshal()}}

	if err := Process(cfg, h, header, tickets, nil); err != nil {
		t.Fatalf("expected acceptance of ring-signed ticket, got %v", err)
	}
	if len(h.Safrole().TicketAccumulator) != 1 {
		t.Fatalf("expected ticket accumulator to hold 1 ticket, got %d", len(h.Safrole().TicketAccumulator))
	}
}

// TestProcessRejectsTicketSignedOutsideValidatorRing checks that a ticket
// signed by a key with no place in the pending-validator ring is rejected,
// the property a fabricated verification ring would silently break.
func TestProcessRejectsTicketSignedOutsideValidatorRing(t *testing.T) {
	cfg := params.Tiny
	s := jamstate.New(cfg)

	skA, skB, skC := big.NewInt(3001), big.NewInt(3002), big.NewInt(3003)
	pointA := crypto.ScalarMul(crypto.Generator(), skA)
	pointB := crypto.ScalarMul(crypto.Generator(), skB)
	pointC := crypto.ScalarMul(crypto.Generator(), skC)
	pubA, pubB, pubC := crypto.Serialize(pointA), crypto.Serialize(pointB), crypto.Serialize(pointC)
	s.Safrole.PendingValidators = []jamtypes.ValidatorKey{
		{Bandersnatch: pubA}, {Bandersnatch: pubB}, {Bandersnatch: pubC},
	}

	sealSK := big.NewInt(4001)
	sealPoint := crypto.ScalarMul(crypto.Generator(), sealSK)
	sealPub := crypto.Serialize(sealPoint)
	s.CurrValidators[0].Bandersnatch = sealPub
	s.Safrole.Seal = jamstate.Seal{Kind: jamstate.SealKeys, Keys: make([]jamtypes.BandersnatchPublic, cfg.EpochLength)}
	slot := jamtypes.TimeSlot(1)
	s.Safrole.Seal.Keys[int(slot)%cfg.EpochLength] = sealPub

	h := jamstate.NewHandler(s)
	entropy := h.Entropy()

	fallbackInput := append([]byte(fallbackSealTag), entropy[3][:]...)
	fallbackProof := crypto.IETFSign(sealSK, sealPoint, fallbackInput)
	sealOutput, _ := crypto.IETFVerify(sealPub, fallbackInput, fallbackProof)
	entropyInput := append([]byte(entropyTag), sealOutput[:]...)
	entropyProof := crypto.IETFSign(sealSK, sealPoint, entropyInput)

	// Outsider key, not a member of PendingValidators: sign a one-member
	// "ring" of just itself rather than the real 3-member ring.
	outsiderSK := big.NewInt(5001)
	outsiderPoint := crypto.ScalarMul(crypto.Generator(), outsiderSK)

	ticketInput := append([]byte(ticketSealInputTag), entropy[2][:]...)
	ticketInput = append(ticketInput, 0)
	ticketProof, err := crypto.RingSign(outsiderSK, 0, []*crypto.Point{outsiderPoint}, ticketInput)
	if err != nil {
		t.Fatalf("setup: ring sign failed: %v", err)
	}

	header := jamtypes.Header{
		UnsignedHeader: jamtypes.UnsignedHeader{
			Slot:          slot,
			AuthorIndex:   0,
			EntropySource: marshalIETFProof(entropyProof),
		},
		Seal: marshalIETFProof(fallbackProof),
	}
	tickets := []jamtypes.Ticket{{Attempt: 0, Proof: ticketProof.Marshal()}}

	err = Process(cfg, h, header, tickets, nil)
	se, ok := err.(*Error)
	if !ok || se.Code != BadTicketProof {
		t.Fatalf("expected BadTicketProof for a ticket outside the validator ring, got %v", err)
	}
}

func TestOutsideInInterleaving(t *testing.T) {
	mk := func(attempt uint8) jamtypes.Ticket {
		return jamtypes.Ticket{Attempt: attempt, Proof: crypto.RingProof{}.Marshal()}
	}
	ts := []jamtypes.Ticket{mk(0), mk(1), mk(2), mk(3)}
	out := outsideIn(ts)
	if len(out) != 4 {
		t.Fatalf("expected 4 ids, got %d", len(out))
	}
}
