package crypto

import (
	"crypto/ed25519"
	"math/big"
	"testing"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

func TestBlake2b256Deterministic(t *testing.T) {
	a := Blake2b256([]byte("hello"), []byte("world"))
	b := Blake2b256([]byte("hello"), []byte("world"))
	if a != b {
		t.Fatal("hash not deterministic")
	}
	c := Blake2b256([]byte("helloworld"))
	if a == c {
		t.Fatal("concatenation boundary not respected")
	}
}

func TestVerifyEd25519(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	msg := []byte("jam block header")
	sig := ed25519.Sign(priv, msg)
	var pk jamtypes.Ed25519Public
	copy(pk[:], pub)
	if !VerifyEd25519(pk, msg, sig) {
		t.Fatal("valid signature rejected")
	}
	sig[0] ^= 0xFF
	if VerifyEd25519(pk, msg, sig) {
		t.Fatal("corrupted signature accepted")
	}
}

func TestBandersnatchPointRoundTrip(t *testing.T) {
	g := Generator()
	ser := Serialize(g)
	got, err := Deserialize(ser)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(g, got) {
		t.Fatal("serialize/deserialize round trip mismatch")
	}
}

func TestBandersnatchScalarMulAdditivity(t *testing.T) {
	g := Generator()
	p3 := ScalarMul(g, big.NewInt(3))
	p1 := ScalarMul(g, big.NewInt(1))
	p2 := ScalarMul(g, big.NewInt(2))
	sum := Add(p1, p2)
	if !Equal(p3, sum) {
		t.Fatal("3G != 1G + 2G")
	}
}

func TestIETFVRFVerify(t *testing.T) {
	sk := big.NewInt(424242)
	pubPoint := ScalarMul(Generator(), sk)
	var pub jamtypes.BandersnatchPublic
	pub = Serialize(pubPoint)

	input := []byte("jam_ticket_seal")
	proof := IETFSign(sk, pubPoint, input)

	out, ok := IETFVerify(pub, input, proof)
	if !ok {
		t.Fatal("valid IETF VRF proof rejected")
	}
	if out.IsZero() {
		t.Fatal("vrf output should not be zero")
	}

	// Wrong input must fail.
	if _, ok := IETFVerify(pub, []byte("wrong"), proof); ok {
		t.Fatal("proof verified against wrong input")
	}
}

func TestRingVRFVerify(t *testing.T) {
	n := 5
	signerIdx := 2
	sks := make([]*big.Int, n)
	ring := make([]jamtypes.BandersnatchPublic, n)
	for i := 0; i < n; i++ {
		sks[i] = big.NewInt(int64(1000 + i))
		ring[i] = Serialize(ScalarMul(Generator(), sks[i]))
	}

	points := make([]*Point, n)
	for i, k := range ring {
		p, err := Deserialize(k)
		if err != nil {
			t.Fatal(err)
		}
		points[i] = p
	}

	input := []byte("jam_ticket_seal-entropy-attempt0")
	proof, err := RingSign(sks[signerIdx], signerIdx, points, input)
	if err != nil {
		t.Fatal(err)
	}

	out, ok := RingVerify(ring, input, proof)
	if !ok {
		t.Fatal("valid ring VRF proof rejected")
	}
	if out.IsZero() {
		t.Fatal("ring vrf output should not be zero")
	}

	marshaled := proof.Marshal()
	back, err := UnmarshalRingProof(marshaled)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := RingVerify(ring, input, back); !ok {
		t.Fatal("round-tripped ring proof failed to verify")
	}
}

func TestRingCommitmentPaddingForInvalidKey(t *testing.T) {
	var bad jamtypes.BandersnatchPublic
	for i := range bad {
		bad[i] = 0xFF
	}
	good := Serialize(Generator())
	c1 := RingCommitment([]jamtypes.BandersnatchPublic{good, bad})
	c2 := RingCommitment([]jamtypes.BandersnatchPublic{good, bad})
	if c1 != c2 {
		t.Fatal("ring commitment not deterministic")
	}
}
