// Ring-VRF: an anonymous VRF proof witnessing membership in a public-key
// ring plus a deterministic output hash. Real JAM builds this from a
// polynomial-commitment ring proof (arkworks' bandersnatch_vrfs) whose size
// is independent of ring size; this module instead adapts the classic
// Abe-Ohkubo-Suzuki (AOS) Schnorr ring signature to the Bandersnatch curve,
// combined with the same gamma/output construction as the IETF VRF in
// vrf.go. The result is anonymous (any ring member could have produced it)
// and deterministic in its output, satisfying spec.md §4.B's functional
// contract, at the documented cost of a proof size that grows with the
// ring (see jamtypes.VrfSignature and DESIGN.md).
package crypto

import (
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// RingProof is an anonymous VRF proof over a ring of Bandersnatch public
// keys.
type RingProof struct {
	Gamma [32]byte
	C0    [32]byte
	S     [][32]byte // one Schnorr response per ring position
}

// Marshal serializes the proof as Gamma ‖ C0 ‖ len(S) (4-byte LE) ‖ S...
func (p RingProof) Marshal() jamtypes.VrfSignature {
	out := make([]byte, 0, 64+4+32*len(p.S))
	out = append(out, p.Gamma[:]...)
	out = append(out, p.C0[:]...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(p.S)))
	out = append(out, lenBuf[:]...)
	for _, s := range p.S {
		out = append(out, s[:]...)
	}
	return jamtypes.VrfSignature(out)
}

// UnmarshalRingProof parses a RingProof from its wire form.
func UnmarshalRingProof(data jamtypes.VrfSignature) (RingProof, error) {
	if len(data) < 68 {
		return RingProof{}, errors.New("ring proof: too short")
	}
	var p RingProof
	copy(p.Gamma[:], data[0:32])
	copy(p.C0[:], data[32:64])
	n := binary.LittleEndian.Uint32(data[64:68])
	want := 68 + int(n)*32
	if len(data) != want {
		return RingProof{}, errors.New("ring proof: length mismatch")
	}
	p.S = make([][32]byte, n)
	for i := 0; i < int(n); i++ {
		copy(p.S[i][:], data[68+i*32:68+(i+1)*32])
	}
	return p, nil
}

// ringIndexWeight derives a per-position accumulation weight so the ring
// commitment binds to an exact ordered key sequence rather than just the
// multiset of keys.
func ringIndexWeight(i int) *big.Int {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], uint32(i))
	return HashToScalar([]byte("jam_ring_index"), idx[:])
}

// RingCommitment builds the ring commitment γ_z over an ordered validator
// Bandersnatch key set, substituting the padding point for any key that
// fails to deserialize onto the curve (spec.md §4.B).
func RingCommitment(keys []jamtypes.BandersnatchPublic) jamtypes.BandersnatchRingCommitment {
	acc := Identity()
	for i, k := range keys {
		p, err := Deserialize(k)
		if err != nil {
			p = PaddingPoint()
		}
		acc = Add(acc, ScalarMul(p, ringIndexWeight(i)))
	}
	var out jamtypes.BandersnatchRingCommitment
	ser := Serialize(acc)
	copy(out[:32], ser[:])
	return out
}

// RingSign produces a Ring-VRF proof over input: signerIndex is the
// position of the actual signer (secret key sk) within ring, an ordered
// list of ring member points (with padding substituted already).
func RingSign(sk *big.Int, signerIndex int, ring []*Point, input []byte) (RingProof, error) {
	n := len(ring)
	if signerIndex < 0 || signerIndex >= n {
		return RingProof{}, errors.New("ring sign: signer index out of range")
	}

	h := HashToCurve(input)
	gamma := ScalarMul(h, sk)

	s := make([]*big.Int, n)
	c := make([]*big.Int, n)

	k := HashToScalar(sk.Bytes(), input, []byte("jam_ring_nonce"))
	r := ScalarMul(Generator(), k)
	c[(signerIndex+1)%n] = ringChallenge(input, gamma, ring[signerIndex], r)

	idx := (signerIndex + 1) % n
	for steps := 0; steps < n-1; steps++ {
		si := randomScalar(sk, input, idx)
		s[idx] = si
		ri := Add(ScalarMul(Generator(), si), Neg(ScalarMul(ring[idx], c[idx])))
		next := (idx + 1) % n
		c[next] = ringChallenge(input, gamma, ring[idx], ri)
		idx = next
	}
	// idx now equals signerIndex again, and c[signerIndex] was just set;
	// close the ring by solving for the Schnorr response at the signer's
	// own position.
	s[signerIndex] = new(big.Int).Mod(new(big.Int).Add(k, new(big.Int).Mul(c[signerIndex], sk)), bsN)

	out := make([][32]byte, n)
	for i, v := range s {
		b := v.Bytes()
		copy(out[i][32-len(b):], b)
	}
	var c0 [32]byte
	cb := c[0].Bytes()
	copy(c0[32-len(cb):], cb)

	return RingProof{Gamma: Serialize(gamma), C0: c0, S: out}, nil
}

// randomScalar derives a pseudo-random-looking (but deterministic, so this
// module stays reproducible without a live RNG dependency) scalar for the
// non-signer ring positions during RingSign.
func randomScalar(sk *big.Int, input []byte, pos int) *big.Int {
	var posBuf [4]byte
	binary.LittleEndian.PutUint32(posBuf[:], uint32(pos))
	return HashToScalar(sk.Bytes(), input, []byte("jam_ring_fill"), posBuf[:])
}

func ringChallenge(input []byte, gamma, memberPub, r *Point) *big.Int {
	gb := Serialize(gamma)
	mb := Serialize(memberPub)
	rb := Serialize(r)
	return HashToScalar(input, gb[:], mb[:], rb[:])
}

// RingVerify checks proof against an ordered ring of public keys and
// returns the VRF output on success. Ring members that fail to deserialize
// are replaced by the padding point before verification.
func RingVerify(ring []jamtypes.BandersnatchPublic, input []byte, proof RingProof) (jamtypes.Hash, bool) {
	n := len(ring)
	if n == 0 || len(proof.S) != n {
		return jamtypes.Hash{}, false
	}
	points := make([]*Point, n)
	for i, k := range ring {
		p, err := Deserialize(k)
		if err != nil {
			p = PaddingPoint()
		}
		points[i] = p
	}
	gamma, err := Deserialize(proof.Gamma)
	if err != nil {
		return jamtypes.Hash{}, false
	}

	c := new(big.Int).SetBytes(proof.C0[:])
	first := new(big.Int).Set(c)
	for i := 0; i < n; i++ {
		si := new(big.Int).SetBytes(proof.S[i][:])
		ri := Add(ScalarMul(Generator(), si), Neg(ScalarMul(points[i], c)))
		c = ringChallenge(input, gamma, points[i], ri)
	}
	if new(big.Int).Mod(c, bsN).Cmp(new(big.Int).Mod(first, bsN)) != 0 {
		return jamtypes.Hash{}, false
	}
	return VRFOutput(proof.Gamma), true
}
