package crypto

import (
	"math/big"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// IETFProof is a single-signer Bandersnatch VRF proof: a Schnorr-style
// construction (gamma, challenge, response) over the curve in
// bandersnatch.go. gamma = sk*H(input) carries the verifiable output;
// (c, s) is the Fiat-Shamir proof of knowledge of sk.
type IETFProof struct {
	Gamma     [32]byte
	Challenge [32]byte
	Response  [32]byte
}

// IETFSign produces a VRF proof over input under secret scalar sk, whose
// corresponding public point is pub.
func IETFSign(sk *big.Int, pub *Point, input []byte) IETFProof {
	h := HashToCurve(input)
	gamma := ScalarMul(h, sk)

	k := HashToScalar(sk.Bytes(), input, []byte("jam_vrf_nonce"))
	u := ScalarMul(Generator(), k)
	v := ScalarMul(h, k)

	c := ietfChallenge(pub, h, gamma, u, v)
	s := new(big.Int).Mod(new(big.Int).Add(k, new(big.Int).Mul(c, sk)), bsN)

	var proof IETFProof
	proof.Gamma = Serialize(gamma)
	cb := c.Bytes()
	copy(proof.Challenge[32-len(cb):], cb)
	sb := s.Bytes()
	copy(proof.Response[32-len(sb):], sb)
	return proof
}

func ietfChallenge(pub, h, gamma, u, v *Point) *big.Int {
	pb := Serialize(pub)
	hb := Serialize(h)
	gb := Serialize(gamma)
	ub := Serialize(u)
	vb := Serialize(v)
	return HashToScalar(pb[:], hb[:], gb[:], ub[:], vb[:])
}

// IETFVerify checks proof over input under the validator's Bandersnatch
// public key pub, returning the 32-byte VRF output on success.
func IETFVerify(pub jamtypes.BandersnatchPublic, input []byte, proof IETFProof) (jamtypes.Hash, bool) {
	pubPoint, err := Deserialize(pub)
	if err != nil {
		return jamtypes.Hash{}, false
	}
	gamma, err := Deserialize(proof.Gamma)
	if err != nil {
		return jamtypes.Hash{}, false
	}
	h := HashToCurve(input)
	c := new(big.Int).SetBytes(proof.Challenge[:])
	s := new(big.Int).SetBytes(proof.Response[:])

	// U = s*G - c*pub
	u := Add(ScalarMul(Generator(), s), Neg(ScalarMul(pubPoint, c)))
	// V = s*H - c*gamma
	v := Add(ScalarMul(h, s), Neg(ScalarMul(gamma, c)))

	cPrime := ietfChallenge(pubPoint, h, gamma, u, v)
	if cPrime.Cmp(new(big.Int).Mod(c, bsN)) != 0 {
		return jamtypes.Hash{}, false
	}
	return VRFOutput(proof.Gamma), true
}

// VRFOutput derives the 32-byte deterministic output hash from a proof's
// gamma component (spec.md: "ticket id (32-byte truncated VRF hash)").
func VRFOutput(gamma [32]byte) jamtypes.Hash {
	return Blake2b256([]byte("jam_vrf_output"), gamma[:])
}
