// Bandersnatch point arithmetic: a twisted Edwards curve over the BLS12-381
// scalar field, the curve JAM's Safrole ticket lottery uses for its
// IETF-VRF and Ring-VRF. Field/curve arithmetic is adapted from the
// teacher's crypto/banderwagon.go (same curve family, same math/big
// approach: correctness over constant-time performance, suitable for
// consensus verification).
package crypto

import (
	"errors"
	"math/big"
)

var (
	// bsFr is the BLS12-381 scalar field order, the base field for
	// Bandersnatch coordinate arithmetic.
	bsFr, _ = new(big.Int).SetString(
		"73eda753299d7d483339d80809a1d80553bda402fffe5bfeffffffff00000001", 16)

	// bsN is the Bandersnatch prime-order subgroup order, used for scalar
	// arithmetic.
	bsN, _ = new(big.Int).SetString(
		"1cfb69d4ca675f520cce760202687600ff8f87007419047174fd06b52876e7e1", 16)

	bsA = new(big.Int).Sub(bsFr, big.NewInt(5))

	bsD, _ = new(big.Int).SetString(
		"6389c12633c267cbc66e3bf86be3b6d8cb66677177e54f92b369f2f5188d58e7", 16)

	bsGenX, _ = new(big.Int).SetString(
		"29c132cc2c0b34c5743711777bbe42f32b79c022ad998465e1e71866a252ae18", 16)
	bsGenY, _ = new(big.Int).SetString(
		"2a6c669eda123e0f157d8b50badcd586358cad81eee464605e3167b6cc974166", 16)
)

// errNotOnCurve is returned by FromAffine for an invalid coordinate pair.
var errNotOnCurve = errors.New("bandersnatch: point not on curve")

// Point is a Bandersnatch curve point in extended twisted Edwards
// coordinates (X, Y, T, Z) where x = X/Z, y = Y/Z, T = XY/Z.
type Point struct {
	x, y, t, z *big.Int
}

func frAdd(a, b *big.Int) *big.Int { return new(big.Int).Mod(new(big.Int).Add(a, b), bsFr) }
func frSub(a, b *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	return r.Mod(r, bsFr)
}
func frMul(a, b *big.Int) *big.Int { return new(big.Int).Mod(new(big.Int).Mul(a, b), bsFr) }
func frSqr(a *big.Int) *big.Int    { return frMul(a, a) }
func frNeg(a *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(bsFr, new(big.Int).Mod(a, bsFr))
}
func frInv(a *big.Int) *big.Int { return new(big.Int).ModInverse(a, bsFr) }
func frSqrt(a *big.Int) *big.Int {
	if a.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).ModSqrt(a, bsFr)
}

// Identity returns the neutral element (0, 1).
func Identity() *Point {
	return &Point{x: new(big.Int), y: big.NewInt(1), t: new(big.Int), z: big.NewInt(1)}
}

// Generator returns the standard Bandersnatch subgroup generator.
func Generator() *Point {
	return &Point{
		x: new(big.Int).Set(bsGenX),
		y: new(big.Int).Set(bsGenY),
		t: frMul(bsGenX, bsGenY),
		z: big.NewInt(1),
	}
}

func isOnCurve(x, y *big.Int) bool {
	x2, y2 := frSqr(x), frSqr(y)
	lhs := frAdd(frMul(bsA, x2), y2)
	rhs := frAdd(big.NewInt(1), frMul(bsD, frMul(x2, y2)))
	return lhs.Cmp(rhs) == 0
}

// FromAffine builds a point from affine coordinates, checking the curve
// equation.
func FromAffine(x, y *big.Int) (*Point, error) {
	xm, ym := new(big.Int).Mod(x, bsFr), new(big.Int).Mod(y, bsFr)
	if !isOnCurve(xm, ym) {
		return nil, errNotOnCurve
	}
	return &Point{x: xm, y: ym, t: frMul(xm, ym), z: big.NewInt(1)}, nil
}

// Affine returns the point's affine (x, y) coordinates.
func (p *Point) Affine() (x, y *big.Int) {
	if p.z.Cmp(big.NewInt(1)) == 0 {
		return new(big.Int).Set(p.x), new(big.Int).Set(p.y)
	}
	zInv := frInv(p.z)
	return frMul(p.x, zInv), frMul(p.y, zInv)
}

// IsIdentity reports whether p is the neutral element.
func (p *Point) IsIdentity() bool {
	return new(big.Int).Mod(p.x, bsFr).Sign() == 0
}

// Add returns p1+p2 (unified twisted-Edwards addition, Hisil et al. 2008).
func Add(p1, p2 *Point) *Point {
	A := frMul(p1.x, p2.x)
	B := frMul(p1.y, p2.y)
	C := frMul(frMul(p1.t, bsD), p2.t)
	D := frMul(p1.z, p2.z)
	E := frSub(frMul(frAdd(p1.x, p1.y), frAdd(p2.x, p2.y)), frAdd(A, B))
	F := frSub(D, C)
	G := frAdd(D, C)
	H := frSub(B, frMul(bsA, A))
	return &Point{x: frMul(E, F), y: frMul(G, H), t: frMul(E, H), z: frMul(F, G)}
}

// Double returns 2p.
func Double(p *Point) *Point {
	A := frSqr(p.x)
	B := frSqr(p.y)
	C := frMul(big.NewInt(2), frSqr(p.z))
	D := frMul(bsA, A)
	E := frSub(frSqr(frAdd(p.x, p.y)), frAdd(A, B))
	G := frAdd(D, B)
	F := frSub(G, C)
	H := frSub(D, B)
	return &Point{x: frMul(E, F), y: frMul(G, H), t: frMul(E, H), z: frMul(F, G)}
}

// Neg returns -p.
func Neg(p *Point) *Point {
	return &Point{x: frNeg(p.x), y: new(big.Int).Set(p.y), t: frNeg(p.t), z: new(big.Int).Set(p.z)}
}

// ScalarMul computes k*p via double-and-add, k reduced mod the subgroup
// order.
func ScalarMul(p *Point, k *big.Int) *Point {
	scalar := new(big.Int).Mod(k, bsN)
	if scalar.Sign() == 0 || p.IsIdentity() {
		return Identity()
	}
	result := Identity()
	for i := scalar.BitLen() - 1; i >= 0; i-- {
		result = Double(result)
		if scalar.Bit(i) == 1 {
			result = Add(result, p)
		}
	}
	return result
}

// Equal reports whether p1 and p2 represent the same group element.
func Equal(p1, p2 *Point) bool {
	lx := frMul(p1.x, p2.z)
	rx := frMul(p2.x, p1.z)
	ly := frMul(p1.y, p2.z)
	ry := frMul(p2.y, p1.z)
	return lx.Cmp(rx) == 0 && ly.Cmp(ry) == 0
}

// Serialize encodes p as 32 bytes: little-endian Y with the sign of X in
// the top bit of the last byte.
func Serialize(p *Point) [32]byte {
	var out [32]byte
	if p.IsIdentity() {
		out[0] = 1
		return out
	}
	x, y := p.Affine()
	yBytes := y.Bytes()
	for i, b := range yBytes {
		out[len(yBytes)-1-i] = b
	}
	half := new(big.Int).Rsh(bsFr, 1)
	if x.Cmp(half) > 0 {
		out[31] |= 0x80
	}
	return out
}

// Deserialize decodes a 32-byte Bandersnatch public key back into a point.
func Deserialize(data [32]byte) (*Point, error) {
	signBit := data[31] & 0x80
	data[31] &= 0x7f
	be := make([]byte, 32)
	for i := 0; i < 32; i++ {
		be[31-i] = data[i]
	}
	y := new(big.Int).SetBytes(be)
	if y.Cmp(bsFr) >= 0 {
		return nil, errors.New("bandersnatch: y out of range")
	}
	y2 := frSqr(y)
	num := frSub(y2, big.NewInt(1))
	den := frAdd(big.NewInt(5), frMul(bsD, y2))
	denInv := frInv(den)
	if denInv == nil {
		return nil, errors.New("bandersnatch: degenerate point")
	}
	x2 := frMul(num, denInv)
	x := frSqrt(x2)
	if x == nil {
		return nil, errors.New("bandersnatch: no valid x")
	}
	half := new(big.Int).Rsh(bsFr, 1)
	wantUpper := signBit != 0
	isUpper := x.Cmp(half) > 0
	if wantUpper != isUpper {
		x = frNeg(x)
	}
	return FromAffine(x, y)
}

// PaddingPoint is the protocol-defined substitute used in place of an
// invalid ring member (spec.md §4.B): the curve's neutral element,
// deterministic and reproducible by every implementation.
func PaddingPoint() *Point { return Identity() }

// ScalarFromBytes reduces a byte string (big-endian) into a scalar mod the
// subgroup order n. Used to turn hash outputs into Fiat-Shamir challenges
// and nonces.
func ScalarFromBytes(b []byte) *big.Int {
	return new(big.Int).Mod(new(big.Int).SetBytes(b), bsN)
}

// HashToScalar reduces the Blake2b-256 hash of data into a scalar mod n.
func HashToScalar(data ...[]byte) *big.Int {
	h := Blake2b256(data...)
	return ScalarFromBytes(h[:])
}

// HashToCurve deterministically assigns a curve point to arbitrary input by
// repeatedly hashing a counter into a scalar and multiplying the generator,
// until the point lands outside the identity. This is not a constant-time,
// indifferentiable hash-to-curve (JAM's Gray Paper specifies Elligator2);
// it is a pragmatic, deterministic substitute adequate for verification
// logic in this module (see DESIGN.md).
func HashToCurve(data ...[]byte) *Point {
	for ctr := uint32(0); ; ctr++ {
		ctrBytes := []byte{byte(ctr), byte(ctr >> 8), byte(ctr >> 16), byte(ctr >> 24)}
		args := append(append([][]byte{}, data...), ctrBytes)
		s := HashToScalar(args...)
		if s.Sign() == 0 {
			continue
		}
		p := ScalarMul(Generator(), s)
		if !p.IsIdentity() {
			return p
		}
	}
}
