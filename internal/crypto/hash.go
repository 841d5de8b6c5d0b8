// Package crypto adapts the three cryptographic primitives the JAM core
// consumes: Blake2b-256 hashing, Ed25519 signature verification, and the
// Bandersnatch suite (IETF-VRF, Ring-VRF, ring commitment construction).
package crypto

import (
	"crypto/ed25519"

	"golang.org/x/crypto/blake2b"

	"github.com/bloppan/vinwolf-sub001/internal/jamtypes"
)

// Blake2b256 hashes the concatenation of all arguments with Blake2b-256.
func Blake2b256(data ...[]byte) jamtypes.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for a bad key, and we pass none.
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out jamtypes.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyEd25519 checks an Ed25519 signature over msg under pub.
func VerifyEd25519(pub jamtypes.Ed25519Public, msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig)
}
