// Package xcrypto implements the cryptographic primitives of the
// consensus core: Ed25519 keypairs, SHA-256 hashing, and the
// HMAC-SHA256 + Ed25519 VRF construction.
//
// This is deliberately NOT an RFC-9381 ECVRF: it wraps a
// proof-of-knowledge construction rather than a strong VRF. See the
// package doc on Evaluate for the exact caveat — output
// pseudorandomness is not guaranteed from the public key alone. A
// production fork should swap this for an RFC-9381 ECVRF; the
// interface below is designed so that substitution does not ripple
// into callers.
package xcrypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/types"
)

// KeyPair holds a read-only handle on a local Ed25519 identity. The
// private key bytes never leave this type; callers obtain signing and
// VRF-evaluation capabilities through its methods.
type KeyPair struct {
	sk ed25519.PrivateKey
	pk types.PublicKey
}

// GenerateKeyPair creates a fresh Ed25519 identity.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "xcrypto: generate key")
	}
	var pk types.PublicKey
	copy(pk[:], pub)
	return &KeyPair{sk: priv, pk: pk}, nil
}

// KeyPairFromSeed deterministically derives an identity from a 32-byte
// seed, used to load the node key from disk on restart.
func KeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("xcrypto: seed must be %d bytes", ed25519.SeedSize)
	}
	sk := ed25519.NewKeyFromSeed(seed)
	var pk types.PublicKey
	copy(pk[:], sk.Public().(ed25519.PublicKey))
	return &KeyPair{sk: sk, pk: pk}, nil
}

// PublicKey returns the identity's public key.
func (k *KeyPair) PublicKey() types.PublicKey { return k.pk }

// Seed returns the 32-byte seed backing this identity, for persistence
// to node_key_path. Callers that persist this value are responsible
// for its confidentiality; the in-memory KeyPair never exposes sk
// directly otherwise.
func (k *KeyPair) Seed() []byte { return append([]byte(nil), k.sk.Seed()...) }

// Sign signs msg, returning a 64-byte Ed25519 signature.
func (k *KeyPair) Sign(msg []byte) types.Signature {
	var sig types.Signature
	copy(sig[:], ed25519.Sign(k.sk, msg))
	return sig
}

// Verify checks an Ed25519 signature by pk over msg.
func Verify(pk types.PublicKey, msg []byte, sig types.Signature) bool {
	return ed25519.Verify(pk[:], msg, sig[:])
}

// Hash computes SHA-256 over the concatenation of parts, in order.
func Hash(parts ...[]byte) types.Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Evaluate computes this identity's VRF output and proof over input,
// output = HMAC-SHA256(sk, input), proof = Sign(input||output).
//
// Caveat: output is only unforgeable, not provably pseudorandom from
// pk alone — an adversary controlling key generation could bias it.
// An RFC-9381 upgrade must keep this method's signature.
func (k *KeyPair) Evaluate(input []byte) (output types.Hash, proof types.Signature) {
	mac := hmac.New(sha256.New, k.sk.Seed())
	mac.Write(input)
	copy(output[:], mac.Sum(nil))

	proof = k.Sign(append(append([]byte(nil), input...), output[:]...))
	return output, proof
}

// VerifyVRF checks that proof is a valid Ed25519 signature by pk over
// input||output. It does not (cannot, under this construction) verify
// that output was itself honestly derived from sk — see Evaluate's
// doc comment.
func VerifyVRF(pk types.PublicKey, input []byte, output types.Hash, proof types.Signature) bool {
	msg := append(append([]byte(nil), input...), output[:]...)
	return Verify(pk, msg, proof)
}
