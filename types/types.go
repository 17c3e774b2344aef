// Package types defines the fixed-size byte primitives shared by the
// block, transaction, and consensus packages: public keys, hashes and
// signatures, plus their canonical hex encodings.
package types

import (
	"encoding/hex"
	"encoding/json"
	"errors"
)

// PublicKey is an Ed25519 public key, and also serves as an account
// and super-node identifier throughout the node.
type PublicKey [32]byte

// Hash is a 32-byte SHA-256 digest.
type Hash [32]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [64]byte

var (
	ZeroHash Hash
	ZeroKey  PublicKey
)

func (pk PublicKey) Bytes() []byte { return pk[:] }
func (pk PublicKey) IsZero() bool  { return pk == ZeroKey }
func (pk PublicKey) String() string { return "0x" + hex.EncodeToString(pk[:]) }

// Compare returns -1, 0, or 1 comparing pk to other, lexicographically.
func (pk PublicKey) Compare(other PublicKey) int {
	for i := range pk {
		if pk[i] != other[i] {
			if pk[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

func (pk PublicKey) MarshalJSON() ([]byte, error) { return json.Marshal(pk.String()) }
func (pk *PublicKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	b, err := decodeHexFixed(s, 32)
	if err != nil {
		return err
	}
	copy(pk[:], b)
	return nil
}

func BytesToPublicKey(b []byte) (pk PublicKey, err error) {
	if len(b) != 32 {
		return pk, errors.New("types: public key must be 32 bytes")
	}
	copy(pk[:], b)
	return pk, nil
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) IsZero() bool   { return h == ZeroHash }
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func BytesToHash(b []byte) (h Hash, err error) {
	if len(b) != 32 {
		return h, errors.New("types: hash must be 32 bytes")
	}
	copy(h[:], b)
	return h, nil
}

func (s Signature) Bytes() []byte  { return s[:] }
func (s Signature) IsZero() bool   { return s == Signature{} }
func (s Signature) String() string { return "0x" + hex.EncodeToString(s[:]) }

func BytesToSignature(b []byte) (s Signature, err error) {
	if len(b) != 64 {
		return s, errors.New("types: signature must be 64 bytes")
	}
	copy(s[:], b)
	return s, nil
}

func decodeHexFixed(s string, n int) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != n {
		return nil, errors.New("types: unexpected hex length")
	}
	return b, nil
}

// SortPublicKeys sorts a slice of public keys ascending, lexicographically.
func SortPublicKeys(keys []PublicKey) {
	// insertion sort is fine: super-node sets are small (≈50).
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1].Compare(keys[j]) > 0; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
}
