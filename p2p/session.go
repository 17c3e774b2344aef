package p2p

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const gcmNonceSize = 12

// SessionKey derives a 32-byte AES-256 key by running HKDF-SHA256
// over an ECDH shared secret on Curve25519.
type SessionKey [32]byte

// EphemeralKeyPair is a one-shot Curve25519 key pair used to
// establish a connection's session key via ECDH.
type EphemeralKeyPair struct {
	private [32]byte
	Public  [32]byte
}

// GenerateEphemeral creates a fresh Curve25519 key pair for one connection.
func GenerateEphemeral() (*EphemeralKeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return nil, errors.Wrap(err, "p2p: generate ephemeral key")
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: derive ephemeral public key")
	}
	kp := &EphemeralKeyPair{private: priv}
	copy(kp.Public[:], pub)
	return kp, nil
}

// DeriveSessionKey computes the ECDH shared secret with a peer's
// ephemeral public key, then stretches it via HKDF-SHA256 into a
// 32-byte AES key.
func (kp *EphemeralKeyPair) DeriveSessionKey(peerPublic [32]byte) (SessionKey, error) {
	var key SessionKey
	shared, err := curve25519.X25519(kp.private[:], peerPublic[:])
	if err != nil {
		return key, errors.Wrap(err, "p2p: compute ecdh shared secret")
	}
	kdf := hkdf.New(sha256.New, shared, nil, []byte("vrfchain-p2p-session"))
	if _, err := io.ReadFull(kdf, key[:]); err != nil {
		return key, errors.Wrap(err, "p2p: hkdf expand")
	}
	return key, nil
}

// Seal encrypts plaintext under key, prefixing the random 12-byte GCM
// nonce to the ciphertext.
func Seal(key SessionKey, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "p2p: new aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: new gcm")
	}
	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "p2p: generate gcm nonce")
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func Open(key SessionKey, sealed []byte) ([]byte, error) {
	if len(sealed) < gcmNonceSize {
		return nil, errors.New("p2p: sealed payload shorter than nonce")
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, errors.Wrap(err, "p2p: new aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: new gcm")
	}
	nonce, ciphertext := sealed[:gcmNonceSize], sealed[gcmNonceSize:]
	out, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: gcm open")
	}
	return out, nil
}
