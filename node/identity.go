package node

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/xcrypto"
)

// LoadOrGenerateIdentity reads the 32-byte Ed25519 seed at path, or
// generates and writes a fresh one if the file does not exist yet.
func LoadOrGenerateIdentity(path string) (*xcrypto.KeyPair, error) {
	seed, err := os.ReadFile(path)
	if err == nil {
		return xcrypto.KeyPairFromSeed(seed)
	}
	if !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "node: read identity file")
	}

	kp, err := xcrypto.GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "node: generate identity")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "node: create identity directory")
	}
	if err := os.WriteFile(path, kp.Seed(), 0o600); err != nil {
		return nil, errors.Wrap(err, "node: write identity file")
	}
	return kp, nil
}
