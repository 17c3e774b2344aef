package xcrypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/xcrypto"
)

func TestSignVerify(t *testing.T) {
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("hello vrfchain")
	sig := kp.Sign(msg)
	assert.True(t, xcrypto.Verify(kp.PublicKey(), msg, sig))
	assert.False(t, xcrypto.Verify(kp.PublicKey(), []byte("tampered"), sig))
}

func TestKeyPairFromSeedDeterministic(t *testing.T) {
	kp1, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	seed := kp1.Seed()

	kp2, err := xcrypto.KeyPairFromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, kp1.PublicKey(), kp2.PublicKey())
}

func TestHashConcatenation(t *testing.T) {
	h1 := xcrypto.Hash([]byte("a"), []byte("b"))
	h2 := xcrypto.Hash([]byte("ab"))
	assert.Equal(t, h1, h2)
}

func TestVRFEvaluateAndVerify(t *testing.T) {
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)

	input := []byte("round-input")
	output, proof := kp.Evaluate(input)

	assert.True(t, xcrypto.VerifyVRF(kp.PublicKey(), input, output, proof))
	assert.False(t, xcrypto.VerifyVRF(kp.PublicKey(), []byte("other-input"), output, proof))

	// evaluating twice with the same input is deterministic on output
	output2, _ := kp.Evaluate(input)
	assert.Equal(t, output, output2)
}

func TestVRFDifferentKeysDifferentOutput(t *testing.T) {
	kp1, _ := xcrypto.GenerateKeyPair()
	kp2, _ := xcrypto.GenerateKeyPair()

	out1, _ := kp1.Evaluate([]byte("x"))
	out2, _ := kp2.Evaluate([]byte("x"))
	assert.NotEqual(t, out1, out2)
}
