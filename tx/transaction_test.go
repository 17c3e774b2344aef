package tx_test

import (
	"bytes"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/xcrypto"
)

func buildSignedTx(t *testing.T, kp *xcrypto.KeyPair, receiver [32]byte, amount, fee, ts, nonce uint64) *tx.Transaction {
	t.Helper()
	unsigned, err := tx.New(kp.PublicKey(), receiver, amount, fee, ts, nonce, tx.Transfer, [64]byte{})
	require.NoError(t, err)
	sig := kp.Sign(unsigned.SigningBytes())
	signed, err := tx.New(kp.PublicKey(), receiver, amount, fee, ts, nonce, tx.Transfer, sig)
	require.NoError(t, err)
	return signed
}

func TestTransactionHashExcludesSignature(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	var receiver [32]byte
	copy(receiver[:], []byte("receiver-pubkey-32-bytes-exact!!"))

	signed := buildSignedTx(t, kp, receiver, 100, 1, 1000, 0)
	unsigned, _ := tx.New(kp.PublicKey(), receiver, 100, 1, 1000, 0, tx.Transfer, [64]byte{})

	assert.Equal(t, unsigned.Hash(), signed.Hash())
}

func TestTransactionSignatureVerification(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	var receiver [32]byte
	signed := buildSignedTx(t, kp, receiver, 100, 1, 1000, 0)

	assert.True(t, signed.VerifySignature())
	require.NoError(t, signed.StatelessValid())
}

func TestTransactionRejectsZeroTimestamp(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	var receiver [32]byte
	_, err := tx.New(kp.PublicKey(), receiver, 1, 1, 0, 0, tx.Transfer, [64]byte{})
	assert.Error(t, err)
}

func TestTransactionRLPRoundTrip(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	var receiver [32]byte
	signed := buildSignedTx(t, kp, receiver, 100, 1, 1000, 0)

	var buf bytes.Buffer
	require.NoError(t, rlp.Encode(&buf, signed))

	var decoded tx.Transaction
	require.NoError(t, rlp.Decode(&buf, &decoded))

	assert.Equal(t, signed.Hash(), decoded.Hash())
	assert.Equal(t, signed.Sender(), decoded.Sender())
	assert.True(t, decoded.VerifySignature())
}

func TestMerkleRootEmptyIsZero(t *testing.T) {
	var txs tx.Transactions
	assert.True(t, txs.RootHash().IsZero())
}

func TestMerkleRootOddCountDuplicatesLast(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	var r1, r2, r3 [32]byte
	copy(r1[:], "one")
	copy(r2[:], "two")
	copy(r3[:], "three")

	txs := tx.Transactions{
		buildSignedTx(t, kp, r1, 1, 1, 1, 0),
		buildSignedTx(t, kp, r2, 1, 1, 1, 1),
		buildSignedTx(t, kp, r3, 1, 1, 1, 2),
	}
	root := txs.RootHash()
	assert.False(t, root.IsZero())

	// deterministic: recomputing yields the same root
	root2 := txs.RootHash()
	assert.Equal(t, root, root2)
}
