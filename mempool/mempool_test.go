package mempool_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/mempool"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/xcrypto"
)

func buildTx(t *testing.T, fee, nonce uint64) *tx.Transaction {
	t.Helper()
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	var receiver types.PublicKey
	unsigned, err := tx.New(kp.PublicKey(), receiver, 1, fee, 1000, nonce, tx.Transfer, types.Signature{})
	require.NoError(t, err)
	sig := kp.Sign(unsigned.SigningBytes())
	signed, err := tx.New(kp.PublicKey(), receiver, 1, fee, 1000, nonce, tx.Transfer, sig)
	require.NoError(t, err)
	return signed
}

func TestPoolAddAndContains(t *testing.T) {
	p := mempool.New(10, nil)
	txn := buildTx(t, 5, 1)
	require.NoError(t, p.Add(txn))
	assert.True(t, p.Contains(txn.Hash()))
	assert.Equal(t, 1, p.Len())
}

func TestPoolRejectsInvalidSignature(t *testing.T) {
	p := mempool.New(10, nil)
	var receiver types.PublicKey
	kp, _ := xcrypto.GenerateKeyPair()
	bad, err := tx.New(kp.PublicKey(), receiver, 1, 5, 1000, 1, tx.Transfer, types.Signature{})
	require.NoError(t, err)

	assert.Error(t, p.Add(bad))
}

func TestPoolRejectsViaCustomValidator(t *testing.T) {
	p := mempool.New(10, func(*tx.Transaction) error { return assert.AnError })
	txn := buildTx(t, 5, 1)
	assert.Error(t, p.Add(txn))
}

func TestPoolRemove(t *testing.T) {
	p := mempool.New(10, nil)
	txn := buildTx(t, 5, 1)
	require.NoError(t, p.Add(txn))
	p.Remove(txn.Hash())
	assert.False(t, p.Contains(txn.Hash()))
}

func TestPoolPickOrdersByFeeDescending(t *testing.T) {
	p := mempool.New(10, nil)
	low := buildTx(t, 1, 1)
	high := buildTx(t, 100, 1)
	mid := buildTx(t, 50, 1)
	require.NoError(t, p.Add(low))
	require.NoError(t, p.Add(high))
	require.NoError(t, p.Add(mid))

	picked := p.Pick(10)
	require.Len(t, picked, 3)
	assert.Equal(t, high.Hash(), picked[0].Hash())
	assert.Equal(t, mid.Hash(), picked[1].Hash())
	assert.Equal(t, low.Hash(), picked[2].Hash())
}

func TestPoolPickRespectsMaxCount(t *testing.T) {
	p := mempool.New(10, nil)
	for i := uint64(0); i < 5; i++ {
		require.NoError(t, p.Add(buildTx(t, i+1, 1)))
	}
	assert.Len(t, p.Pick(2), 2)
}

func TestPoolEvictsLowestFeeWhenFull(t *testing.T) {
	p := mempool.New(2, nil)
	low := buildTx(t, 1, 1)
	mid := buildTx(t, 5, 1)
	high := buildTx(t, 10, 1)

	require.NoError(t, p.Add(low))
	require.NoError(t, p.Add(mid))
	require.NoError(t, p.Add(high))

	assert.Equal(t, 2, p.Len())
	assert.False(t, p.Contains(low.Hash()))
	assert.True(t, p.Contains(high.Hash()))
}
