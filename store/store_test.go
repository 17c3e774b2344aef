package store_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/types"
)

func newTestEngine(t *testing.T) *store.Engine {
	t.Helper()
	e, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func buildTestBlock(t *testing.T, height uint64) *block.Block {
	t.Helper()
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	max.Sub(max, big.NewInt(1))
	b, err := block.NewBuilder().Height(height).Round(1).DifficultyTarget(max).Build()
	require.NoError(t, err)
	return b
}

func TestBlockStoragePutAndGet(t *testing.T) {
	bs := store.NewBlockStorage(newTestEngine(t))
	b := buildTestBlock(t, 1)
	require.NoError(t, bs.Put(b))

	got, err := bs.GetByHash(b.Hash())
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), got.Hash())

	got, err = bs.GetByHeight(1)
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), got.Hash())

	latest, err := bs.Latest()
	require.NoError(t, err)
	assert.Equal(t, b.Hash(), latest.Hash())
}

func TestBlockStorageNotFound(t *testing.T) {
	bs := store.NewBlockStorage(newTestEngine(t))
	_, err := bs.GetByHash(types.Hash{0x01})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = bs.Latest()
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBlockStorageTipAdvancesOnHigherHeight(t *testing.T) {
	bs := store.NewBlockStorage(newTestEngine(t))
	b1 := buildTestBlock(t, 1)
	b2 := buildTestBlock(t, 2)
	require.NoError(t, bs.Put(b1))
	require.NoError(t, bs.Put(b2))

	latest, err := bs.Latest()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Height())
}

func TestStateStorageDefaultsToZeroAccount(t *testing.T) {
	ss := store.NewStateStorage(newTestEngine(t))
	var pk types.PublicKey
	pk[0] = 0x42

	acct, err := ss.Get(pk)
	require.NoError(t, err)
	assert.Equal(t, store.Account{}, acct)
}

func TestStateStoragePutAndGet(t *testing.T) {
	ss := store.NewStateStorage(newTestEngine(t))
	var pk types.PublicKey
	pk[0] = 0x42

	require.NoError(t, ss.Put(pk, store.Account{Balance: 100, Nonce: 1}))
	acct, err := ss.Get(pk)
	require.NoError(t, err)
	assert.Equal(t, store.Account{Balance: 100, Nonce: 1}, acct)
}

func TestStateStorageApplyBatch(t *testing.T) {
	ss := store.NewStateStorage(newTestEngine(t))
	var pkA, pkB types.PublicKey
	pkA[0], pkB[0] = 0x01, 0x02

	err := ss.ApplyBatch(map[types.PublicKey]store.Account{
		pkA: {Balance: 10, Nonce: 1},
		pkB: {Balance: 20, Nonce: 2},
	})
	require.NoError(t, err)

	acctA, err := ss.Get(pkA)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), acctA.Balance)

	acctB, err := ss.Get(pkB)
	require.NoError(t, err)
	assert.Equal(t, uint64(20), acctB.Balance)
}
