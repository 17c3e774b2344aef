package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/xcrypto"
)

func buildSignedTx(t *testing.T, kp *xcrypto.KeyPair, receiver [32]byte, amount, fee, nonce uint64, typ tx.Type) *tx.Transaction {
	t.Helper()
	unsigned, err := tx.New(kp.PublicKey(), receiver, amount, fee, 1000, nonce, typ, [64]byte{})
	require.NoError(t, err)
	sig := kp.Sign(unsigned.SigningBytes())
	signed, err := tx.New(kp.PublicKey(), receiver, amount, fee, 1000, nonce, typ, sig)
	require.NoError(t, err)
	return signed
}

func TestSelectValidTransactionsDropsUnderfundedSender(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100}))

	var receiver [32]byte
	affordable := buildSignedTx(t, kp, receiver, 50, 1, 0, tx.Transfer)
	overdrawn := buildSignedTx(t, kp, receiver, 1000, 1, 1, tx.Transfer)

	kept := selectValidTransactions(state, tx.Transactions{affordable, overdrawn})
	require.Len(t, kept, 1)
	assert.Equal(t, affordable.Hash(), kept[0].Hash())
}

func TestSelectValidTransactionsChecksCumulativeEffect(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100}))

	var receiver [32]byte
	first := buildSignedTx(t, kp, receiver, 60, 1, 0, tx.Transfer)
	second := buildSignedTx(t, kp, receiver, 60, 1, 1, tx.Transfer)

	kept := selectValidTransactions(state, tx.Transactions{first, second})
	require.Len(t, kept, 1)
	assert.Equal(t, first.Hash(), kept[0].Hash())
}

func TestValidateTransactionsAgainstStateRejectsStaleNonce(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100, Nonce: 1}))

	var receiver [32]byte
	stale := buildSignedTx(t, kp, receiver, 10, 1, 0, tx.Transfer)

	err = validateTransactionsAgainstState(state, tx.Transactions{stale})
	assert.Error(t, err)
}

func TestValidateTransactionsAgainstStateAcceptsWellFormedBatch(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100}))

	var receiver [32]byte
	t1 := buildSignedTx(t, kp, receiver, 10, 1, 0, tx.Transfer)
	t2 := buildSignedTx(t, kp, receiver, 10, 1, 1, tx.Transfer)

	assert.NoError(t, validateTransactionsAgainstState(state, tx.Transactions{t1, t2}))
}

func TestAdmissibleStakeAndUnstake(t *testing.T) {
	account := store.Account{Balance: 100}
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	var receiver [32]byte

	stake := buildSignedTx(t, kp, receiver, 40, 1, 0, tx.Stake)
	assert.True(t, admissible(account, stake))
	account = applyTx(account, stake)
	assert.Equal(t, uint64(59), account.Balance)
	assert.Equal(t, uint64(40), account.StakeAmount)

	unstake := buildSignedTx(t, kp, receiver, 40, 1, 1, tx.Unstake)
	assert.True(t, admissible(account, unstake))
	account = applyTx(account, unstake)
	assert.Equal(t, uint64(98), account.Balance)
	assert.Equal(t, uint64(0), account.StakeAmount)

	overUnstake := buildSignedTx(t, kp, receiver, 1, 1, 2, tx.Unstake)
	assert.False(t, admissible(account, overUnstake))
}
