package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/xcrypto"
)

func buildAdmissionTx(t *testing.T, kp *xcrypto.KeyPair, amount, fee, nonce uint64, typ tx.Type) *tx.Transaction {
	t.Helper()
	var receiver types.PublicKey
	unsigned, err := tx.New(kp.PublicKey(), receiver, amount, fee, 1000, nonce, typ, types.Signature{})
	require.NoError(t, err)
	sig := kp.Sign(unsigned.SigningBytes())
	signed, err := tx.New(kp.PublicKey(), receiver, amount, fee, 1000, nonce, typ, sig)
	require.NoError(t, err)
	return signed
}

func TestAdmissionValidatorRejectsFeeBelowThreshold(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100}))

	validate := admissionValidator(10, state)
	cheap := buildAdmissionTx(t, kp, 1, 1, 0, tx.Transfer)
	assert.Error(t, validate(cheap))
}

func TestAdmissionValidatorRejectsInsufficientBalance(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 5}))

	validate := admissionValidator(1, state)
	overdrawn := buildAdmissionTx(t, kp, 100, 1, 0, tx.Transfer)
	assert.Error(t, validate(overdrawn))
}

func TestAdmissionValidatorAcceptsWellFormedTransaction(t *testing.T) {
	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	state := store.NewStateStorage(eng)

	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.Put(kp.PublicKey(), store.Account{Balance: 100}))

	validate := admissionValidator(1, state)
	ok := buildAdmissionTx(t, kp, 10, 1, 0, tx.Transfer)
	assert.NoError(t, validate(ok))
}
