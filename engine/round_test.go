package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/engine"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

func decidedRound(t *testing.T) (*engine.Round, *xcrypto.KeyPair, *block.Block) {
	t.Helper()
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)
	members := map[types.PublicKey]supernode.Info{
		kp.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
	}
	epoch, err := supernode.NewSet(members)
	require.NoError(t, err)

	r := engine.NewRound(1, types.ZeroHash, epoch, kp.PublicKey())
	info, _ := epoch.Get(kp.PublicKey())
	ann := vrf.Announce(kp, 1, types.ZeroHash, info, 1000)
	require.NoError(t, r.AddAnnouncement(ann))
	require.NoError(t, r.Decide())

	b, err := block.NewBuilder().
		Height(1).
		Round(1).
		TimestampMs(1000).
		PreviousHash(types.ZeroHash).
		Proposer(kp.PublicKey()).
		Announcements([]vrf.Announcement{ann}).
		DifficultyTarget(easyTarget()).
		Build()
	require.NoError(t, err)
	r.SetProposal(b)
	return r, kp, b
}

func TestAddSignatureRejectsUnknownSigner(t *testing.T) {
	r, _, b := decidedRound(t)
	stranger, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)

	sig := stranger.Sign(b.SigningHash().Bytes())
	assert.Error(t, r.AddSignature(stranger.PublicKey(), sig))
	assert.Equal(t, 0, r.SignatureCount())
}

func TestAddSignatureRejectsForgedSignature(t *testing.T) {
	r, kp, b := decidedRound(t)

	var forged types.Signature
	real := kp.Sign(b.SigningHash().Bytes())
	forged = real
	forged[0] ^= 0xff

	assert.Error(t, r.AddSignature(kp.PublicKey(), forged))
	assert.Equal(t, 0, r.SignatureCount())
}

func TestAddSignatureAcceptsGenuineVote(t *testing.T) {
	r, kp, b := decidedRound(t)
	sig := kp.Sign(b.SigningHash().Bytes())
	require.NoError(t, r.AddSignature(kp.PublicKey(), sig))
	assert.Equal(t, 1, r.SignatureCount())
	assert.Equal(t, engine.Final, r.State())
}
