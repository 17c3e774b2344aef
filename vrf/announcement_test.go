package vrf_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

func mkSet(t *testing.T, keys ...types.PublicKey) *supernode.Set {
	members := make(map[types.PublicKey]supernode.Info)
	for _, k := range keys {
		members[k] = supernode.Info{StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0}
	}
	s, err := supernode.NewSet(members)
	require.NoError(t, err)
	return s
}

func TestAnnounceAndVerify(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	set := mkSet(t, kp.PublicKey())

	info, _ := set.Get(kp.PublicKey())
	prevHash := types.Hash{}
	ann := vrf.Announce(kp, 1, prevHash, info, 1000)

	require.NoError(t, ann.Verify(prevHash, 1, set))
}

func TestVerifyRejectsWrongRound(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	set := mkSet(t, kp.PublicKey())
	info, _ := set.Get(kp.PublicKey())
	prevHash := types.Hash{}
	ann := vrf.Announce(kp, 1, prevHash, info, 1000)

	assert.Error(t, ann.Verify(prevHash, 2, set))
}

func TestVerifyRejectsTamperedScore(t *testing.T) {
	kp, _ := xcrypto.GenerateKeyPair()
	set := mkSet(t, kp.PublicKey())
	info, _ := set.Get(kp.PublicKey())
	prevHash := types.Hash{}
	ann := vrf.Announce(kp, 1, prevHash, info, 1000)
	ann.Score = ann.Score + 0.5
	if ann.Score > 1 {
		ann.Score = 0
	}

	assert.Error(t, ann.Verify(prevHash, 1, set))
}

func TestProposerTieBreakLexSmallest(t *testing.T) {
	var pkA, pkB types.PublicKey
	pkA[0] = 0x01
	pkB[0] = 0x02

	as := []vrf.Announcement{
		{PublicKey: pkB, Score: 0.5},
		{PublicKey: pkA, Score: 0.5},
	}
	primary, backup, hasBackup, ok := vrf.Proposer(as)
	require.True(t, ok)
	require.True(t, hasBackup)
	assert.Equal(t, pkA, primary.PublicKey)
	assert.Equal(t, pkB, backup.PublicKey)
}

func TestTopNTruncatesToSetSize(t *testing.T) {
	as := []vrf.Announcement{{Score: 0.9}, {Score: 0.1}}
	top := vrf.TopN(as, 15)
	assert.Len(t, top, 2)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	var output types.Hash
	for i := range output {
		output[i] = 0xff
	}
	info := supernode.Info{StakeWeight: 1e9, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0}
	score := vrf.Score(output, info)
	assert.LessOrEqual(t, score, 1.0)
	assert.GreaterOrEqual(t, score, 0.0)
}
