package engine_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/engine"
	"github.com/vrfchain/node/mempool"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

type noopBroadcaster struct{}

func (noopBroadcaster) BroadcastAnnouncement(vrf.Announcement) {}
func (noopBroadcaster) BroadcastProposal(*block.Block)         {}
func (noopBroadcaster) BroadcastVote(types.Hash, types.PublicKey, types.Signature) {}

func easyTarget() *big.Int {
	max := new(big.Int).Lsh(big.NewInt(1), 256)
	return max.Sub(max, big.NewInt(1))
}

func TestRunRoundSingleNodeReachesFinal(t *testing.T) {
	kp, err := xcrypto.GenerateKeyPair()
	require.NoError(t, err)

	members := map[types.PublicKey]supernode.Info{
		kp.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
	}
	epoch, err := supernode.NewSet(members)
	require.NoError(t, err)

	eng, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	blocks := store.NewBlockStorage(eng)
	state := store.NewStateStorage(eng)
	pool := mempool.New(10, nil)

	e := engine.New(engine.Config{
		Self:       kp,
		Epoch:      epoch,
		Blocks:     blocks,
		State:      state,
		Pool:       pool,
		Reputation: engine.NewReputation(),
		Broadcast:  noopBroadcaster{},
		Difficulty: easyTarget(),
		NowMs:      func() uint64 { return 1000 },
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(engine.RoundSeconds*2)*time.Second)
	defer cancel()

	finalized, err := e.RunRound(ctx, 1, types.ZeroHash)
	require.NoError(t, err)
	assert.Equal(t, engine.Final, e.CurrentRound().State())
	assert.Equal(t, uint64(1), finalized.Height())

	latest, err := blocks.Latest()
	require.NoError(t, err)
	assert.Equal(t, finalized.Hash(), latest.Hash())
}

func TestRoundRejectsConflictingAnnouncement(t *testing.T) {
	kp1, _ := xcrypto.GenerateKeyPair()
	members := map[types.PublicKey]supernode.Info{
		kp1.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
	}
	epoch, err := supernode.NewSet(members)
	require.NoError(t, err)

	r := engine.NewRound(1, types.ZeroHash, epoch, kp1.PublicKey())
	info, _ := epoch.Get(kp1.PublicKey())
	ann1 := vrf.Announce(kp1, 1, types.ZeroHash, info, 1000)
	require.NoError(t, r.AddAnnouncement(ann1))

	// a second, differing announcement for the same (round, key)
	ann2 := ann1
	ann2.Output[0] ^= 0xff
	ann2.Proof = kp1.Sign(append(vrf.Input(types.ZeroHash, 1), ann2.Output[:]...))
	assert.Error(t, r.AddAnnouncement(ann2))
	assert.Equal(t, 0, r.AnnouncementCount())
}

func TestRoundDecideFailsBelowQuorumFloor(t *testing.T) {
	kp1, _ := xcrypto.GenerateKeyPair()
	kp2, _ := xcrypto.GenerateKeyPair()
	kp3, _ := xcrypto.GenerateKeyPair()
	members := map[types.PublicKey]supernode.Info{
		kp1.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
		kp2.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
		kp3.PublicKey(): {StakeWeight: 100, PerformanceFactor: supernode.Performance100, DecayFactor: 1.0},
	}
	epoch, err := supernode.NewSet(members)
	require.NoError(t, err)

	r := engine.NewRound(1, types.ZeroHash, epoch, kp1.PublicKey())
	info, _ := epoch.Get(kp1.PublicKey())
	ann := vrf.Announce(kp1, 1, types.ZeroHash, info, 1000)
	require.NoError(t, r.AddAnnouncement(ann))

	assert.Error(t, r.Decide())
	assert.Equal(t, engine.Failed, r.State())
}
