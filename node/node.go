// Package node wires storage, mempool, transport, peer management,
// gossip, sync, and the consensus engine into a running process.
package node

import (
	"context"
	"math/big"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/co"
	"github.com/vrfchain/node/config"
	"github.com/vrfchain/node/engine"
	"github.com/vrfchain/node/gossip"
	"github.com/vrfchain/node/log"
	"github.com/vrfchain/node/mempool"
	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/peer"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/sync"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

var logger = log.New("pkg", "node")

// Node owns every subsystem and drives the process's two background
// activities: network maintenance and the consensus round loop.
type Node struct {
	cfg   config.Config
	self  *xcrypto.KeyPair
	epoch *supernode.Set

	engineDB *store.Engine
	blocks   *store.BlockStorage
	state    *store.StateStorage
	pool     *mempool.Pool
	peers    *peer.Manager
	gossipH  *gossip.Hub
	syncer   *sync.Syncer
	rep      *engine.Reputation
	eng      *engine.Engine
	net      *Network
	verifier *p2p.Verifier

	goes  co.Goes
	nonce uint64

	syncMu   stdsync.Mutex
	syncWait chan []*block.Block
}

// New assembles a Node from cfg and the epoch's initial super node
// set. The keypair at cfg.NodeKeyPath is loaded, or generated on first
// run.
func New(cfg config.Config, epoch *supernode.Set) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	self, err := LoadOrGenerateIdentity(cfg.NodeKeyPath)
	if err != nil {
		return nil, err
	}

	var eng *store.Engine
	if cfg.DataDir == "" {
		eng, err = store.OpenMemory()
	} else {
		eng, err = store.OpenFile(cfg.DataDir)
	}
	if err != nil {
		return nil, errors.Wrap(err, "node: open storage")
	}

	blocks := store.NewBlockStorage(eng)
	state := store.NewStateStorage(eng)
	pool := mempool.New(mempool.DefaultCapacity, admissionValidator(cfg.FeeThreshold, state))
	peers := peer.New(self.PublicKey(), peer.Config{
		MinPeers:         cfg.MinPeers,
		MaxPeers:         cfg.MaxConnections,
		MaxRetryAttempts: 5,
		RetryIntervalMs:  10_000,
		PeerExpirationMs: 120_000,
	})
	rep := engine.NewReputation()

	n := &Node{
		cfg:      cfg,
		self:     self,
		epoch:    epoch,
		engineDB: eng,
		blocks:   blocks,
		state:    state,
		pool:     pool,
		peers:    peers,
		rep:      rep,
	}

	n.verifier = p2p.NewVerifier(p2p.NewDedupCache(16384), uint64(cfg.MessageTTLMs), nowMs)

	n.net = NewNetwork(self.PublicKey(), p2p.Config{
		CompressionEnabled: cfg.EnableCompression,
		CompressionLevel:   6,
		EncryptionEnabled:  cfg.EnableEncryption,
		IdleReadTimeout:    30 * time.Second,
		IdleWriteTimeout:   10 * time.Second,
	}, n.handleEnvelope)

	n.gossipH = gossip.New(gossip.DefaultCacheSize, n.sampleGossipPeers, n.sendGossip)
	n.syncer = sync.New(blocks, n.fetchRange)
	n.eng = engine.New(engine.Config{
		Self:       self,
		Epoch:      epoch,
		Blocks:     blocks,
		State:      state,
		Pool:       pool,
		Reputation: rep,
		Broadcast:  n,
		Difficulty: genesisDifficulty(),
		NowMs:      nowMs,
	})

	return n, nil
}

func nowMs() uint64 { return uint64(time.Now().UnixMilli()) }

// Run binds the listener, starts the background loops, and drives
// consensus rounds until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	addr := ":" + itoa(int(n.cfg.ListenPort))
	if err := n.net.Listen(addr); err != nil {
		return err
	}
	n.goes.Go(n.net.AcceptLoop)
	n.goes.Go(func() { n.dialLoop(ctx) })
	n.goes.Go(func() { n.gossipPullLoop(ctx) })
	n.goes.Go(func() { n.roundLoop(ctx) })

	<-ctx.Done()
	_ = n.net.Close()
	n.goes.Wait()
	return nil
}

// roundLoop drives consensus rounds back to back from the current
// chain tip.
func (n *Node) roundLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		number, prev := n.nextRoundInputs()
		roundCtx, cancel := context.WithTimeout(ctx, time.Duration(engine.RoundSeconds*2)*time.Second)
		finalized, err := n.eng.RunRound(roundCtx, number, prev)
		cancel()
		if err != nil {
			logger.Warn("round did not finalize", "round", number, "err", err)
			continue
		}
		if err := n.applyBlock(finalized); err != nil {
			logger.Error("apply finalized block to account state", "round", number, "err", err)
		}
	}
}

// applyBlock applies every transaction in b to account state according
// to its type, and bumps each sender's nonce, committed as a single
// atomic batch. A transaction whose nonce or balance no longer matches
// state (e.g. because an equivocating proposer included it twice) is
// skipped rather than applied, since the consensus-level validation
// that normally excludes it only runs against the round that produced
// the proposal, not every possible history.
func (n *Node) applyBlock(b *block.Block) error {
	updates := make(map[types.PublicKey]store.Account)
	get := func(pk types.PublicKey) (store.Account, error) {
		if a, ok := updates[pk]; ok {
			return a, nil
		}
		return n.state.Get(pk)
	}

	for _, t := range b.Transactions() {
		sender, err := get(t.Sender())
		if err != nil {
			return err
		}
		if t.Nonce() != sender.Nonce {
			logger.Warn("skipping transaction with stale nonce", "tx", t.Hash(), "expected", sender.Nonce, "got", t.Nonce())
			n.pool.Remove(t.Hash())
			continue
		}

		switch t.Type() {
		case tx.Stake:
			if sender.Balance < t.Amount()+t.Fee() {
				logger.Warn("skipping stake with insufficient balance", "tx", t.Hash())
				continue
			}
			sender.Balance -= t.Amount() + t.Fee()
			sender.StakeAmount += t.Amount()
		case tx.Unstake:
			if sender.StakeAmount < t.Amount() || sender.Balance < t.Fee() {
				logger.Warn("skipping unstake with insufficient stake or balance", "tx", t.Hash())
				continue
			}
			sender.Balance -= t.Fee()
			sender.Balance += t.Amount()
			sender.StakeAmount -= t.Amount()
		case tx.Vote:
			if sender.Balance < t.Fee() {
				logger.Warn("skipping vote with insufficient balance for fee", "tx", t.Hash())
				continue
			}
			sender.Balance -= t.Fee()
		default: // Transfer
			if sender.Balance < t.Amount()+t.Fee() {
				logger.Warn("skipping transfer with insufficient balance", "tx", t.Hash())
				continue
			}
			receiver, err := get(t.Receiver())
			if err != nil {
				return err
			}
			sender.Balance -= t.Amount() + t.Fee()
			receiver.Balance += t.Amount()
			receiver.LastUpdated = b.TimestampMs()
			updates[t.Receiver()] = receiver
		}

		sender.Nonce = t.Nonce() + 1
		sender.LastUpdated = b.TimestampMs()
		updates[t.Sender()] = sender
		n.pool.Remove(t.Hash())
	}
	if len(updates) == 0 {
		return nil
	}
	return n.state.ApplyBatch(updates)
}

// admissionValidator builds the mempool's state-dependent admission
// hook: a transaction must offer at least threshold in fee, and its
// nonce and available balance/stake must match the sender's current
// account state.
func admissionValidator(threshold uint64, state *store.StateStorage) mempool.Validator {
	return func(t *tx.Transaction) error {
		if t.Fee() < threshold {
			return errors.Errorf("node: fee %d below required threshold %d", t.Fee(), threshold)
		}
		sender, err := state.Get(t.Sender())
		if err != nil {
			return err
		}
		if t.Nonce() != sender.Nonce {
			return errors.Errorf("node: nonce %d does not match expected %d", t.Nonce(), sender.Nonce)
		}
		switch t.Type() {
		case tx.Unstake:
			if sender.StakeAmount < t.Amount() || sender.Balance < t.Fee() {
				return errors.New("node: insufficient stake or balance for unstake")
			}
		case tx.Vote:
			if sender.Balance < t.Fee() {
				return errors.New("node: insufficient balance for vote fee")
			}
		default: // Transfer, Stake
			if sender.Balance < t.Amount()+t.Fee() {
				return errors.New("node: insufficient balance")
			}
		}
		return nil
	}
}

// maybeCatchUp triggers background catch-up when a received block is
// far enough ahead of the local tip that it cannot simply be the next
// round's proposal.
func (n *Node) maybeCatchUp(remoteHeight uint64, from types.PublicKey) {
	tip, err := n.blocks.Latest()
	var localHeight uint64
	if err == nil {
		localHeight = tip.Height()
	}
	if remoteHeight <= localHeight+1 {
		return
	}
	go func() {
		if err := n.syncer.CatchUp(from, remoteHeight, n.epoch); err != nil {
			logger.Warn("catch-up failed", "err", err)
		}
	}()
}

// genesisDifficulty is the starting proof-of-work target: any node
// seeding a new chain agrees on this value out of band with its peers.
func genesisDifficulty() *big.Int {
	// roughly one PoW hit in 2^20 nonce tries, tunable per deployment
	target := new(big.Int).Lsh(big.NewInt(1), 256-20)
	return target
}

func (n *Node) nextRoundInputs() (uint32, types.Hash) {
	tip, err := n.blocks.Latest()
	if err != nil {
		return 1, types.ZeroHash
	}
	return uint32(tip.Height()) + 1, tip.Hash()
}

// dialLoop periodically tops up connectivity toward MinPeers using
// known, eligible candidates.
func (n *Node) dialLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if !n.peers.NeedsMorePeers() {
			continue
		}
		now := nowMs()
		n.peers.ExpireIdle(now)
		for _, cand := range n.peers.CandidatesToDial(now) {
			if n.peers.AtCapacity() {
				break
			}
			n.peers.MarkConnecting(cand.PublicKey, now)
			if err := n.net.Dial(cand.PublicKey, cand.Address); err != nil {
				n.peers.MarkFailed(cand.PublicKey)
				continue
			}
			n.peers.MarkConnected(cand.PublicKey, now)
		}
	}
}

// gossipPullLoop periodically reconciles gossip holes by pulling
// recently-seen message IDs from a random connected peer.
func (n *Node) gossipPullLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		connected := n.peers.Connected()
		if len(connected) == 0 {
			continue
		}
		// a single random sample is enough for a periodic best-effort pull
		target := connected[int(nowMs())%len(connected)]
		payload, err := encodePullRequestPayload(pullRequestPayload{KnownIDs: n.gossipH.KnownIDs()})
		if err != nil {
			continue
		}
		env, err := n.buildEnvelope(p2p.PullRequest, payload)
		if err != nil {
			continue
		}
		_ = n.net.Send(target, env)
	}
}

func (n *Node) sampleGossipPeers(count int, exclude map[types.PublicKey]struct{}) []types.PublicKey {
	connected := n.peers.Connected()
	out := make([]types.PublicKey, 0, count)
	for _, pk := range connected {
		if _, skip := exclude[pk]; skip {
			continue
		}
		out = append(out, pk)
		if len(out) >= count {
			break
		}
	}
	return out
}

func (n *Node) sendGossip(pk types.PublicKey, env *p2p.Envelope) error {
	return n.net.Send(pk, env)
}

// fetchRange implements sync.Fetcher: it sends a SYNC_REQUEST to pk
// and blocks for the matching SYNC_RESPONSE, delivered back in via
// handleEnvelope. Syncer.CatchUp already bars concurrent catch-ups, so
// a single waiting channel is never contended.
func (n *Node) fetchRange(pk types.PublicKey, req sync.Request) ([]*block.Block, error) {
	payload, err := encodeSyncRequestPayload(syncRequestPayload{FromHeight: req.FromHeight, ToHeight: req.ToHeight})
	if err != nil {
		return nil, err
	}
	env, err := n.buildEnvelope(p2p.SyncRequest, payload)
	if err != nil {
		return nil, err
	}

	n.syncMu.Lock()
	n.syncWait = make(chan []*block.Block, 1)
	wait := n.syncWait
	n.syncMu.Unlock()

	if err := n.net.Send(pk, env); err != nil {
		return nil, err
	}

	select {
	case blocks := <-wait:
		return blocks, nil
	case <-time.After(30 * time.Second):
		return nil, errors.New("sync: request timed out waiting for response")
	}
}

// buildEnvelope constructs and signs an envelope of the given type
// carrying payload, stamping it with a fresh nonce and the current time.
func (n *Node) buildEnvelope(t p2p.Type, payload []byte) (*p2p.Envelope, error) {
	env := &p2p.Envelope{
		Type:        t,
		SenderPK:    n.self.PublicKey(),
		TimestampMs: nowMs(),
		Nonce:       atomic.AddUint64(&n.nonce, 1),
		Payload:     payload,
	}
	env.Signature = n.self.Sign(env.SigningBytes())
	return env, nil
}

// BroadcastAnnouncement implements engine.Broadcaster.
func (n *Node) BroadcastAnnouncement(ann vrf.Announcement) {
	payload, err := encodeAnnouncementPayload(ann)
	if err != nil {
		logger.Error("encode announcement", "err", err)
		return
	}
	env, err := n.buildEnvelope(p2p.VRFAnnouncement, payload)
	if err != nil {
		return
	}
	n.gossipH.Originate(env)
}

// BroadcastProposal implements engine.Broadcaster.
func (n *Node) BroadcastProposal(b *block.Block) {
	payload, err := encodeBlockPayload(b)
	if err != nil {
		logger.Error("encode proposal", "err", err)
		return
	}
	env, err := n.buildEnvelope(p2p.BlockProposal, payload)
	if err != nil {
		return
	}
	n.gossipH.Originate(env)
}

// BroadcastVote implements engine.Broadcaster.
func (n *Node) BroadcastVote(blockHash types.Hash, signer types.PublicKey, sig types.Signature) {
	payload, err := encodeVotePayload(votePayload{BlockHash: blockHash, Signer: signer, Signature: sig})
	if err != nil {
		return
	}
	env, err := n.buildEnvelope(p2p.BlockVote, payload)
	if err != nil {
		return
	}
	n.gossipH.Originate(env)
}

// SubmitTransaction offers t to the local mempool (e.g. from an RPC
// collaborator), then broadcasts it on acceptance.
func (n *Node) SubmitTransaction(t *tx.Transaction) error {
	if err := n.pool.Add(t); err != nil {
		return err
	}
	payload, err := encodeTxPayload(t)
	if err != nil {
		return err
	}
	env, err := n.buildEnvelope(p2p.Transaction, payload)
	if err != nil {
		return err
	}
	n.gossipH.Originate(env)
	return nil
}

// Close releases the underlying storage engine. Call after Run
// returns.
func (n *Node) Close() error {
	return n.engineDB.Close()
}

func itoa(v int) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
