// Package engine implements the consensus round driver: VRF
// collection, proposer selection, block proposal and validation, and
// signature-quorum finalization.
package engine

import (
	"context"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/log"
	"github.com/vrfchain/node/mempool"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

var logger = log.New("pkg", "engine")

// Broadcaster fans a locally-produced message out to the network; the
// engine does not know or care how (direct send vs gossip) — that is
// the caller-supplied wiring's job.
type Broadcaster interface {
	BroadcastAnnouncement(vrf.Announcement)
	BroadcastProposal(*block.Block)
	BroadcastVote(blockHash types.Hash, signer types.PublicKey, sig types.Signature)
}

// Engine drives one round at a time to completion, then advances the
// chain tip and starts the next.
type Engine struct {
	self       *xcrypto.KeyPair
	epoch      *supernode.Set
	blocks     *store.BlockStorage
	state      *store.StateStorage
	pool       *mempool.Pool
	rep        *Reputation
	bc         Broadcaster
	difficulty *big.Int
	nowMs      func() uint64

	round *Round
}

// Config bundles an Engine's fixed collaborators.
type Config struct {
	Self       *xcrypto.KeyPair
	Epoch      *supernode.Set
	Blocks     *store.BlockStorage
	State      *store.StateStorage
	Pool       *mempool.Pool
	Reputation *Reputation
	Broadcast  Broadcaster
	Difficulty *big.Int
	NowMs      func() uint64
}

// New creates an Engine from cfg.
func New(cfg Config) *Engine {
	return &Engine{
		self:       cfg.Self,
		epoch:      cfg.Epoch,
		blocks:     cfg.Blocks,
		state:      cfg.State,
		pool:       cfg.Pool,
		rep:        cfg.Reputation,
		bc:         cfg.Broadcast,
		difficulty: cfg.Difficulty,
		nowMs:      cfg.NowMs,
	}
}

// CurrentRound returns the round currently in flight, or nil before
// the first call to RunRound.
func (e *Engine) CurrentRound() *Round { return e.round }

// RunRound drives exactly one round to completion (FINAL or FAILED),
// returning the finalized block on success. ctx bounds the whole
// round; callers normally give it RoundSeconds of budget plus slack.
func (e *Engine) RunRound(ctx context.Context, number uint32, prevHash types.Hash) (*block.Block, error) {
	r := NewRound(number, prevHash, e.epoch, e.self.PublicKey())
	e.round = r
	r.Start()

	if err := e.collectVRF(ctx, r); err != nil {
		return nil, err
	}
	if err := r.Decide(); err != nil {
		return nil, err
	}

	if r.IsLocalPrimary() {
		if err := e.propose(ctx, r); err == nil {
			return e.finalize(ctx, r)
		}
		logger.Warn("primary proposal failed", "round", number)
	}

	blockCtx, cancel := context.WithTimeout(ctx, ProposalSeconds*time.Second)
	defer cancel()
	if b := e.awaitProposal(blockCtx, r); b != nil {
		r.SetProposal(b)
		return e.finalize(ctx, r)
	}

	if r.IsLocalBackup() {
		if err := r.EnterBackup(); err == nil {
			if err := e.propose(ctx, r); err == nil {
				return e.finalize(ctx, r)
			}
		}
	}

	r.Abandon()
	return nil, errRoundAbandoned
}

// collectVRF computes and broadcasts the local announcement, then
// waits out the collection window (or until every member has
// announced, whichever is first).
func (e *Engine) collectVRF(ctx context.Context, r *Round) error {
	info, ok := e.epoch.Get(e.self.PublicKey())
	if ok {
		ann := vrf.Announce(e.self, r.Number, r.PrevHash, info, e.nowMs())
		if err := r.AddAnnouncement(ann); err != nil {
			return err
		}
		e.bc.BroadcastAnnouncement(ann)
	}

	deadline := time.NewTimer(VRFCollectSeconds * time.Second)
	defer deadline.Stop()
	for {
		if r.AnnouncementCount() >= e.epoch.N() {
			return nil
		}
		select {
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// ReceiveAnnouncement feeds a network-received announcement into the
// round in progress, applying the reputation penalty on conflict.
func (e *Engine) ReceiveAnnouncement(ann vrf.Announcement) {
	if e.round == nil {
		return
	}
	if err := e.round.AddAnnouncement(ann); err != nil {
		e.rep.Penalize(ann.PublicKey, PenaltyConflictingAnnouncement)
	}
}

// propose builds, PoW-mines within PoWSearchSeconds, and broadcasts a
// block for r, then sets it as the round's proposal.
func (e *Engine) propose(ctx context.Context, r *Round) error {
	all := r.Announcements()
	txs := selectValidTransactions(e.state, e.pool.Pick(maxTxPerBlock))

	var vrfOutput types.Hash
	var vrfProof types.Signature
	for _, a := range all {
		if a.PublicKey == e.self.PublicKey() {
			vrfOutput, vrfProof = a.Output, a.Proof
			break
		}
	}

	b, err := block.NewBuilder().
		Height(e.tipHeightPlusOne()).
		Round(r.Number).
		TimestampMs(e.nowMs()).
		PreviousHash(r.PrevHash).
		Proposer(e.self.PublicKey()).
		VRF(vrfOutput, vrfProof).
		Announcements(all).
		Transactions(txs).
		DifficultyTarget(e.difficulty).
		Build()
	if err != nil {
		return errors.Wrap(err, "engine: build proposal")
	}

	mined, err := e.mine(ctx, b)
	if err != nil {
		return err
	}
	r.SetProposal(mined)
	e.bc.BroadcastProposal(mined)

	sig := e.self.Sign(mined.SigningHash().Bytes())
	if err := r.AddSignature(e.self.PublicKey(), sig); err != nil {
		return errors.Wrap(err, "engine: record own vote")
	}
	e.bc.BroadcastVote(mined.Hash(), e.self.PublicKey(), sig)
	return nil
}

// mine searches nonces from 0 until CheckPoW succeeds or the PoW
// budget expires.
func (e *Engine) mine(ctx context.Context, b *block.Block) (*block.Block, error) {
	mineCtx, cancel := context.WithTimeout(ctx, PoWSearchSeconds*time.Second)
	defer cancel()
	for nonce := uint64(0); ; nonce++ {
		select {
		case <-mineCtx.Done():
			return nil, errPoWTimeout
		default:
		}
		candidate := b.WithNonce(nonce)
		if candidate.CheckPoW() {
			return candidate, nil
		}
	}
}

// awaitProposal waits for a block to be delivered to the round via
// ReceiveProposal, up to ctx's deadline.
func (e *Engine) awaitProposal(ctx context.Context, r *Round) *block.Block {
	for {
		if b := r.Proposal(); b != nil {
			return b
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// ReceiveProposal validates a block received from the declared
// proposer and, if valid, records it as the round's proposal and
// casts the local vote.
func (e *Engine) ReceiveProposal(b *block.Block) error {
	if e.round == nil {
		return errNoActiveRound
	}
	if b.PreviousHash() != e.round.PrevHash {
		e.rep.Penalize(b.Proposer(), PenaltyInvalidBlock)
		return errors.New("engine: proposal does not extend the local chain tip")
	}
	if err := b.ValidateSelfContained(e.epoch); err != nil {
		e.rep.Penalize(b.Proposer(), PenaltyInvalidBlock)
		return err
	}
	if err := validateTransactionsAgainstState(e.state, b.Transactions()); err != nil {
		e.rep.Penalize(b.Proposer(), PenaltyInvalidBlock)
		return err
	}
	e.round.SetProposal(b)
	sig := e.self.Sign(b.SigningHash().Bytes())
	if err := e.round.AddSignature(e.self.PublicKey(), sig); err != nil {
		return errors.Wrap(err, "engine: record own vote")
	}
	e.bc.BroadcastVote(b.Hash(), e.self.PublicKey(), sig)
	return nil
}

// ReceiveVote verifies and records a peer's vote for the round's
// current proposal. A vote from a non-member, or one whose signature
// does not verify over the proposal's signing hash, is rejected and
// the signer's reputation is penalized rather than counting toward
// quorum.
func (e *Engine) ReceiveVote(signer types.PublicKey, sig types.Signature) {
	if e.round == nil {
		return
	}
	if err := e.round.AddSignature(signer, sig); err != nil {
		e.rep.Penalize(signer, PenaltyInvalidVote)
	}
}

// finalize waits for signature quorum, then persists the block.
// Storage write failures are retried idempotently until they succeed,
// since the block is not final until the write succeeds.
func (e *Engine) finalize(ctx context.Context, r *Round) (*block.Block, error) {
	for {
		if r.State() == Final {
			b := r.Proposal()
			for {
				if err := e.blocks.Put(b); err != nil {
					logger.Error("persist finalized block failed, retrying", "err", err)
					select {
					case <-ctx.Done():
						return nil, ctx.Err()
					case <-time.After(100 * time.Millisecond):
						continue
					}
				}
				return b, nil
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func (e *Engine) tipHeightPlusOne() uint64 {
	tip, err := e.blocks.Latest()
	if err != nil {
		return 1
	}
	return tip.Height() + 1
}

const maxTxPerBlock = 500

var (
	errRoundAbandoned = errors.New("engine: round abandoned, primary and backup both timed out")
	errPoWTimeout     = errors.New("engine: proof-of-work search exceeded its budget")
	errNoActiveRound  = errors.New("engine: no round in progress")
)
