// Package sync implements ranged block catch-up: requesting missing
// blocks from peers and applying them to local storage in order.
package sync

import (
	stdsync "sync"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
)

// MaxBlocksPerRequest bounds a single SYNC_REQUEST/SYNC_RESPONSE pair,
// limiting memory pressure from a single peer response.
const MaxBlocksPerRequest = 100

// Request describes a range of blocks to fetch, by height, exclusive
// of any bound the requester already has.
type Request struct {
	FromHeight uint64
	ToHeight   uint64 // inclusive; capped by the responder to MaxBlocksPerRequest
}

// Fetcher retrieves a batch of blocks for req from a specific peer.
type Fetcher func(peer types.PublicKey, req Request) ([]*block.Block, error)

// Syncer drives catch-up against local BlockStorage using a Fetcher
// for the wire round-trip. It applies blocks strictly in height order
// and stops at the first validation failure, backing off rather than
// racing ahead of a slow or malicious peer.
type Syncer struct {
	blocks *store.BlockStorage
	fetch  Fetcher

	mu       stdsync.Mutex
	inFlight bool
}

// New creates a Syncer over blocks, using fetch for the wire fetch.
func New(blocks *store.BlockStorage, fetch Fetcher) *Syncer {
	return &Syncer{blocks: blocks, fetch: fetch}
}

// CatchUp fetches and applies blocks from the local tip's height+1 up
// to targetHeight (as reported by a peer's chain-tip advertisement),
// one bounded request at a time. Only one catch-up runs at a time;
// concurrent calls return immediately with no error (backpressure).
func (s *Syncer) CatchUp(peer types.PublicKey, targetHeight uint64, epoch *supernode.Set) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight = false
		s.mu.Unlock()
	}()

	tip, err := s.blocks.Latest()
	var from uint64
	prevHash := types.ZeroHash
	if err == nil {
		from = tip.Height() + 1
		prevHash = tip.Hash()
	} else if errors.Is(err, store.ErrNotFound) {
		from = 1
	} else {
		return errors.Wrap(err, "sync: read local tip")
	}

	for from <= targetHeight {
		to := from + MaxBlocksPerRequest - 1
		if to > targetHeight {
			to = targetHeight
		}
		batch, err := s.fetch(peer, Request{FromHeight: from, ToHeight: to})
		if err != nil {
			return errors.Wrap(err, "sync: fetch block range")
		}
		if len(batch) == 0 {
			return errors.New("sync: peer returned empty batch")
		}
		for _, b := range batch {
			if b.Height() != from {
				return errors.Errorf("sync: expected height %d, got %d", from, b.Height())
			}
			if b.PreviousHash() != prevHash {
				return errors.Errorf("sync: block %d does not link to its predecessor", from)
			}
			if err := b.ValidateSelfContained(epoch); err != nil {
				return errors.Wrapf(err, "sync: block %d failed validation", from)
			}
			if err := s.blocks.Put(b); err != nil {
				return errors.Wrapf(err, "sync: persist block %d", from)
			}
			prevHash = b.Hash()
			from++
		}
	}
	return nil
}

// InProgress reports whether a catch-up is currently running.
func (s *Syncer) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}
