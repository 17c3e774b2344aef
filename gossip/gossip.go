// Package gossip implements message fan-out over the transport: a
// bounded message cache, randomized forwarding to a small peer
// sample, hop aging, and a periodic pull loop to heal gossip holes.
package gossip

import (
	"crypto/sha256"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/vrfchain/node/cache"
	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/types"
)

// Fanout is the number of not-yet-seen peers a message is forwarded to.
const Fanout = 3

// MaxRounds is the maximum number of hops a message is relayed before
// aging out, even if peers keep reporting it as unseen.
const MaxRounds = 10

// DefaultCacheSize bounds the number of in-flight message records held.
const DefaultCacheSize = 8192

// PeerSampler selects up to n random connected peers excluding any in
// the already-seen set, e.g. backed by peer.Manager's connected set.
type PeerSampler func(n int, exclude map[types.PublicKey]struct{}) []types.PublicKey

// Sender delivers an envelope directly to one peer.
type Sender func(peer types.PublicKey, env *p2p.Envelope) error

// record tracks one gossip message's propagation state. env is kept so
// a later pull-reconciliation request can replay the original message
// to a peer that missed it.
type record struct {
	env    *p2p.Envelope
	seenBy map[types.PublicKey]struct{}
	rounds int
}

// Hub fans inbound gossip-eligible messages out to local subscribers
// (via its event.Feed) and to a random peer sample (via Sender), while
// deduplicating via a bounded message cache.
type Hub struct {
	mu     sync.Mutex
	cache  *cache.RandCache
	sample PeerSampler
	send   Sender
	feed   event.Feed
	scope  event.SubscriptionScope
}

// New creates a Hub wired to sample (peer selection) and send (direct
// delivery), with a message cache bounded to capacity entries.
func New(capacity int, sample PeerSampler, send Sender) *Hub {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &Hub{cache: cache.NewRandCache(capacity), sample: sample, send: send}
}

// Subscribe registers ch to receive every gossip-eligible envelope
// this hub accepts, whether locally originated or received from a peer.
func (h *Hub) Subscribe(ch chan<- *p2p.Envelope) event.Subscription {
	return h.scope.Track(h.feed.Subscribe(ch))
}

// Close unsubscribes all local subscribers.
func (h *Hub) Close() { h.scope.Close() }

func messageID(env *p2p.Envelope) types.Hash {
	sum := sha256.Sum256(env.SigningBytes())
	return sum
}

// Originate injects a locally-produced gossip-eligible message into
// the hub, starting its propagation from this node.
func (h *Hub) Originate(env *p2p.Envelope) {
	h.accept(env, types.PublicKey{})
}

// Receive processes a gossip-eligible message received from fromPeer.
// Already-seen messages are recorded as having reached fromPeer (so
// future fan-out skips it) but are not re-forwarded or re-published.
func (h *Hub) Receive(env *p2p.Envelope, fromPeer types.PublicKey) {
	h.accept(env, fromPeer)
}

func (h *Hub) accept(env *p2p.Envelope, fromPeer types.PublicKey) {
	id := messageID(env)

	h.mu.Lock()
	existing, ok := h.cache.Get(id)
	var rec *record
	firstSeen := !ok
	if ok {
		rec = existing.(*record)
	} else {
		rec = &record{env: env, seenBy: make(map[types.PublicKey]struct{})}
	}
	if fromPeer != (types.PublicKey{}) {
		rec.seenBy[fromPeer] = struct{}{}
	}
	h.cache.Set(id, rec)
	h.mu.Unlock()

	if firstSeen {
		h.feed.Send(env)
	}
	if !firstSeen || rec.rounds >= MaxRounds {
		return
	}
	h.forward(id, rec, env)
}

func (h *Hub) forward(id types.Hash, rec *record, env *p2p.Envelope) {
	if h.sample == nil || h.send == nil {
		return
	}
	h.mu.Lock()
	exclude := make(map[types.PublicKey]struct{}, len(rec.seenBy))
	for pk := range rec.seenBy {
		exclude[pk] = struct{}{}
	}
	rec.rounds++
	h.mu.Unlock()

	targets := h.sample(Fanout, exclude)
	for _, pk := range targets {
		if err := h.send(pk, env); err == nil {
			h.mu.Lock()
			rec.seenBy[pk] = struct{}{}
			h.mu.Unlock()
		}
	}
}

// PullRequest is the periodic reconciliation payload: the node asks a
// peer for any message IDs it has seen that we have not.
type PullRequest struct {
	KnownIDs []types.Hash
}

// KnownIDs returns every message ID currently tracked, for inclusion
// in an outbound pull request.
func (h *Hub) KnownIDs() []types.Hash {
	var out []types.Hash
	h.cache.ForEach(func(e *cache.Entry) bool {
		out = append(out, e.Key.(types.Hash))
		return true
	})
	return out
}

// Missing filters candidateIDs down to those this hub has not seen.
func (h *Hub) Missing(candidateIDs []types.Hash) []types.Hash {
	var out []types.Hash
	for _, id := range candidateIDs {
		if !h.cache.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Envelope returns the stored envelope for a previously-seen message
// id, for replaying to a peer that requested it via pull
// reconciliation. ok is false once the entry has aged out of the cache.
func (h *Hub) Envelope(id types.Hash) (env *p2p.Envelope, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, found := h.cache.Get(id)
	if !found {
		return nil, false
	}
	rec := v.(*record)
	return rec.env, rec.env != nil
}
