package p2p

import (
	"fmt"

	"github.com/vrfchain/node/cache"
	"github.com/vrfchain/node/xcrypto"
)

// DefaultMessageTTLMs is the default envelope freshness window.
const DefaultMessageTTLMs = 5 * 60 * 1000

// DedupCache tracks recently-seen (sender, nonce, timestamp) triples
// to reject replayed envelopes.
type DedupCache struct {
	seen *cache.LRU
}

// NewDedupCache creates a dedup cache bounded to capacity entries.
func NewDedupCache(capacity int) *DedupCache {
	return &DedupCache{seen: cache.NewLRU(capacity)}
}

func dedupKey(e *Envelope) string {
	return fmt.Sprintf("%x:%d:%d", e.SenderPK, e.Nonce, e.TimestampMs)
}

// Verifier runs the receipt-side verification pipeline on an envelope:
// signature check, replay check, and TTL check.
type Verifier struct {
	dedup *DedupCache
	ttlMs uint64
	nowMs func() uint64
}

// NewVerifier creates a Verifier with the given dedup cache and TTL.
// nowMs supplies the current wall-clock time in milliseconds.
func NewVerifier(dedup *DedupCache, ttlMs uint64, nowMs func() uint64) *Verifier {
	if ttlMs == 0 {
		ttlMs = DefaultMessageTTLMs
	}
	return &Verifier{dedup: dedup, ttlMs: ttlMs, nowMs: nowMs}
}

// Accept runs the full pipeline, returning nil if e should be
// processed, or an error naming the first failed check. Per the
// transport's drop policy, callers should discard e silently on any
// error rather than propagate it to the peer.
func (v *Verifier) Accept(e *Envelope) error {
	if !xcrypto.Verify(e.SenderPK, e.SigningBytes(), e.Signature) {
		return errInvalidSignature
	}
	key := dedupKey(e)
	if v.dedup.seen.Contains(key) {
		return errDuplicate
	}
	now := v.nowMs()
	if now < e.TimestampMs || now-e.TimestampMs >= v.ttlMs {
		return errExpired
	}
	v.dedup.seen.Add(key, struct{}{})
	return nil
}

var (
	errInvalidSignature = fmt.Errorf("p2p: signature does not verify")
	errDuplicate        = fmt.Errorf("p2p: duplicate message")
	errExpired          = fmt.Errorf("p2p: message expired or timestamp in future")
)
