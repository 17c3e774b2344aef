package engine

import (
	"sync"

	"github.com/vrfchain/node/types"
)

// DisconnectThreshold is the negative reputation score at or below
// which a peer is dropped.
const DisconnectThreshold = -10

// Reputation tracks per-peer behavioral scoring used to penalize
// conflicting announcements, invalid blocks, and missed production,
// independent of the epoch's stake-weighted scoring inputs.
type Reputation struct {
	mu     sync.Mutex
	scores map[types.PublicKey]int
}

// NewReputation creates an empty tracker.
func NewReputation() *Reputation {
	return &Reputation{scores: make(map[types.PublicKey]int)}
}

// Penalize decrements pk's score by delta (delta should be positive).
func (r *Reputation) Penalize(pk types.PublicKey, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[pk] -= delta
}

// Score returns pk's current reputation score (0 if never penalized).
func (r *Reputation) Score(pk types.PublicKey) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[pk]
}

// ShouldDisconnect reports whether pk's score has fallen to or below
// DisconnectThreshold.
func (r *Reputation) ShouldDisconnect(pk types.PublicKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[pk] <= DisconnectThreshold
}

// Penalty magnitudes for the specific faults named in the failure
// semantics: conflicting VRF announcements, invalid blocks, and a
// proposer's missed production.
const (
	PenaltyConflictingAnnouncement = 2
	PenaltyInvalidBlock            = 3
	PenaltyMissedProduction        = 1
	PenaltyInvalidVote             = 2
)
