// Package supernode models the epoch-level super-node set: the core's
// external input describing the fixed 50-member election set, their
// stake weights, and performance/decay factors. The election
// process itself is out of scope; this package only
// carries what the election subsystem hands to the core.
package supernode

import (
	"math"

	"github.com/vrfchain/node/types"
)

// PerformanceFactor is restricted to four discrete tiers.
type PerformanceFactor float64

const (
	Performance70 PerformanceFactor = 0.70
	Performance85 PerformanceFactor = 0.85
	Performance95 PerformanceFactor = 0.95
	Performance100 PerformanceFactor = 1.00
)

// Info is one super node's epoch-constant scoring inputs.
type Info struct {
	StakeWeight       float64
	PerformanceFactor PerformanceFactor
	DecayFactor       float64 // ∈ [0.5, 1.0]
}

// Set is the epoch's super-node membership, keyed by public key.
// Immutable for the epoch's lifetime; the core never mutates it.
type Set struct {
	members map[types.PublicKey]Info
	order   []types.PublicKey
}

// NewSet builds a Set from a members map, validating each entry's
// bounds.
func NewSet(members map[types.PublicKey]Info) (*Set, error) {
	s := &Set{members: make(map[types.PublicKey]Info, len(members))}
	for pk, info := range members {
		if info.StakeWeight < 0 {
			return nil, errInvalid("negative stake weight")
		}
		if info.DecayFactor < 0.5 || info.DecayFactor > 1.0 {
			return nil, errInvalid("decay factor out of [0.5, 1.0]")
		}
		switch info.PerformanceFactor {
		case Performance70, Performance85, Performance95, Performance100:
		default:
			return nil, errInvalid("performance factor must be one of {0.70, 0.85, 0.95, 1.00}")
		}
		s.members[pk] = info
		s.order = append(s.order, pk)
	}
	types.SortPublicKeys(s.order)
	return s, nil
}

func errInvalid(msg string) error { return &invalidSetError{msg} }

type invalidSetError struct{ msg string }

func (e *invalidSetError) Error() string { return "supernode: " + e.msg }

// N returns the super-node count for this epoch.
func (s *Set) N() int { return len(s.members) }

// Get returns the scoring inputs for pk and whether pk is a member.
func (s *Set) Get(pk types.PublicKey) (Info, bool) {
	info, ok := s.members[pk]
	return info, ok
}

// Contains reports whether pk is a member of this epoch's set.
func (s *Set) Contains(pk types.PublicKey) bool {
	_, ok := s.members[pk]
	return ok
}

// Members returns the member public keys in lexicographic order.
func (s *Set) Members() []types.PublicKey {
	return append([]types.PublicKey(nil), s.order...)
}

// QuorumThreshold returns ⌈2·N/3⌉, the signature/announcement floor
// used throughout quorum and proposer-selection checks.
func (s *Set) QuorumThreshold() int {
	return QuorumThreshold(s.N())
}

// QuorumThreshold computes ⌈2·n/3⌉ for an arbitrary member count.
func QuorumThreshold(n int) int {
	return int(math.Ceil(float64(2*n) / 3.0))
}
