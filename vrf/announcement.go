// Package vrf implements the VRF announcement type and the
// deterministic score derivation that is the sole basis for proposer
// selection. The VRF primitive itself lives in xcrypto; this package
// adds the announcement data type and the scoring/selection math on
// top of it.
package vrf

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ethereum/go-ethereum/rlp"

	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/xcrypto"
)

// Announcement is a super node's signed declaration of its VRF output
// and score for a specific round.
type Announcement struct {
	Round       uint32
	PublicKey   types.PublicKey
	Output      types.Hash
	Proof       types.Signature
	Score       float64
	TimestampMs uint64
}

// Input derives the VRF input for a round: SHA-256(prev_hash || be4(round)).
func Input(prevHash types.Hash, round uint32) []byte {
	var rb [4]byte
	binary.BigEndian.PutUint32(rb[:], round)
	h := xcrypto.Hash(prevHash[:], rb[:])
	return h[:]
}

// Score derives the deterministic score for a VRF output given an
// epoch's per-node scoring inputs:
//
//	vrf_score = be_unsigned_int(output[0:8]) / 2^63
//	weighted  = vrf_score * sqrt(stake_weight) * decay_factor * performance_factor
//	score     = clamp(weighted, 0, 1)
//
// Evaluation order is fixed so that all honest validators derive a
// bit-identical IEEE-754 double.
func Score(output types.Hash, info supernode.Info) float64 {
	top8 := binary.BigEndian.Uint64(output[:8])
	vrfScore := float64(top8) / float64(uint64(1)<<63)
	weighted := vrfScore * math.Sqrt(info.StakeWeight) * info.DecayFactor * float64(info.PerformanceFactor)
	if weighted < 0 {
		return 0
	}
	if weighted > 1 {
		return 1
	}
	return weighted
}

// Announce computes a full announcement: evaluates the VRF, derives
// the score against the epoch's scoring inputs for kp's public key.
func Announce(kp *xcrypto.KeyPair, round uint32, prevHash types.Hash, info supernode.Info, nowMs uint64) Announcement {
	output, proof := kp.Evaluate(Input(prevHash, round))
	return Announcement{
		Round:       round,
		PublicKey:   kp.PublicKey(),
		Output:      output,
		Proof:       proof,
		Score:       Score(output, info),
		TimestampMs: nowMs,
	}
}

// Verify checks that a.Proof verifies against a.PublicKey and the
// round's VRF input, and that a.Score reproduces within epsilon of the
// deterministic recomputation.
func (a *Announcement) Verify(prevHash types.Hash, round uint32, epoch *supernode.Set) error {
	if a.Round != round {
		return errf("announcement round %d does not match block round %d", a.Round, round)
	}
	if !xcrypto.VerifyVRF(a.PublicKey, Input(prevHash, round), a.Output, a.Proof) {
		return errf("vrf proof does not verify")
	}
	info, ok := epoch.Get(a.PublicKey)
	if !ok {
		return errf("announcer is not a super node for this epoch")
	}
	want := Score(a.Output, info)
	const epsilon = 1e-6
	if diff := want - a.Score; diff > epsilon || diff < -epsilon {
		return errf("score mismatch: announced %v, recomputed %v", a.Score, want)
	}
	return nil
}

func errf(format string, args ...interface{}) error {
	return fmt.Errorf("vrf: "+format, args...)
}

// Announcements is an ordered set of announcements, as embedded in a block.
type Announcements []Announcement

// EncodeRLP implements rlp.Encoder.
func (a *Announcement) EncodeRLP(w io.Writer) error {
	body := announcementBody{
		Round:       a.Round,
		PublicKey:   a.PublicKey,
		Output:      a.Output,
		Proof:       a.Proof,
		ScoreBits:   math.Float64bits(a.Score),
		TimestampMs: a.TimestampMs,
	}
	return rlp.Encode(w, &body)
}

// DecodeRLP implements rlp.Decoder.
func (a *Announcement) DecodeRLP(s *rlp.Stream) error {
	var body announcementBody
	if err := s.Decode(&body); err != nil {
		return err
	}
	*a = Announcement{
		Round:       body.Round,
		PublicKey:   body.PublicKey,
		Output:      body.Output,
		Proof:       body.Proof,
		Score:       math.Float64frombits(body.ScoreBits),
		TimestampMs: body.TimestampMs,
	}
	return nil
}

type announcementBody struct {
	Round       uint32
	PublicKey   types.PublicKey
	Output      types.Hash
	Proof       types.Signature
	ScoreBits   uint64 // IEEE-754 double bit pattern, for byte-exact round trips
	TimestampMs uint64
}

// SortDeterministic reduces the collected multiset to a deterministic
// order: score descending, then public key ascending (the ordering
// guarantee).
func SortDeterministic(as []Announcement) {
	for i := 1; i < len(as); i++ {
		for j := i; j > 0 && less(as[j], as[j-1]); j-- {
			as[j-1], as[j] = as[j], as[j-1]
		}
	}
}

func less(a, b Announcement) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.PublicKey.Compare(b.PublicKey) < 0
}

// TopN returns the top n public keys by the deterministic order,
// truncated to len(as) if smaller.
func TopN(as []Announcement, n int) []types.PublicKey {
	sorted := append([]Announcement(nil), as...)
	SortDeterministic(sorted)
	if n > len(sorted) {
		n = len(sorted)
	}
	out := make([]types.PublicKey, n)
	for i := 0; i < n; i++ {
		out[i] = sorted[i].PublicKey
	}
	return out
}

// Proposer returns the announcement with maximum score (tie-break:
// lex smallest public key), and the backup (rank 2) announcement. ok
// is false if as is empty.
func Proposer(as []Announcement) (primary Announcement, backup Announcement, hasBackup bool, ok bool) {
	if len(as) == 0 {
		return Announcement{}, Announcement{}, false, false
	}
	sorted := append([]Announcement(nil), as...)
	SortDeterministic(sorted)
	if len(sorted) > 1 {
		return sorted[0], sorted[1], true, true
	}
	return sorted[0], Announcement{}, false, true
}
