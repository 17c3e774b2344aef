package block

import (
	"github.com/pkg/errors"

	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/vrf"
)

// ValidateSelfContained checks the invariants that depend
// only on the block's own fields and the epoch's super-node set — not
// on parent account state or the local chain tip. Callers (the
// consensus engine) additionally check parent-linkage, transaction
// admissibility against state, and signature quorum.
//
// Checks run in a fixed order: format, announcement validity, quorum,
// proposer correctness, rewarded-set correctness, then proof-of-work.
func (b *Block) ValidateSelfContained(epoch *supernode.Set) error {
	// (1) format: merkle root must match recomputation from transactions.
	if b.MerkleRoot() != b.Transactions().RootHash() {
		return errors.New("block: merkle root does not match transactions")
	}

	announcements := b.AllVRFAnnouncements()

	// (3) every VRF announcement verifies and matches this block's round.
	for i := range announcements {
		if err := announcements[i].Verify(b.PreviousHash(), b.Round(), epoch); err != nil {
			return errors.Wrapf(err, "block: announcement %d invalid", i)
		}
	}

	// (5) quorum floor: |announcements| >= ceil(2N/3).
	if len(announcements) < epoch.QuorumThreshold() {
		return errors.Errorf("block: only %d announcements, need >= %d", len(announcements), epoch.QuorumThreshold())
	}

	// (6) proposer score is the max (tie-break lex-smallest already
	// encoded in vrf.Proposer's deterministic ordering).
	primary, _, _, ok := vrf.Proposer(announcements)
	if !ok || primary.PublicKey != b.Proposer() {
		return errors.New("block: proposer is not the max-score announcer")
	}

	// (7) rewarded_nodes is the correct top-15.
	wantRewarded := vrf.TopN(announcements, RewardedTopX)
	got := b.RewardedNodes()
	if len(got) != len(wantRewarded) {
		return errors.New("block: rewarded nodes size mismatch")
	}
	for i := range got {
		if got[i] != wantRewarded[i] {
			return errors.New("block: rewarded nodes do not match deterministic top-15")
		}
	}

	// (8) proof-of-work holds.
	if !b.CheckPoW() {
		return errors.New("block: proof-of-work target not met")
	}

	return nil
}

// IsFinal reports whether the accumulated signature count has reached
// the quorum threshold for epoch.
func (b *Block) IsFinal(epoch *supernode.Set) bool {
	return len(b.Signatures()) >= epoch.QuorumThreshold()
}
