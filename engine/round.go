package engine

import (
	"sync"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/supernode"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

// VRFCollectSeconds is phase A's wall-clock budget.
const VRFCollectSeconds = 3

// ProposalSeconds is phase B's wall-clock budget, including the PoW search.
const ProposalSeconds = 5

// PoWSearchSeconds bounds the proposer's own nonce search within phase B.
const PoWSearchSeconds = 3

// RoundSeconds is the target total wall-clock duration of one round.
const RoundSeconds = 8

// Round tracks one round's accumulated state: collected announcements,
// the decided proposer, the proposed block, and its accumulating
// signatures.
type Round struct {
	mu sync.Mutex

	Number    uint32
	PrevHash  types.Hash
	epoch     *supernode.Set
	self      types.PublicKey

	state         State
	announcements map[types.PublicKey]vrf.Announcement
	primary       vrf.Announcement
	backup        vrf.Announcement
	hasBackup     bool
	proposal      *block.Block
	signatures    map[types.PublicKey]types.Signature
}

// NewRound starts a fresh round in IDLE for roundNumber, built on
// prevHash, within epoch, for the local identity self.
func NewRound(roundNumber uint32, prevHash types.Hash, epoch *supernode.Set, self types.PublicKey) *Round {
	return &Round{
		Number:        roundNumber,
		PrevHash:      prevHash,
		epoch:         epoch,
		self:          self,
		state:         Idle,
		announcements: make(map[types.PublicKey]vrf.Announcement),
		signatures:    make(map[types.PublicKey]types.Signature),
	}
}

// State returns the round's current state.
func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Round) setState(s State) { r.state = s }

// Start transitions IDLE -> COLLECT_VRF.
func (r *Round) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(CollectVRF)
}

// AddAnnouncement records ann, enforcing per-(round, public key)
// dedup: a repeat of the same announcement is a no-op; a later,
// differing announcement for the same key is conflicting, and both it
// and the one already held are discarded.
func (r *Round) AddAnnouncement(ann vrf.Announcement) error {
	if err := ann.Verify(r.PrevHash, r.Number, r.epoch); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.announcements[ann.PublicKey]; ok {
		if existing.Output != ann.Output || existing.Proof != ann.Proof {
			delete(r.announcements, ann.PublicKey)
			return errConflictingAnnouncement
		}
		return nil
	}
	r.announcements[ann.PublicKey] = ann
	return nil
}

// AnnouncementCount returns the number of distinct announcements held.
func (r *Round) AnnouncementCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.announcements)
}

// Decide transitions COLLECT_VRF -> DECIDE, selecting the proposer
// from the collected announcements. It fails if the 2/3 floor is not
// met, per the collection-window fallback rule.
func (r *Round) Decide() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.announcements) < r.epoch.QuorumThreshold() {
		r.setState(Failed)
		return errQuorumFloorNotMet
	}
	all := make([]vrf.Announcement, 0, len(r.announcements))
	for _, a := range r.announcements {
		all = append(all, a)
	}
	primary, backup, hasBackup, ok := vrf.Proposer(all)
	if !ok {
		r.setState(Failed)
		return errNoProposer
	}
	r.primary, r.backup, r.hasBackup = primary, backup, hasBackup
	r.setState(Decide)
	if primary.PublicKey == r.self {
		r.setState(Proposing)
	} else {
		r.setState(Awaiting)
	}
	return nil
}

// IsLocalPrimary reports whether the local identity is this round's
// primary proposer.
func (r *Round) IsLocalPrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primary.PublicKey == r.self
}

// IsLocalBackup reports whether the local identity is this round's
// backup proposer.
func (r *Round) IsLocalBackup() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasBackup && r.backup.PublicKey == r.self
}

// EnterBackup transitions AWAITING -> BACKUP -> PROPOSING, for when
// the local node is the backup and the primary has timed out.
func (r *Round) EnterBackup() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Awaiting {
		return errWrongState
	}
	if !r.hasBackup || r.backup.PublicKey != r.self {
		return errNotBackup
	}
	r.setState(Backup)
	r.setState(Proposing)
	return nil
}

// Abandon transitions AWAITING -> FAILED when neither primary nor
// backup produced a block in time.
func (r *Round) Abandon() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.setState(Failed)
}

// SetProposal records the locally or remotely produced block and
// transitions to SIGNING.
func (r *Round) SetProposal(b *block.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.proposal = b
	r.setState(Signing)
}

// Proposal returns the round's current block proposal, if any.
func (r *Round) Proposal() *block.Block {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proposal
}

// AddSignature verifies that signer is an epoch member and that sig is
// its genuine Ed25519 signature over the proposal's signing hash, then
// records the vote, transitioning to FINAL once the quorum threshold
// is reached. An unverified vote is rejected and never counted.
func (r *Round) AddSignature(signer types.PublicKey, sig types.Signature) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.epoch.Contains(signer) {
		return errUnknownSigner
	}
	if r.proposal == nil {
		return errNoProposalYet
	}
	if !xcrypto.Verify(signer, r.proposal.SigningHash().Bytes(), sig) {
		return errInvalidVoteSignature
	}
	r.signatures[signer] = sig
	if len(r.signatures) >= r.epoch.QuorumThreshold() {
		r.setState(Final)
	}
	return nil
}

// SignatureCount returns the number of accumulated signatures.
func (r *Round) SignatureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signatures)
}

// Signatures returns a copy of the accumulated signer -> signature map.
func (r *Round) Signatures() map[types.PublicKey]types.Signature {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[types.PublicKey]types.Signature, len(r.signatures))
	for k, v := range r.signatures {
		out[k] = v
	}
	return out
}

// Announcements returns a copy of the collected announcement set.
func (r *Round) Announcements() []vrf.Announcement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]vrf.Announcement, 0, len(r.announcements))
	for _, a := range r.announcements {
		out = append(out, a)
	}
	return out
}
