package engine

import "github.com/pkg/errors"

var (
	errConflictingAnnouncement = errors.New("engine: conflicting announcement for round/key, both discarded")
	errQuorumFloorNotMet       = errors.New("engine: announcement quorum floor not met")
	errNoProposer              = errors.New("engine: no proposer could be determined")
	errWrongState              = errors.New("engine: round is not in the expected state")
	errNotBackup               = errors.New("engine: local identity is not this round's backup proposer")
	errUnknownSigner           = errors.New("engine: vote signer is not a member of this epoch")
	errNoProposalYet           = errors.New("engine: vote received before a proposal exists for this round")
	errInvalidVoteSignature    = errors.New("engine: vote signature does not verify over the proposal's signing hash")
)
