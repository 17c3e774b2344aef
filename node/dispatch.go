package node

import (
	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/sync"
	"github.com/vrfchain/node/types"
)

// handleEnvelope is Network's single entry point for every inbound
// message, whether freshly accepted or read off an established
// connection. Failing verification drops the message silently, per
// the transport's receipt pipeline.
func (n *Node) handleEnvelope(env *p2p.Envelope, from types.PublicKey) {
	if err := n.verifier.Accept(env); err != nil {
		logger.Debug("dropped message", "type", env.Type, "from", from, "err", err)
		return
	}

	if env.Type.GossipEligible() {
		n.gossipH.Receive(env, from)
	}

	switch env.Type {
	case p2p.VRFAnnouncement:
		ann, err := decodeAnnouncementPayload(env.Payload)
		if err != nil {
			return
		}
		n.eng.ReceiveAnnouncement(ann)

	case p2p.BlockProposal:
		b, err := decodeBlockPayload(env.Payload)
		if err != nil {
			return
		}
		n.maybeCatchUp(b.Height(), from)
		_ = n.eng.ReceiveProposal(b)

	case p2p.BlockVote:
		vote, err := decodeVotePayload(env.Payload)
		if err != nil {
			return
		}
		n.eng.ReceiveVote(vote.Signer, vote.Signature)

	case p2p.Transaction:
		t, err := decodeTxPayload(env.Payload)
		if err != nil {
			return
		}
		_ = n.pool.Add(t)

	case p2p.SyncRequest:
		n.handleSyncRequest(env, from)

	case p2p.SyncResponse:
		n.handleSyncResponse(env)

	case p2p.PullRequest:
		n.handlePullRequest(env, from)

	case p2p.PullResponse:
		n.handlePullResponse(env)

	case p2p.Ping:
		pong, err := n.buildEnvelope(p2p.Pong, nil)
		if err == nil {
			_ = n.net.Send(from, pong)
		}

	case p2p.PeerDiscovery:
		// the envelope carries no address, and Discover rejects an
		// empty address, so this call leaves the known-peer set as it is.
		n.peers.Discover(from, "", nowMs())

	case p2p.Pong:
		// no action: liveness is tracked implicitly by a live connection.
	}
}

func (n *Node) handleSyncRequest(env *p2p.Envelope, from types.PublicKey) {
	req, err := decodeSyncRequestPayload(env.Payload)
	if err != nil {
		return
	}
	to := req.ToHeight
	if to < req.FromHeight {
		return
	}
	if to-req.FromHeight+1 > sync.MaxBlocksPerRequest {
		to = req.FromHeight + sync.MaxBlocksPerRequest - 1
	}

	blocks := make([]*block.Block, 0, to-req.FromHeight+1)
	for h := req.FromHeight; h <= to; h++ {
		b, err := n.blocks.GetByHeight(h)
		if err != nil {
			break
		}
		blocks = append(blocks, b)
	}

	payload, err := encodeSyncResponsePayload(blocks)
	if err != nil {
		return
	}
	resp, err := n.buildEnvelope(p2p.SyncResponse, payload)
	if err != nil {
		return
	}
	_ = n.net.Send(from, resp)
}

func (n *Node) handleSyncResponse(env *p2p.Envelope) {
	blocks, err := decodeSyncResponsePayload(env.Payload)
	if err != nil {
		return
	}
	n.syncMu.Lock()
	wait := n.syncWait
	n.syncMu.Unlock()
	if wait == nil {
		return
	}
	select {
	case wait <- blocks:
	default:
	}
}

// handlePullRequest replies with every tracked gossip message whose ID
// is absent from the requester's known-ID list, letting the requester
// heal a partial gossip hole left by random fan-out.
func (n *Node) handlePullRequest(env *p2p.Envelope, from types.PublicKey) {
	req, err := decodePullRequestPayload(env.Payload)
	if err != nil {
		return
	}
	known := make(map[types.Hash]struct{}, len(req.KnownIDs))
	for _, id := range req.KnownIDs {
		known[id] = struct{}{}
	}
	var missing []types.Hash
	for _, id := range n.gossipH.KnownIDs() {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	envelopes := make([]*p2p.Envelope, 0, len(missing))
	for _, id := range missing {
		if e, ok := n.gossipH.Envelope(id); ok {
			envelopes = append(envelopes, e)
		}
	}
	if len(envelopes) == 0 {
		return
	}
	payload, err := encodePullResponsePayload(envelopes)
	if err != nil {
		return
	}
	resp, err := n.buildEnvelope(p2p.PullResponse, payload)
	if err != nil {
		return
	}
	_ = n.net.Send(from, resp)
}

// handlePullResponse replays every envelope in a pull response through
// the normal receipt pipeline, exactly as if it had arrived directly.
func (n *Node) handlePullResponse(env *p2p.Envelope) {
	envelopes, err := decodePullResponsePayload(env.Payload)
	if err != nil {
		return
	}
	for _, e := range envelopes {
		n.handleEnvelope(e, e.SenderPK)
	}
}
