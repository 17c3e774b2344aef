// Package p2p implements the length-framed session transport: frame
// codec, message envelope, optional compression, and optional
// ECDH+AES-GCM session encryption.
package p2p

import (
	"bytes"
	"encoding/binary"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vrfchain/node/types"
)

// Type identifies a wire message's payload kind.
type Type string

const (
	BlockProposal   Type = "BLOCK_PROPOSAL"
	BlockVote       Type = "BLOCK_VOTE"
	Transaction     Type = "TRANSACTION"
	VRFAnnouncement Type = "VRF_ANNOUNCEMENT"
	PeerDiscovery   Type = "PEER_DISCOVERY"
	SyncRequest     Type = "SYNC_REQUEST"
	SyncResponse    Type = "SYNC_RESPONSE"
	PullRequest     Type = "PULL_REQUEST"
	PullResponse    Type = "PULL_RESPONSE"
	Ping            Type = "PING"
	Pong            Type = "PONG"
)

// GossipEligible reports whether messages of this type are subject to
// gossip fan-out, as opposed to direct point-to-point exchange.
func (t Type) GossipEligible() bool {
	switch t {
	case BlockProposal, BlockVote, Transaction, VRFAnnouncement:
		return true
	default:
		return false
	}
}

// Envelope is the canonical wire message: every frame on the wire
// carries exactly one of these, JSON-encoded as the reference codec.
type Envelope struct {
	Type        Type            `json:"type"`
	SenderPK    types.PublicKey `json:"sender_pk"`
	TimestampMs uint64          `json:"timestamp_ms"`
	Nonce       uint64          `json:"nonce"`
	Payload     json.RawMessage `json:"payload"`
	Signature   types.Signature `json:"signature"`
}

// SigningBytes returns the canonical pre-signature encoding: every
// field except Signature itself, in a fixed field order.
func (e *Envelope) SigningBytes() []byte {
	buf := new(bytes.Buffer)
	buf.WriteString(string(e.Type))
	buf.Write(e.SenderPK[:])
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], e.TimestampMs)
	buf.Write(tmp[:])
	binary.BigEndian.PutUint64(tmp[:], e.Nonce)
	buf.Write(tmp[:])
	buf.Write(e.Payload)
	return buf.Bytes()
}

// Encode marshals the envelope to its canonical JSON wire form.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "p2p: encode envelope")
	}
	return data, nil
}

// Decode unmarshals a wire-form envelope.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(err, "p2p: decode envelope")
	}
	return &e, nil
}
