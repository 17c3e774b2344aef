package node

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/p2p"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
)

// Payloads travel inside p2p.Envelope.Payload as RLP bytes, JSON's
// standard base64-string encoding of a []byte. p2p itself stays
// domain-agnostic; this file is where wire bytes meet the block/tx/vrf
// types.

func encodeRLPPayload(val interface{}) (json.RawMessage, error) {
	data, err := rlp.EncodeToBytes(val)
	if err != nil {
		return nil, errors.Wrap(err, "node: encode payload")
	}
	return json.Marshal(data)
}

func decodeRLPPayload(raw json.RawMessage, out interface{}) error {
	var data []byte
	if err := json.Unmarshal(raw, &data); err != nil {
		return errors.Wrap(err, "node: decode payload envelope")
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return errors.Wrap(err, "node: decode payload body")
	}
	return nil
}

func encodeBlockPayload(b *block.Block) (json.RawMessage, error) { return encodeRLPPayload(b) }

func decodeBlockPayload(raw json.RawMessage) (*block.Block, error) {
	var b block.Block
	if err := decodeRLPPayload(raw, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func encodeTxPayload(t *tx.Transaction) (json.RawMessage, error) { return encodeRLPPayload(t) }

func decodeTxPayload(raw json.RawMessage) (*tx.Transaction, error) {
	var t tx.Transaction
	if err := decodeRLPPayload(raw, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func encodeAnnouncementPayload(a vrf.Announcement) (json.RawMessage, error) {
	return encodeRLPPayload(&a)
}

func decodeAnnouncementPayload(raw json.RawMessage) (vrf.Announcement, error) {
	var a vrf.Announcement
	err := decodeRLPPayload(raw, &a)
	return a, err
}

// votePayload is BLOCK_VOTE's body: a signature over a specific
// block's signing hash, not itself RLP-coded since it never touches
// storage.
type votePayload struct {
	BlockHash types.Hash      `json:"block_hash"`
	Signer    types.PublicKey `json:"signer"`
	Signature types.Signature `json:"signature"`
}

func encodeVotePayload(v votePayload) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "node: encode vote payload")
	}
	return data, nil
}

func decodeVotePayload(raw json.RawMessage) (votePayload, error) {
	var v votePayload
	err := json.Unmarshal(raw, &v)
	return v, err
}

// syncRequestPayload is SYNC_REQUEST's body.
type syncRequestPayload struct {
	FromHeight uint64 `json:"from_height"`
	ToHeight   uint64 `json:"to_height"`
}

func encodeSyncRequestPayload(v syncRequestPayload) (json.RawMessage, error) {
	return json.Marshal(v)
}

func decodeSyncRequestPayload(raw json.RawMessage) (syncRequestPayload, error) {
	var v syncRequestPayload
	err := json.Unmarshal(raw, &v)
	return v, err
}

// syncResponsePayload is SYNC_RESPONSE's body: a contiguous run of
// RLP-encoded blocks.
type syncResponsePayload struct {
	Blocks [][]byte `json:"blocks"`
}

func encodeSyncResponsePayload(blocks []*block.Block) (json.RawMessage, error) {
	enc := make([][]byte, len(blocks))
	for i, b := range blocks {
		data, err := rlp.EncodeToBytes(b)
		if err != nil {
			return nil, errors.Wrap(err, "node: encode sync response")
		}
		enc[i] = data
	}
	return json.Marshal(syncResponsePayload{Blocks: enc})
}

func decodeSyncResponsePayload(raw json.RawMessage) ([]*block.Block, error) {
	var v syncResponsePayload
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "node: decode sync response")
	}
	out := make([]*block.Block, len(v.Blocks))
	for i, data := range v.Blocks {
		var b block.Block
		if err := rlp.DecodeBytes(data, &b); err != nil {
			return nil, errors.Wrap(err, "node: decode sync response block")
		}
		out[i] = &b
	}
	return out, nil
}

// pullRequestPayload is PULL_REQUEST's body: the message IDs the
// requester has already seen, so the responder can reply with only
// what it is missing.
type pullRequestPayload struct {
	KnownIDs []types.Hash `json:"known_ids"`
}

func encodePullRequestPayload(v pullRequestPayload) (json.RawMessage, error) {
	return json.Marshal(v)
}

func decodePullRequestPayload(raw json.RawMessage) (pullRequestPayload, error) {
	var v pullRequestPayload
	err := json.Unmarshal(raw, &v)
	return v, err
}

// pullResponsePayload is PULL_RESPONSE's body: a batch of complete,
// individually re-encoded envelopes the requester appeared to be
// missing, replayed verbatim through the normal envelope pipeline.
type pullResponsePayload struct {
	Envelopes []json.RawMessage `json:"envelopes"`
}

func encodePullResponsePayload(envelopes []*p2p.Envelope) (json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(envelopes))
	for _, env := range envelopes {
		data, err := json.Marshal(env)
		if err != nil {
			return nil, errors.Wrap(err, "node: encode pull response envelope")
		}
		out = append(out, data)
	}
	return json.Marshal(pullResponsePayload{Envelopes: out})
}

func decodePullResponsePayload(raw json.RawMessage) ([]*p2p.Envelope, error) {
	var v pullResponsePayload
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrap(err, "node: decode pull response")
	}
	out := make([]*p2p.Envelope, 0, len(v.Envelopes))
	for _, raw := range v.Envelopes {
		var env p2p.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, errors.Wrap(err, "node: decode pull response envelope")
		}
		out = append(out, &env)
	}
	return out, nil
}
