// Package block implements the Block type: canonical signing digest,
// proof-of-work block hash, and the invariants binding a block to the
// full VRF announcement set it was produced from.
package block

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
	"github.com/vrfchain/node/xcrypto"
)

// RewardedTopX is the default size of the rewarded-nodes set.
const RewardedTopX = 15

// body is the RLP-encoded shape of a Block.
type body struct {
	Height               uint64
	Round                uint32
	TimestampMs          uint64
	PreviousHash         types.Hash
	Proposer             types.PublicKey
	VRFOutput            types.Hash
	VRFProof             types.Signature
	AllVRFAnnouncements  vrf.Announcements
	RewardedNodes        []types.PublicKey
	MerkleRoot           types.Hash
	Txs                  tx.Transactions
	Nonce                uint64
	DifficultyTarget     []byte // big-endian unsigned big.Int bytes
	SignerKeys           []types.PublicKey
	SignerSigs           []types.Signature
}

// Block is an immutable block, once constructed.
type Block struct {
	body body

	cache struct {
		signingHash atomic.Value // types.Hash
		hash        atomic.Value // types.Hash
	}
}

// Params bundles the constructor inputs for New.
type Params struct {
	Height              uint64
	Round               uint32
	TimestampMs         uint64
	PreviousHash        types.Hash
	Proposer            types.PublicKey
	VRFOutput           types.Hash
	VRFProof            types.Signature
	AllVRFAnnouncements vrf.Announcements
	Transactions        tx.Transactions
	Nonce               uint64
	DifficultyTarget    *big.Int
}

// New constructs a Block, computing and validating its Merkle root and
// rewarded-nodes set. Mismatched input (wrong merkle root supplied
// elsewhere, e.g. via RLP decode of corrupted data) is caught by
// re-deriving the root here rather than trusting a caller-supplied
// value — merkle_root is a function of transactions and is always
// re-computed on construction".
func New(p Params) (*Block, error) {
	if p.DifficultyTarget == nil || p.DifficultyTarget.Sign() <= 0 {
		return nil, errors.New("block: difficulty target must be positive")
	}
	rewarded := vrf.TopN(p.AllVRFAnnouncements, RewardedTopX)

	b := &Block{body: body{
		Height:              p.Height,
		Round:               p.Round,
		TimestampMs:         p.TimestampMs,
		PreviousHash:        p.PreviousHash,
		Proposer:            p.Proposer,
		VRFOutput:           p.VRFOutput,
		VRFProof:            p.VRFProof,
		AllVRFAnnouncements: append(vrf.Announcements(nil), p.AllVRFAnnouncements...),
		RewardedNodes:       rewarded,
		MerkleRoot:          p.Transactions.RootHash(),
		Txs:                 append(tx.Transactions(nil), p.Transactions...),
		Nonce:               p.Nonce,
		DifficultyTarget:    append([]byte(nil), p.DifficultyTarget.Bytes()...),
	}}
	return b, nil
}

func (b *Block) Height() uint64                        { return b.body.Height }
func (b *Block) Round() uint32                          { return b.body.Round }
func (b *Block) TimestampMs() uint64                    { return b.body.TimestampMs }
func (b *Block) PreviousHash() types.Hash               { return b.body.PreviousHash }
func (b *Block) Proposer() types.PublicKey              { return b.body.Proposer }
func (b *Block) VRFOutput() types.Hash                  { return b.body.VRFOutput }
func (b *Block) VRFProof() types.Signature              { return b.body.VRFProof }
func (b *Block) AllVRFAnnouncements() vrf.Announcements { return append(vrf.Announcements(nil), b.body.AllVRFAnnouncements...) }
func (b *Block) RewardedNodes() []types.PublicKey       { return append([]types.PublicKey(nil), b.body.RewardedNodes...) }
func (b *Block) MerkleRoot() types.Hash                 { return b.body.MerkleRoot }
func (b *Block) Transactions() tx.Transactions          { return append(tx.Transactions(nil), b.body.Txs...) }
func (b *Block) Nonce() uint64                          { return b.body.Nonce }
func (b *Block) DifficultyTarget() *big.Int             { return new(big.Int).SetBytes(b.body.DifficultyTarget) }

// Signatures returns a copy of the signer -> signature map accumulated
// so far.
func (b *Block) Signatures() map[types.PublicKey]types.Signature {
	out := make(map[types.PublicKey]types.Signature, len(b.body.SignerKeys))
	for i, k := range b.body.SignerKeys {
		out[k] = b.body.SignerSigs[i]
	}
	return out
}

// WithSignature returns a new Block value with signer's signature
// added to the accumulated signature map (monotonic growth;
// lifecycle: "signatures map grows only monotonically").
func (b *Block) WithSignature(signer types.PublicKey, sig types.Signature) *Block {
	for _, k := range b.body.SignerKeys {
		if k == signer {
			return b // already present; first copy wins
		}
	}
	cpy := *b
	cpy.cache = struct {
		signingHash atomic.Value
		hash        atomic.Value
	}{}
	cpy.body.SignerKeys = append(append([]types.PublicKey(nil), b.body.SignerKeys...), signer)
	cpy.body.SignerSigs = append(append([]types.Signature(nil), b.body.SignerSigs...), sig)
	return &cpy
}

// SigningHash computes H_sign(block): SHA-256 over the big-endian
// concatenation of height, round, timestamp, previous hash, proposer,
// VRF output, merkle root, nonce and difficulty target. The VRF proof,
// the announcement set, the rewarded nodes, the transactions themselves
// (covered through the merkle root) and the signatures are not hashed.
//
// Note: nonce and difficulty_target ARE part of H_sign per spec (the
// signature covers the mined block, not a pre-mining template).
func (b *Block) SigningHash() types.Hash {
	if cached := b.cache.signingHash.Load(); cached != nil {
		return cached.(types.Hash)
	}
	h := b.computeSigningHash()
	b.cache.signingHash.Store(h)
	return h
}

func (b *Block) computeSigningHash() types.Hash {
	buf := new(bytes.Buffer)
	var tmp [8]byte

	binary.BigEndian.PutUint64(tmp[:], b.body.Height)
	buf.Write(tmp[:])

	var r [4]byte
	binary.BigEndian.PutUint32(r[:], b.body.Round)
	buf.Write(r[:])

	binary.BigEndian.PutUint64(tmp[:], b.body.TimestampMs)
	buf.Write(tmp[:])

	buf.Write(b.body.PreviousHash[:])
	buf.Write(b.body.Proposer[:])
	buf.Write(b.body.VRFOutput[:])
	buf.Write(b.body.MerkleRoot[:])

	binary.BigEndian.PutUint64(tmp[:], b.body.Nonce)
	buf.Write(tmp[:])

	buf.Write(b.body.DifficultyTarget)

	return xcrypto.Hash(buf.Bytes())
}

// Hash computes H(block) = SHA-256(H_sign(block) || be8(nonce)), the
// value checked against DifficultyTarget for proof-of-work.
func (b *Block) Hash() types.Hash {
	if cached := b.cache.hash.Load(); cached != nil {
		return cached.(types.Hash)
	}
	signing := b.SigningHash()
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], b.body.Nonce)
	h := xcrypto.Hash(signing[:], nb[:])
	b.cache.hash.Store(h)
	return h
}

// CheckPoW reports whether H(block), read as a big-endian unsigned
// integer, is strictly less than DifficultyTarget.
func (b *Block) CheckPoW() bool {
	h := b.Hash()
	hv := new(big.Int).SetBytes(h[:])
	return hv.Cmp(b.DifficultyTarget()) < 0
}

// WithNonce returns a copy of the block with nonce replaced, clearing
// the cached signing hash and PoW hash — used by the PoW search loop.
func (b *Block) WithNonce(nonce uint64) *Block {
	cpy := *b
	cpy.cache = struct {
		signingHash atomic.Value
		hash        atomic.Value
	}{}
	cpy.body.Nonce = nonce
	return &cpy
}

// EncodeRLP implements rlp.Encoder (wire/storage codec).
func (b *Block) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &b.body)
}

// DecodeRLP implements rlp.Decoder.
func (b *Block) DecodeRLP(s *rlp.Stream) error {
	var body body
	if err := s.Decode(&body); err != nil {
		return err
	}
	*b = Block{body: body}
	return nil
}
