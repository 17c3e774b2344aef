package block

import (
	"math/big"

	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
	"github.com/vrfchain/node/vrf"
)

// Builder makes it easy to assemble a block for mining, mirroring the
// teacher's block.Builder fluent-setter pattern.
type Builder struct {
	p Params
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Height(h uint64) *Builder { b.p.Height = h; return b }
func (b *Builder) Round(r uint32) *Builder { b.p.Round = r; return b }
func (b *Builder) TimestampMs(ts uint64) *Builder { b.p.TimestampMs = ts; return b }
func (b *Builder) PreviousHash(h types.Hash) *Builder { b.p.PreviousHash = h; return b }
func (b *Builder) Proposer(pk types.PublicKey) *Builder { b.p.Proposer = pk; return b }
func (b *Builder) VRF(output types.Hash, proof types.Signature) *Builder {
	b.p.VRFOutput, b.p.VRFProof = output, proof
	return b
}
func (b *Builder) Announcements(as vrf.Announcements) *Builder {
	b.p.AllVRFAnnouncements = as
	return b
}
func (b *Builder) Transaction(t *tx.Transaction) *Builder {
	b.p.Transactions = append(b.p.Transactions, t)
	return b
}
func (b *Builder) Transactions(ts tx.Transactions) *Builder { b.p.Transactions = ts; return b }
func (b *Builder) DifficultyTarget(d *big.Int) *Builder { b.p.DifficultyTarget = d; return b }
func (b *Builder) Nonce(n uint64) *Builder { b.p.Nonce = n; return b }

// Build assembles the Block, computing its Merkle root and
// rewarded-nodes set.
func (b *Builder) Build() (*Block, error) {
	return New(b.p)
}
