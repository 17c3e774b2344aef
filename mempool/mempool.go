// Package mempool implements the bounded, fee-prioritized pool of
// pending transactions awaiting inclusion in a block.
package mempool

import (
	"github.com/pkg/errors"

	"github.com/vrfchain/node/cache"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
)

// DefaultCapacity is the default maximum number of pending transactions held.
const DefaultCapacity = 10_000

// Validator checks whether a transaction is admissible against current
// account state: signature validity is checked by the pool itself, but
// balance/nonce checks require state the pool does not own.
type Validator func(*tx.Transaction) error

// Pool is a bounded, fee-prioritized set of pending transactions.
// Lower-fee transactions are evicted first when the pool is full.
type Pool struct {
	entries  *cache.PrioCache
	validate Validator
}

// New creates a Pool with the given capacity and state-dependent
// admission validator.
func New(capacity int, validate Validator) *Pool {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Pool{entries: cache.NewPrioCache(capacity), validate: validate}
}

// Add admits a transaction into the pool. Transactions failing
// stateless or stateful validation are rejected; duplicates (by hash)
// are no-ops.
func (p *Pool) Add(t *tx.Transaction) error {
	if err := t.StatelessValid(); err != nil {
		return errors.Wrap(err, "mempool: stateless validation failed")
	}
	if p.validate != nil {
		if err := p.validate(t); err != nil {
			return errors.Wrap(err, "mempool: admission rejected")
		}
	}
	p.entries.Set(t.Hash(), t, float64(t.Fee()))
	return nil
}

// Remove drops a transaction by hash, e.g. once it has been included
// in a finalized block.
func (p *Pool) Remove(hash types.Hash) {
	p.entries.Remove(hash)
}

// Contains reports whether hash is currently pending.
func (p *Pool) Contains(hash types.Hash) bool {
	return p.entries.Contains(hash)
}

// Len returns the number of pending transactions.
func (p *Pool) Len() int { return p.entries.Len() }

// Pick returns up to maxCount pending transactions, highest fee first,
// for inclusion in a new block proposal.
func (p *Pool) Pick(maxCount int) tx.Transactions {
	all := make([]*prioritizedTx, 0, p.entries.Len())
	p.entries.ForEach(func(e *cache.PrioEntry) bool {
		all = append(all, &prioritizedTx{tx: e.Value.(*tx.Transaction), fee: e.Priority})
		return true
	})
	sortByFeeDesc(all)
	if len(all) > maxCount {
		all = all[:maxCount]
	}
	out := make(tx.Transactions, len(all))
	for i, p := range all {
		out[i] = p.tx
	}
	return out
}

type prioritizedTx struct {
	tx  *tx.Transaction
	fee float64
}

func sortByFeeDesc(s []*prioritizedTx) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].fee > s[j-1].fee; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
