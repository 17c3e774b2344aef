package engine

import (
	"github.com/pkg/errors"

	"github.com/vrfchain/node/store"
	"github.com/vrfchain/node/tx"
	"github.com/vrfchain/node/types"
)

// selectValidTransactions filters candidates down to those the
// proposer can actually apply against current account state. Each
// candidate is simulated against a running overlay before the next is
// considered, so several transactions from the same sender within one
// block are checked against each other's cumulative effect rather than
// just the last-committed chain state.
func selectValidTransactions(state *store.StateStorage, candidates tx.Transactions) tx.Transactions {
	working := make(map[types.PublicKey]store.Account)
	get := func(pk types.PublicKey) (store.Account, error) {
		if a, ok := working[pk]; ok {
			return a, nil
		}
		return state.Get(pk)
	}

	out := make(tx.Transactions, 0, len(candidates))
	for _, t := range candidates {
		sender, err := get(t.Sender())
		if err != nil || !admissible(sender, t) {
			continue
		}
		working[t.Sender()] = applyTx(sender, t)
		out = append(out, t)
	}
	return out
}

// validateTransactionsAgainstState replays a received proposal's
// transactions against current account state in order, rejecting the
// whole block on the first transaction that state does not admit.
func validateTransactionsAgainstState(state *store.StateStorage, txs tx.Transactions) error {
	working := make(map[types.PublicKey]store.Account)
	get := func(pk types.PublicKey) (store.Account, error) {
		if a, ok := working[pk]; ok {
			return a, nil
		}
		return state.Get(pk)
	}

	for _, t := range txs {
		sender, err := get(t.Sender())
		if err != nil {
			return errors.Wrap(err, "engine: read sender account")
		}
		if !admissible(sender, t) {
			return errors.Errorf("engine: transaction %s not admissible against account state", t.Hash())
		}
		working[t.Sender()] = applyTx(sender, t)
	}
	return nil
}

// admissible reports whether t's nonce and the balance/stake it draws
// on are consistent with sender's current state.
func admissible(sender store.Account, t *tx.Transaction) bool {
	if t.Nonce() != sender.Nonce {
		return false
	}
	switch t.Type() {
	case tx.Unstake:
		return sender.StakeAmount >= t.Amount() && sender.Balance >= t.Fee()
	case tx.Vote:
		return sender.Balance >= t.Fee()
	default: // Transfer, Stake
		return sender.Balance >= t.Amount()+t.Fee()
	}
}

// applyTx returns sender's account after t's effect, mirroring the
// semantics later applied to committed state once the block finalizes.
func applyTx(sender store.Account, t *tx.Transaction) store.Account {
	switch t.Type() {
	case tx.Stake:
		sender.Balance -= t.Amount() + t.Fee()
		sender.StakeAmount += t.Amount()
	case tx.Unstake:
		sender.Balance -= t.Fee()
		sender.Balance += t.Amount()
		sender.StakeAmount -= t.Amount()
	case tx.Vote:
		sender.Balance -= t.Fee()
	default:
		sender.Balance -= t.Amount() + t.Fee()
	}
	sender.Nonce = t.Nonce() + 1
	return sender
}
