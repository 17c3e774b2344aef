package store

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vrfchain/node/cache"
	"github.com/vrfchain/node/types"
)

const accountCacheSize = 1000

const nsAccount = byte('a')

// Account is the per-address state the storage layer persists:
// balance, the next expected transaction nonce, stake committed via
// STAKE/UNSTAKE transactions, and the timestamp (ms) of the last block
// that touched it.
type Account struct {
	Balance     uint64
	Nonce       uint64
	StakeAmount uint64
	LastUpdated uint64
}

// StateStorage persists account balances and nonces, keyed by public
// key, with a bounded LRU cache in front of reads.
type StateStorage struct {
	engine *Engine
	cache  *cache.LRU
}

func accountKey(pk types.PublicKey) []byte {
	k := make([]byte, 1+32)
	k[0] = nsAccount
	copy(k[1:], pk[:])
	return k
}

// NewStateStorage wraps engine with account-state persistence and caching.
func NewStateStorage(engine *Engine) *StateStorage {
	return &StateStorage{engine: engine, cache: cache.NewLRU(accountCacheSize)}
}

// Get returns the account for pk, or the zero Account if it has never
// been touched (a fresh address has zero balance and zero nonce).
func (s *StateStorage) Get(pk types.PublicKey) (Account, error) {
	v, err := s.cache.GetOrLoad(pk, func(key interface{}) (interface{}, error) {
		data, err := s.engine.get(accountKey(key.(types.PublicKey)))
		if err != nil {
			if s.engine.IsNotFound(err) {
				return Account{}, nil
			}
			return nil, errors.Wrap(err, "store: get account")
		}
		var a Account
		if err := rlp.DecodeBytes(data, &a); err != nil {
			return nil, errors.Wrap(err, "store: decode account")
		}
		return a, nil
	})
	if err != nil {
		return Account{}, err
	}
	return v.(Account), nil
}

// Put persists acct under pk and refreshes the cache entry.
func (s *StateStorage) Put(pk types.PublicKey, acct Account) error {
	data, err := rlp.EncodeToBytes(&acct)
	if err != nil {
		return errors.Wrap(err, "store: encode account")
	}
	if err := s.engine.put(accountKey(pk), data); err != nil {
		return errors.Wrap(err, "store: put account")
	}
	s.cache.Add(pk, acct)
	return nil
}

// ApplyBatch applies a set of account mutations atomically, used by
// the consensus engine when committing a finalized block's effects.
func (s *StateStorage) ApplyBatch(updates map[types.PublicKey]Account) error {
	batch := s.engine.NewBatch()
	for pk, acct := range updates {
		data, err := rlp.EncodeToBytes(&acct)
		if err != nil {
			return errors.Wrap(err, "store: encode account")
		}
		batch.Put(accountKey(pk), data)
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "store: write account batch")
	}
	for pk, acct := range updates {
		s.cache.Add(pk, acct)
	}
	return nil
}
