package store

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/vrfchain/node/block"
	"github.com/vrfchain/node/cache"
	"github.com/vrfchain/node/types"
)

const blockCacheSize = 1000

const (
	nsBlock      = byte('b') // block hash -> rlp(block)
	nsBlockHash  = byte('h') // height -> block hash
	nsBlockIndex = byte('i') // "latest" -> block hash (chain tip pointer)
)

var latestKey = []byte{nsBlockIndex}

// BlockStorage persists blocks keyed by hash, with a height index for
// canonical-chain lookups, and a bounded LRU in front of hash reads.
type BlockStorage struct {
	engine *Engine
	cache  *cache.LRU
}

// NewBlockStorage wraps engine with block persistence and caching.
func NewBlockStorage(engine *Engine) *BlockStorage {
	return &BlockStorage{engine: engine, cache: cache.NewLRU(blockCacheSize)}
}

func blockKey(hash types.Hash) []byte {
	k := make([]byte, 1+32)
	k[0] = nsBlock
	copy(k[1:], hash[:])
	return k
}

func heightKey(height uint64) []byte {
	k := make([]byte, 1+8)
	k[0] = nsBlockHash
	binary.BigEndian.PutUint64(k[1:], height)
	return k
}

// Put stores a block under its hash, indexes it by height, and
// advances the chain-tip pointer if this block extends it.
func (s *BlockStorage) Put(b *block.Block) error {
	data, err := rlp.EncodeToBytes(b)
	if err != nil {
		return errors.Wrap(err, "store: encode block")
	}
	hash := b.Hash()

	batch := s.engine.NewBatch()
	batch.Put(blockKey(hash), data)
	batch.Put(heightKey(b.Height()), hash[:])

	tip, err := s.Latest()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err != nil || b.Height() >= tip.Height() {
		batch.Put(latestKey, hash[:])
	}
	if err := batch.Write(); err != nil {
		return errors.Wrap(err, "store: write block batch")
	}

	s.cache.Add(hash, b)
	return nil
}

// GetByHash loads a block by its hash, consulting the LRU first.
func (s *BlockStorage) GetByHash(hash types.Hash) (*block.Block, error) {
	v, err := s.cache.GetOrLoad(hash, func(key interface{}) (interface{}, error) {
		data, err := s.engine.get(blockKey(key.(types.Hash)))
		if err != nil {
			if s.engine.IsNotFound(err) {
				return nil, ErrNotFound
			}
			return nil, errors.Wrap(err, "store: get block")
		}
		var b block.Block
		if err := rlp.DecodeBytes(data, &b); err != nil {
			return nil, errors.Wrap(err, "store: decode block")
		}
		return &b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*block.Block), nil
}

// GetByHeight loads the canonical block at height, via the height index.
func (s *BlockStorage) GetByHeight(height uint64) (*block.Block, error) {
	data, err := s.engine.get(heightKey(height))
	if err != nil {
		if s.engine.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store: get height index")
	}
	hash, err := types.BytesToHash(data)
	if err != nil {
		return nil, err
	}
	return s.GetByHash(hash)
}

// Has reports whether a block with the given hash is stored.
func (s *BlockStorage) Has(hash types.Hash) (bool, error) {
	ok, err := s.engine.has(blockKey(hash))
	if err != nil {
		return false, errors.Wrap(err, "store: has block")
	}
	return ok, nil
}

// Latest returns the block at the current chain tip.
func (s *BlockStorage) Latest() (*block.Block, error) {
	data, err := s.engine.get(latestKey)
	if err != nil {
		if s.engine.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "store: get chain tip")
	}
	hash, err := types.BytesToHash(data)
	if err != nil {
		return nil, err
	}
	return s.GetByHash(hash)
}

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("store: not found")
