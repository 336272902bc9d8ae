package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aurum-chain/aurum/ledger"
)

// BlockStore implements ledger.BlockStore on top of a DB, using the key
// scheme spec.md §4.6 names: block:h:<height>, block:x:<headerHash>,
// tx:<id>. Writes are fire-and-forget (§4.6) — the authoritative recovery
// path is the snapshot file plus re-validation of the last K blocks.
type BlockStore struct {
	db DB
}

var _ ledger.BlockStore = (*BlockStore)(nil)

// NewBlockStore wraps db as a ledger.BlockStore.
func NewBlockStore(db DB) *BlockStore {
	return &BlockStore{db: db}
}

func heightKey(height int64) []byte { return []byte(fmt.Sprintf("block:h:%d", height)) }
func hashKey(hash string) []byte    { return []byte("block:x:" + hash) }
func txKey(id string) []byte        { return []byte("tx:" + id) }

func (s *BlockStore) PutBlock(block *ledger.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("marshal block: %w", err)
	}
	hash := block.Hash()
	if err := s.db.Set(hashKey(hash), data); err != nil {
		return err
	}
	return s.db.Set(heightKey(block.Header.Height), []byte(hash))
}

func (s *BlockStore) GetBlock(hash string) (*ledger.Block, error) {
	data, err := s.db.Get(hashKey(hash))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	var b ledger.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("unmarshal block: %w", err)
	}
	return &b, nil
}

func (s *BlockStore) GetBlockByHeight(height int64) (*ledger.Block, error) {
	hash, err := s.db.Get(heightKey(height))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return s.GetBlock(string(hash))
}

func (s *BlockStore) PutTransaction(tx *ledger.Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	return s.db.Set(txKey(tx.ID), data)
}

func (s *BlockStore) GetTransaction(id string) (*ledger.Transaction, error) {
	data, err := s.db.Get(txKey(id))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	var tx ledger.Transaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}
