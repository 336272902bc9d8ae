// Package query exposes read-only projections over a running ledger for
// block explorers and wallets: node status, chain info, blocks,
// transactions with confirmation counts, and address views.
package query

import (
	"fmt"

	"github.com/aurum-chain/aurum/ledger"
)

// Status summarizes the local node's sync state.
type Status struct {
	NodeID    string `json:"nodeId"`
	NetworkID string `json:"networkId"`
	Height    int64  `json:"height"`
	TipHash   string `json:"tipHash"`
	PeerCount int    `json:"peerCount"`
}

// ChainInfo summarizes the static chain parameters.
type ChainInfo struct {
	NetworkID   string `json:"networkId"`
	BlockTimeMs int64  `json:"blockTimeMillis"`
	BlockReward uint64 `json:"blockReward"`
	MinStake    uint64 `json:"minStake"`
	MaxSupply   uint64 `json:"maxSupply"`
	Height      int64  `json:"height"`
}

// TransactionView augments a transaction with its confirming block
// coordinates and confirmation count.
type TransactionView struct {
	Transaction   *ledger.Transaction `json:"transaction"`
	BlockHeight   int64               `json:"blockHeight"`
	BlockHash     string              `json:"blockHash"`
	Confirmations int64               `json:"confirmations"`
}

// AddressView combines everything known about a single address.
type AddressView struct {
	Address   string             `json:"address"`
	Balance   uint64             `json:"balance"`
	Sequence  uint64             `json:"sequence"`
	Staked    uint64             `json:"staked"`
	Validator *ledger.Validator  `json:"validator,omitempty"`
	History   []TransactionView  `json:"history"`
}

// PeerCounter reports how many gossip peers are currently connected.
// Satisfied by *gossip.Manager; kept as an interface so query does not
// depend on gossip.
type PeerCounter interface {
	PeerCount() int
}

// Service answers read-only queries against a ledger.
type Service struct {
	chain *ledger.Ledger
	peers PeerCounter
	nodeID string
}

// NewService builds a Service. peers may be nil, in which case PeerCount
// always reports 0 (useful for tests and non-networked nodes).
func NewService(nodeID string, chain *ledger.Ledger, peers PeerCounter) *Service {
	return &Service{chain: chain, peers: peers, nodeID: nodeID}
}

// Status returns the local node's identity and sync position.
func (s *Service) Status() Status {
	tip := s.chain.Tip()
	hash := ""
	if tip != nil {
		hash = tip.Hash()
	}
	peerCount := 0
	if s.peers != nil {
		peerCount = s.peers.PeerCount()
	}
	return Status{
		NodeID:    s.nodeID,
		NetworkID: s.chain.Params().NetworkID,
		Height:    s.chain.Height(),
		TipHash:   hash,
		PeerCount: peerCount,
	}
}

// ChainInfo returns the chain's static parameters plus current height.
func (s *Service) ChainInfo() ChainInfo {
	p := s.chain.Params()
	return ChainInfo{
		NetworkID:   p.NetworkID,
		BlockTimeMs: p.BlockTimeMillis,
		BlockReward: p.BlockReward,
		MinStake:    p.MinStake,
		MaxSupply:   p.MaxSupply,
		Height:      s.chain.Height(),
	}
}

// LatestBlocks returns up to n most recent blocks, newest first.
func (s *Service) LatestBlocks(n int) []*ledger.Block {
	height := s.chain.Height()
	if n <= 0 {
		return nil
	}
	out := make([]*ledger.Block, 0, n)
	for h := height; h >= 0 && len(out) < n; h-- {
		b, err := s.chain.GetBlockByHeight(h)
		if err != nil {
			break
		}
		out = append(out, b)
	}
	return out
}

// BlockByHeight fetches a block by height.
func (s *Service) BlockByHeight(height int64) (*ledger.Block, error) {
	return s.chain.GetBlockByHeight(height)
}

// BlockByHash fetches a block by its header hash.
func (s *Service) BlockByHash(hash string) (*ledger.Block, error) {
	return s.chain.GetBlockByHash(hash)
}

// Transaction fetches a transaction with its confirming block coordinates.
func (s *Service) Transaction(id string) (TransactionView, error) {
	tx, height, ok := s.chain.GetTransaction(id)
	if !ok {
		return TransactionView{}, fmt.Errorf("query: transaction %s not found", id)
	}
	block, err := s.chain.GetBlockByHeight(height)
	if err != nil {
		return TransactionView{}, fmt.Errorf("query: block for transaction %s: %w", id, err)
	}
	return TransactionView{
		Transaction:   tx,
		BlockHeight:   height,
		BlockHash:     block.Hash(),
		Confirmations: s.chain.Height() - height + 1,
	}, nil
}

// Address builds a full view of one address: balance, stake, validator
// record if any, and its transaction history found by scanning the chain.
// History scans are acceptable at this scale; an indexer would replace
// this for a production explorer.
func (s *Service) Address(addr string) AddressView {
	account := s.chain.GetAccount(addr)
	validator, hasValidator := s.chain.GetValidator(addr)

	view := AddressView{
		Address:  addr,
		Balance:  account.Balance,
		Sequence: account.Sequence,
		Staked:   account.Staked,
	}
	if hasValidator {
		view.Validator = &validator
	}

	tip := s.chain.Height()
	for h := int64(0); h <= tip; h++ {
		block, err := s.chain.GetBlockByHeight(h)
		if err != nil {
			continue
		}
		for _, tx := range block.Transactions {
			if tx.Sender == addr || tx.Recipient == addr {
				view.History = append(view.History, TransactionView{
					Transaction:   tx,
					BlockHeight:   h,
					BlockHash:     block.Hash(),
					Confirmations: tip - h + 1,
				})
			}
		}
	}
	return view
}
