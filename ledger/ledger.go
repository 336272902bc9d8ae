package ledger

import (
	"sync"

	"github.com/aurum-chain/aurum/crypto"
)

// DefaultMaxBlockTx bounds how many pooled transactions a single assembled
// block may include (a local construction limit, not a consensus
// parameter — blocks received from peers are accepted with any number of
// transactions).
const DefaultMaxBlockTx = 500

// Ledger owns the single in-memory copy of chain state: the main chain,
// the account and validator maps, and the pending transaction pool. All
// mutation goes through its methods, which take l.mu for their duration —
// mirroring the teacher's core.Blockchain "single logical writer" locking.
type Ledger struct {
	mu     sync.RWMutex
	store  BlockStore
	params ChainParams
	pool   *Pool

	chain    []*Block
	byHash   map[string]int
	journals []*journalEntry
	txIndex  map[string]int64 // tx ID -> height it was included at, main chain only

	accounts   map[string]*Account
	validators map[string]*Validator

	// sideBranches buffers blocks that do not extend the current tip,
	// keyed by the hash of the block they build on, until they either
	// chain up to a height that beats the main tip (triggering a reorg)
	// or are abandoned.
	sideBranches map[string][]*Block
}

// New constructs an empty ledger. Call InitGenesis before any other
// mutating method.
func New(store BlockStore, params ChainParams, pool *Pool) *Ledger {
	return &Ledger{
		store:        store,
		params:       params,
		pool:         pool,
		byHash:       make(map[string]int),
		txIndex:      make(map[string]int64),
		accounts:     make(map[string]*Account),
		validators:   make(map[string]*Validator),
		sideBranches: make(map[string][]*Block),
	}
}

// InitGenesis installs genesis as height 0 and credits alloc balances. It
// must be called exactly once, before any block is appended.
func (l *Ledger) InitGenesis(genesis *Block, alloc map[string]uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.chain) != 0 {
		return newErr(InvalidHeight, "genesis already initialized")
	}
	if genesis.Header.Height != 0 {
		return newErr(InvalidHeight, "genesis block must have height 0")
	}
	if genesis.Header.ParentHash != GenesisParentHash {
		return newErr(InvalidParent, "genesis block must carry the all-zero parent hash")
	}
	for addr, balance := range alloc {
		l.accounts[addr] = &Account{Address: addr, Balance: balance}
	}
	l.chain = append(l.chain, genesis)
	l.byHash[genesis.Hash()] = 0
	l.journals = append(l.journals, nil)
	if l.store != nil {
		if err := l.store.PutBlock(genesis); err != nil {
			return newErr(StorageFailure, "persist genesis block: %w", err)
		}
	}
	return nil
}

// Params returns the chain's consensus parameters.
func (l *Ledger) Params() ChainParams { return l.params }

// Pool returns the pending transaction pool.
func (l *Ledger) Pool() *Pool { return l.pool }

// Tip returns the highest block on the main chain.
func (l *Ledger) Tip() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// Height returns the main chain's tip height.
func (l *Ledger) Height() int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].Header.Height
}

// GetAccount returns a copy of the account at addr, or a zero-value
// Account (still carrying addr) if it has never been mentioned.
func (l *Ledger) GetAccount(addr string) Account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accountView(addr)
}

// GetValidator returns a copy of the validator record for addr, if any.
func (l *Ledger) GetValidator(addr string) (Validator, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.validators[addr]
	if !ok {
		return Validator{}, false
	}
	return *v, true
}

// GetBlockByHeight returns the main-chain block at height, or ErrNotFound.
func (l *Ledger) GetBlockByHeight(height int64) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if height < 0 || height >= int64(len(l.chain)) {
		return nil, ErrNotFound
	}
	return l.chain[height], nil
}

// GetBlockByHash returns the main-chain block with the given header hash,
// or ErrNotFound.
func (l *Ledger) GetBlockByHash(hash string) (*Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	idx, ok := l.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return l.chain[idx], nil
}

// GetTransaction returns the transaction with id and the height it was
// included at, if it has been confirmed on the main chain.
func (l *Ledger) GetTransaction(id string) (*Transaction, int64, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	height, ok := l.txIndex[id]
	if !ok {
		return nil, 0, false
	}
	block := l.chain[height]
	for _, tx := range block.Transactions {
		if tx.ID == id {
			return tx, height, true
		}
	}
	return nil, 0, false
}

// ValidateTransaction runs the pure validation rules from §4.2 against the
// ledger's current state without mutating anything.
func (l *Ledger) ValidateTransaction(tx *Transaction) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.validateTransaction(tx)
}

// SubmitTransaction recomputes tx's ID from its own fields (never trusting
// a caller-supplied ID), validates it against current state, and inserts
// it into the pool.
func (l *Ledger) SubmitTransaction(tx *Transaction) error {
	tx.ID = tx.Hash()
	if err := l.ValidateTransaction(tx); err != nil {
		return err
	}
	return l.pool.Add(tx)
}

// AssembleBlock selects pending transactions for a new block atop the
// current tip, simulating application and stopping at the first candidate
// that would violate an invariant, appends a synthesized Reward transaction, and
// signs the result. It does not mutate ledger state or the pool; the
// caller must still call AppendBlock.
func (l *Ledger) AssembleBlock(proposer string, priv crypto.PrivateKey, timestamp int64, maxTxs int) *Block {
	if maxTxs <= 0 {
		maxTxs = DefaultMaxBlockTx
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	candidates := l.pool.Ordered()
	j := newJournalEntry()
	selected := make([]*Transaction, 0, maxTxs)
	for _, tx := range candidates {
		if len(selected) >= maxTxs {
			break
		}
		if err := l.validateTransaction(tx); err != nil {
			break
		}
		if err := l.applyTransaction(tx, j); err != nil {
			break
		}
		selected = append(selected, tx)
	}
	l.undo(j) // tentative only; AppendBlock re-applies for real once the block is appended

	tip := l.chain[len(l.chain)-1]
	reward := NewRewardTransaction(proposer, l.params.BlockReward, timestamp)
	txs := append(selected, reward)

	block := NewBlock(tip.Header.Height+1, tip.Hash(), timestamp, proposer, txs)
	block.Sign(priv)
	return block
}

// applyBlockLocked structurally validates block against prevTip and then
// validates+applies its transactions sequentially, rolling back on the
// first failure. Caller must hold l.mu for writing.
func (l *Ledger) applyBlockLocked(block *Block, prevTip *Block) (*journalEntry, error) {
	if block.Header.Height != prevTip.Header.Height+1 {
		return nil, newErr(InvalidHeight, "expected height %d, got %d", prevTip.Header.Height+1, block.Header.Height)
	}
	if block.Header.ParentHash != prevTip.Hash() {
		return nil, newErr(InvalidParent, "parent hash does not match current tip")
	}
	if err := block.VerifySignature(); err != nil {
		return nil, err
	}
	if err := block.VerifyMerkleRoot(); err != nil {
		return nil, err
	}

	j := newJournalEntry()
	rewards := 0
	for _, tx := range block.Transactions {
		if tx.Kind == KindReward {
			rewards++
			if rewards > 1 {
				l.undo(j)
				return nil, newErr(InvalidAmount, "block carries more than one reward transaction")
			}
			if tx.Amount != l.params.BlockReward {
				l.undo(j)
				return nil, newErr(InvalidAmount, "reward amount %d does not match BlockReward %d", tx.Amount, l.params.BlockReward)
			}
			if tx.Recipient != block.Header.Proposer {
				l.undo(j)
				return nil, newErr(InvalidAmount, "reward recipient must be the block's proposer")
			}
		}
		if err := l.validateTransaction(tx); err != nil {
			l.undo(j)
			return nil, err
		}
		if err := l.applyTransaction(tx, j); err != nil {
			l.undo(j)
			return nil, err
		}
	}
	if rewards != 1 {
		l.undo(j)
		return nil, newErr(InvalidAmount, "block must carry exactly one reward transaction")
	}
	return j, nil
}

// AppendBlock validates block against the current tip and, on success,
// commits it as the new tip.
func (l *Ledger) AppendBlock(block *Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.appendLocked(block)
}

func (l *Ledger) appendLocked(block *Block) error {
	tip := l.chain[len(l.chain)-1]
	j, err := l.applyBlockLocked(block, tip)
	if err != nil {
		return err
	}

	height := int64(len(l.chain))
	l.chain = append(l.chain, block)
	l.byHash[block.Hash()] = len(l.chain) - 1
	l.journals = append(l.journals, j)

	ids := make([]string, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		ids = append(ids, tx.ID)
		l.txIndex[tx.ID] = height
	}
	l.pool.Remove(ids...)

	if _, ok := l.validators[block.Header.Proposer]; ok {
		v := l.getOrCreateValidator(block.Header.Proposer, j)
		v.LastProducedHeight = block.Header.Height
		v.BlocksProduced++
	}

	if l.store != nil {
		if err := l.store.PutBlock(block); err != nil {
			return newErr(StorageFailure, "persist block: %w", err)
		}
		for _, tx := range block.Transactions {
			if err := l.store.PutTransaction(tx); err != nil {
				return newErr(StorageFailure, "persist transaction: %w", err)
			}
		}
	}
	return nil
}

// HandleReceivedBlock is the entry point for gossip-delivered blocks. It
// appends directly if block extends the current tip, buffers it as a side
// branch otherwise, and triggers a reorg if a buffered branch now exceeds
// the main chain in height. Returns whether the main chain tip changed.
func (l *Ledger) HandleReceivedBlock(block *Block) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := block.VerifySignature(); err != nil {
		return false, err
	}
	if err := block.VerifyMerkleRoot(); err != nil {
		return false, err
	}

	tip := l.chain[len(l.chain)-1]
	if block.Header.ParentHash == tip.Hash() {
		if err := l.appendLocked(block); err != nil {
			return false, err
		}
		return true, nil
	}

	l.sideBranches[block.Header.ParentHash] = append(l.sideBranches[block.Header.ParentHash], block)
	return l.tryReorgLocked()
}

// branchPath walks backward from leaf through buffered blocks until it
// reaches a hash already on the main chain, returning the path from that
// ancestor (exclusive) to leaf (inclusive) in forward order.
func (l *Ledger) branchPath(leaf *Block, buffered map[string]*Block) ([]*Block, int64, bool) {
	var path []*Block
	cur := leaf
	for {
		path = append([]*Block{cur}, path...)
		if idx, ok := l.byHash[cur.Header.ParentHash]; ok {
			return path, l.chain[idx].Header.Height, true
		}
		parent, ok := buffered[cur.Header.ParentHash]
		if !ok {
			return nil, 0, false
		}
		cur = parent
	}
}

// tryReorgLocked looks for a buffered branch whose implied height exceeds
// the current tip and, if found, switches the main chain to it.
func (l *Ledger) tryReorgLocked() (bool, error) {
	buffered := make(map[string]*Block)
	for _, list := range l.sideBranches {
		for _, b := range list {
			buffered[b.Hash()] = b
		}
	}

	var bestChain []*Block
	var bestAncestor int64
	bestHeight := l.chain[len(l.chain)-1].Header.Height
	for _, b := range buffered {
		chain, ancestorHeight, ok := l.branchPath(b, buffered)
		if !ok {
			continue
		}
		// Blocks restored from a snapshot carry no journal and cannot be
		// rewound, so a branch forking below them is never switched to.
		rewindable := true
		for h := ancestorHeight + 1; h < int64(len(l.journals)); h++ {
			if l.journals[h] == nil {
				rewindable = false
				break
			}
		}
		if !rewindable {
			continue
		}
		impliedHeight := ancestorHeight + int64(len(chain))
		if impliedHeight > bestHeight {
			bestHeight = impliedHeight
			bestChain = chain
			bestAncestor = ancestorHeight
		}
	}
	if bestChain == nil {
		return false, nil
	}

	if err := l.switchBranchLocked(bestAncestor, bestChain); err != nil {
		return false, err
	}
	l.sideBranches = make(map[string][]*Block)
	return true, nil
}

// switchBranchLocked rewinds the main chain to ancestorHeight and applies
// newBlocks in order. On any failure it restores the original chain
// exactly, so a failed reorg attempt never leaves the ledger inconsistent.
func (l *Ledger) switchBranchLocked(ancestorHeight int64, newBlocks []*Block) error {
	oldBlocks := append([]*Block{}, l.chain[ancestorHeight+1:]...)

	l.rewindToLocked(ancestorHeight)

	var applyErr error
	for _, b := range newBlocks {
		if err := l.appendLocked(b); err != nil {
			applyErr = err
			break
		}
	}
	if applyErr == nil {
		for _, b := range oldBlocks {
			for _, tx := range b.Transactions {
				if tx.Kind == KindReward || l.pool.Has(tx.ID) {
					continue
				}
				_ = l.pool.Add(tx) // best-effort: now-invalid transactions are simply dropped
			}
		}
		return nil
	}

	// Roll back the partially-applied new branch and restore the original.
	l.rewindToLocked(ancestorHeight)
	for _, b := range oldBlocks {
		if err := l.appendLocked(b); err != nil {
			return newErr(StorageFailure, "restore original branch after failed reorg: %w", err)
		}
	}
	return applyErr
}

// rewindToLocked undoes every block above ancestorHeight, restoring
// account/validator state to exactly what it was at that height.
func (l *Ledger) rewindToLocked(ancestorHeight int64) {
	for h := len(l.chain) - 1; h > int(ancestorHeight); h-- {
		l.undo(l.journals[h])
		delete(l.byHash, l.chain[h].Hash())
		for _, tx := range l.chain[h].Transactions {
			delete(l.txIndex, tx.ID)
		}
	}
	l.chain = l.chain[:ancestorHeight+1]
	l.journals = l.journals[:ancestorHeight+1]
}
