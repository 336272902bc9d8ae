package node

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/aurum-chain/aurum/config"
	"github.com/aurum-chain/aurum/crypto"
	"github.com/aurum-chain/aurum/ledger"
	"github.com/aurum-chain/aurum/storage"
)

// appendRewardBlock signs and appends a single-transaction reward block on
// top of chain's current tip, returning the appended block.
func appendRewardBlock(t *testing.T, chain *ledger.Ledger, priv crypto.PrivateKey, addr string, ts int64) *ledger.Block {
	t.Helper()
	reward := ledger.NewRewardTransaction(addr, chain.Params().BlockReward, ts)
	reward.ID = reward.Hash()
	tip := chain.Tip()
	block := ledger.NewBlock(tip.Header.Height+1, tip.Hash(), ts, addr, []*ledger.Transaction{reward})
	block.Sign(priv)
	if err := chain.AppendBlock(block); err != nil {
		t.Fatalf("append block at height %d: %v", block.Header.Height, err)
	}
	return block
}

// TestCrashRecoveryReplaysBlocksPastSnapshot simulates a crash that lands
// between a block append (persisted to the block store unconditionally)
// and the next snapshot write: a snapshot taken at height 1 must not lose
// blocks 2 and 3, which only ever made it into the block store.
func TestCrashRecoveryReplaysBlocksPastSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	snapshotPath := filepath.Join(dir, "state.snapshot")
	log := zap.NewNop()

	priv, pub, _ := crypto.GenerateKeyPair()
	addr := pub.Address()

	db, err := storage.NewLevelDB(filepath.Join(dir, "chain"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	store := storage.NewBlockStore(db)
	pool := ledger.NewPool(0)

	chain, err := loadOrInitChain(cfg, store, pool, snapshotPath, log)
	if err != nil {
		t.Fatalf("loadOrInitChain (fresh): %v", err)
	}

	appendRewardBlock(t, chain, priv, addr, 1000)

	doc := chain.ExportSnapshot()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if err := storage.WriteSnapshotFile(snapshotPath, data); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	// These two blocks are persisted to the block store (appendLocked
	// writes unconditionally) but never make it into another snapshot,
	// modeling a crash before the next snapshot cadence fires.
	appendRewardBlock(t, chain, priv, addr, 2000)
	appendRewardBlock(t, chain, priv, addr, 3000)

	if err := db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}

	db2, err := storage.NewLevelDB(filepath.Join(dir, "chain"))
	if err != nil {
		t.Fatalf("reopen leveldb: %v", err)
	}
	defer db2.Close() //nolint:errcheck
	store2 := storage.NewBlockStore(db2)
	pool2 := ledger.NewPool(0)

	recovered, err := loadOrInitChain(cfg, store2, pool2, snapshotPath, log)
	if err != nil {
		t.Fatalf("loadOrInitChain (recovery): %v", err)
	}

	if got := recovered.Height(); got != 3 {
		t.Fatalf("recovered height: got %d want 3 (snapshot at 1 plus two replayed blocks)", got)
	}
	want := 3 * chain.Params().BlockReward
	if got := recovered.GetAccount(addr).Balance; got != want {
		t.Errorf("recovered balance: got %d want %d", got, want)
	}
}

// TestCrashRecoveryNoSnapshotReplaysFromGenesis covers the degenerate case
// where a crash happens before any snapshot has ever been written: recovery
// must fall back to rebuilding genesis, since there is nothing in the block
// store to replay against yet.
func TestCrashRecoveryNoSnapshotReplaysFromGenesis(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	snapshotPath := filepath.Join(dir, "state.snapshot")
	log := zap.NewNop()

	db, err := storage.NewLevelDB(filepath.Join(dir, "chain"))
	if err != nil {
		t.Fatalf("open leveldb: %v", err)
	}
	defer db.Close() //nolint:errcheck
	store := storage.NewBlockStore(db)
	pool := ledger.NewPool(0)

	chain, err := loadOrInitChain(cfg, store, pool, snapshotPath, log)
	if err != nil {
		t.Fatalf("loadOrInitChain: %v", err)
	}
	if got := chain.Height(); got != 0 {
		t.Fatalf("height with no snapshot on disk: got %d want 0", got)
	}
}
