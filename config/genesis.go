package config

import "github.com/aurum-chain/aurum/ledger"

// BuildGenesis constructs the height-0 block and chain parameters described
// by cfg.Genesis, along with the account allocation InitGenesis should
// apply. Genesis has no signature and needs no proposer key (§3: "genesis
// ... is the only block exempt from signature verification").
func BuildGenesis(cfg *Config) (*ledger.Block, ledger.ChainParams, map[string]uint64) {
	timestamp := cfg.Genesis.Timestamp
	params := ledger.DefaultChainParams(cfg.Genesis.NetworkID, timestamp)
	block := ledger.NewGenesisBlock(timestamp)

	alloc := make(map[string]uint64, len(cfg.Genesis.Alloc))
	for addr, balance := range cfg.Genesis.Alloc {
		alloc[addr] = balance
	}
	return block, params, alloc
}
