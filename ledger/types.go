package ledger

// Account holds the on-chain balance, replay-protection counter, and stake
// for a single address. Created lazily the first time an address is
// mentioned as a sender or recipient; never deleted afterward.
type Account struct {
	Address  string `json:"address"`
	Balance  uint64 `json:"balance"`
	Sequence uint64 `json:"sequence"`
	Staked   uint64 `json:"staked"`
}

// clone returns a deep copy, used by the fork-rewind journal to snapshot
// account state before a block mutates it.
func (a *Account) clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}

// Validator is the registry entry for an address that has staked at least
// once. The record is retained for historical queries even after the
// validator falls below MinStake and becomes inactive.
type Validator struct {
	Address          string `json:"address"`
	Stake            uint64 `json:"stake"`
	Active           bool   `json:"active"`
	LastProducedHeight int64 `json:"lastProducedHeight"`
	BlocksProduced   uint64 `json:"blocksProduced"`
	RegisteredAt     int64  `json:"registeredAt"`
}

func (v *Validator) clone() *Validator {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

// ChainParams are the consensus parameters fixed at genesis and carried
// unchanged for the life of the chain.
type ChainParams struct {
	NetworkID                    string `json:"networkId"`
	BlockTimeMillis               int64  `json:"blockTime"`
	BlockReward                   uint64 `json:"blockReward"`
	MinStake                      uint64 `json:"minStake"`
	MaxSupply                     uint64 `json:"maxSupply"`
	InitialSupply                 uint64 `json:"initialSupply"`
	DifficultyAdjustmentInterval  int64  `json:"difficultyAdjustmentInterval"`
	GenesisTimestamp               int64  `json:"genesisTimestamp"`
}

// DefaultChainParams returns the parameter set named in the external
// interface contract, with a caller-supplied network identifier.
func DefaultChainParams(networkID string, genesisTimestamp int64) ChainParams {
	return ChainParams{
		NetworkID:                    networkID,
		BlockTimeMillis:              15000,
		BlockReward:                  5,
		MinStake:                     1000,
		MaxSupply:                    100_000_000,
		InitialSupply:                10_000_000,
		DifficultyAdjustmentInterval: 2016,
		GenesisTimestamp:             genesisTimestamp,
	}
}

// GenesisParentHash is the all-zero parent identifier genesis blocks carry.
var GenesisParentHash = ZeroHash

// GenesisProposer is the well-known literal proposer address of block 0.
const GenesisProposer = "AURUM_GENESIS"

// NetworkAddress is the synthetic sender address carried by Reward
// transactions, which are exempt from signature checks.
const NetworkAddress = "network"
