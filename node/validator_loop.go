package node

import (
	"time"

	"go.uber.org/zap"

	"github.com/aurum-chain/aurum/crypto"
	"github.com/aurum-chain/aurum/events"
	"github.com/aurum-chain/aurum/ledger"
)

// validatorLoop ticks at BlockTime/3 and proposes a block whenever this
// node's address wins election for the next height and at least BlockTime
// has elapsed since the current tip.
type validatorLoop struct {
	chain     *ledger.Ledger
	bcast     broadcaster
	priv      crypto.PrivateKey
	address   string
	maxTxs    int
	blockTime time.Duration
	emitter   *events.Emitter
	log       *zap.Logger
}

// broadcaster is the subset of gossip.Manager the validator loop needs.
// Kept as an interface so tests can substitute a recording fake.
type broadcaster interface {
	BroadcastBlock(b *ledger.Block)
}

func newValidatorLoop(chain *ledger.Ledger, bcast broadcaster, priv crypto.PrivateKey, maxTxs int, emitter *events.Emitter, log *zap.Logger) *validatorLoop {
	return &validatorLoop{
		chain:     chain,
		bcast:     bcast,
		priv:      priv,
		address:   priv.Public().Address(),
		maxTxs:    maxTxs,
		blockTime: time.Duration(chain.Params().BlockTimeMillis) * time.Millisecond,
		emitter:   emitter,
		log:       log,
	}
}

func (v *validatorLoop) run(done <-chan struct{}) {
	interval := v.blockTime / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			v.tick()
		}
	}
}

func (v *validatorLoop) tick() {
	tip := v.chain.Tip()
	if tip == nil {
		return
	}
	if time.Since(time.UnixMilli(tip.Header.Timestamp)) < v.blockTime {
		return
	}

	proposer, err := v.chain.ElectProposer(tip.Hash())
	if err != nil {
		return
	}
	if proposer != v.address {
		return
	}

	block := v.chain.AssembleBlock(v.address, v.priv, time.Now().UnixMilli(), v.maxTxs)
	if err := v.chain.AppendBlock(block); err != nil {
		v.log.Warn("produced block rejected by own ledger", zap.Error(err))
		return
	}

	v.log.Info("produced block", zap.Int64("height", block.Header.Height), zap.Int("txs", len(block.Transactions)))
	if v.emitter != nil {
		v.emitter.Emit(events.Event{
			Type:   events.BlockAppended,
			Height: block.Header.Height,
			Data:   map[string]any{"hash": block.Hash(), "txs": len(block.Transactions), "proposer": v.address},
		})
	}
	if v.bcast != nil {
		v.bcast.BroadcastBlock(block)
	}
}
