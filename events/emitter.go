// Package events is a typed, synchronous pub/sub broker that carries
// ledger, gossip, and node events to their subscribers.
package events

import (
	"sync"

	"go.uber.org/zap"
)

// Type labels what happened.
type Type string

const (
	BlockAppended    Type = "block_appended"
	BlockRejected    Type = "block_rejected"
	TransactionAdded Type = "transaction_added"
	ChainReorged     Type = "chain_reorged"
	ValidatorChanged Type = "validator_changed"
	PeerConnected    Type = "peer_connected"
	PeerDisconnected Type = "peer_disconnected"
	SnapshotWritten  Type = "snapshot_written"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	Type   Type           `json:"type"`
	Height int64          `json:"height,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a synchronous pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	log      *zap.Logger
}

// NewEmitter creates an Emitter with no subscribers. log may be nil, in
// which case a no-op logger is used.
func NewEmitter(log *zap.Logger) *Emitter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Emitter{handlers: make(map[Type][]Handler), log: log}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ Type, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously. Each
// handler is guarded by panic recovery so a misbehaving subscriber cannot
// crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()
	for _, h := range handlers {
		e.dispatch(h, ev)
	}
}

func (e *Emitter) dispatch(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("event handler panicked", zap.String("type", string(ev.Type)), zap.Any("recover", r))
		}
	}()
	h(ev)
}
