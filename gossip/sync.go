package gossip

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aurum-chain/aurum/events"
)

const (
	syncBatchSize = 500
	syncCoolOff   = 30 * time.Second
)

// Syncer drives catch-up block downloads from connected peers (§4.3, §5).
type Syncer struct {
	mgr *Manager
	log *zap.Logger

	mu      sync.Mutex
	coolOff map[string]time.Time
}

// NewSyncer builds a Syncer bound to mgr.
func NewSyncer(mgr *Manager) *Syncer {
	return &Syncer{mgr: mgr, log: mgr.log, coolOff: make(map[string]time.Time)}
}

// Run polls at interval, pulling blocks while the local tip trails a peer.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SyncOnce(ctx)
		}
	}
}

// SyncOnce pulls blocks from one eligible peer until the peer runs dry, a
// batch fails to apply, or the request times out. It returns the number of
// blocks successfully appended.
func (s *Syncer) SyncOnce(ctx context.Context) int {
	peer := s.pickPeer()
	if peer == nil {
		return 0
	}

	applied := 0
	for {
		select {
		case <-ctx.Done():
			return applied
		default:
		}

		from := s.mgr.cfg.Ledger.Height() + 1
		req, err := newEnvelope(MsgGetBlocks, s.mgr.cfg.NodeID, GetBlocksPayload{FromHeight: from, Count: syncBatchSize})
		if err != nil {
			return applied
		}
		if err := peer.Enqueue(req); err != nil {
			s.penalize(peer.ID)
			return applied
		}

		resp, err := peer.awaitResponse(MsgBlocks, RequestTimeout)
		if err != nil {
			s.penalize(peer.ID)
			return applied
		}
		var payload BlocksPayload
		if err := json.Unmarshal(resp.Data, &payload); err != nil || len(payload.Blocks) == 0 {
			return applied
		}

		for _, b := range payload.Blocks {
			accepted, err := s.mgr.cfg.Ledger.HandleReceivedBlock(b)
			if err != nil {
				s.log.Debug("sync block rejected", zap.String("peer", peer.ID), zap.Error(err))
				s.penalize(peer.ID)
				return applied
			}
			if accepted {
				applied++
				if s.mgr.cfg.Emitter != nil {
					s.mgr.cfg.Emitter.Emit(events.Event{Type: events.BlockAppended, Height: b.Header.Height})
				}
				s.mgr.BroadcastBlock(b)
			}
		}

		if len(payload.Blocks) < syncBatchSize {
			return applied
		}
	}
}

func (s *Syncer) pickPeer() *Peer {
	candidates := s.mgr.Peers()
	if len(candidates) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	eligible := candidates[:0:0]
	for _, p := range candidates {
		if until, ok := s.coolOff[p.ID]; ok && now.Before(until) {
			continue
		}
		eligible = append(eligible, p)
	}
	if len(eligible) == 0 {
		return nil
	}
	return eligible[rand.Intn(len(eligible))]
}

func (s *Syncer) penalize(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.coolOff[peerID] = time.Now().Add(syncCoolOff)
}
