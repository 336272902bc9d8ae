// Package gossip implements the peer-to-peer wire protocol: a WebSocket
// handshake, block/transaction broadcast with dedup suppression, and
// blocking-queue-based peer sync.
package gossip

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aurum-chain/aurum/events"
	"github.com/aurum-chain/aurum/ledger"
)

const handshakeTimeout = 5 * time.Second

// Version is advertised in every handshake for diagnostic purposes.
const Version = "aurum/1"

// SeedAddr is a bootstrap dial target.
type SeedAddr struct {
	ID   string
	Addr string
}

// Config configures a Manager.
type Config struct {
	NodeID      string
	NetworkID   string
	ListenAddr  string
	ListenPort  int
	MaxPeers    int
	NoDiscovery bool
	Seeds       []SeedAddr

	// TLSConfig, when non-nil, upgrades the P2P listener and outbound
	// dials to mTLS (§9 "peer-link transport security"). Nil means plain
	// WebSocket, matching the teacher's "nil tlsConfig means plain TCP".
	TLSConfig *tls.Config

	Ledger  *ledger.Ledger
	Emitter *events.Emitter
	Log     *zap.Logger
}

// Manager owns the peer table, the listening socket, outbound dialing, and
// broadcast/dedup/sync logic (§4.3).
type Manager struct {
	cfg Config
	log *zap.Logger

	upgrader websocket.Upgrader
	server   *http.Server
	ln       net.Listener

	mu    sync.RWMutex
	peers map[string]*Peer

	dedupBlocks *dedupCache
	dedupTxs    *dedupCache

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager builds a Manager. Start must be called to begin serving.
func NewManager(cfg Config) *Manager {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxPeers <= 0 {
		cfg.MaxPeers = 50
	}
	return &Manager{
		cfg:         cfg,
		log:         log,
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096, CheckOrigin: func(*http.Request) bool { return true }},
		peers:       make(map[string]*Peer),
		dedupBlocks: newDedupCache(4096),
		dedupTxs:    newDedupCache(4096),
	}
}

// Start begins accepting inbound connections and dials configured seeds.
// It returns once the listener is up; shutdown happens via Stop.
func (m *Manager) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/gossip", m.handleAccept)
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", m.cfg.ListenAddr, m.cfg.ListenPort))
	if err != nil {
		return fmt.Errorf("gossip: listen: %w", err)
	}
	if m.cfg.TLSConfig != nil {
		ln = tls.NewListener(ln, m.cfg.TLSConfig)
	}
	m.ln = ln
	m.server = &http.Server{Handler: mux}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error("gossip listener stopped", zap.Error(err))
		}
	}()

	for _, s := range m.cfg.Seeds {
		seed := s
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if err := m.Dial(seed.Addr); err != nil {
				m.log.Warn("dial seed failed", zap.String("addr", seed.Addr), zap.Error(err))
			}
		}()
	}

	return nil
}

// Addr returns the address the gossip listener is bound to, valid after
// Start returns. Mainly useful in tests that bind to port 0.
func (m *Manager) Addr() string {
	if m.ln == nil {
		return ""
	}
	return m.ln.Addr().String()
}

// Stop tears down the listener and every peer session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.server != nil {
		m.server.Close() //nolint:errcheck
	}
	m.mu.Lock()
	for _, p := range m.peers {
		p.Close()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) handleAccept(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	peer := newPeer("", r.RemoteAddr, conn)
	if err := m.handshake(peer, false); err != nil {
		m.log.Debug("inbound handshake failed", zap.Error(err))
		peer.Close()
		return
	}
	m.register(peer)
}

// Dial connects outbound to addr (host:port) and performs the handshake.
func (m *Manager) Dial(addr string) error {
	dialer := websocket.DefaultDialer
	scheme := "ws"
	if m.cfg.TLSConfig != nil {
		d := *websocket.DefaultDialer
		d.TLSClientConfig = m.cfg.TLSConfig
		dialer = &d
		scheme = "wss"
	}
	url := fmt.Sprintf("%s://%s/gossip", scheme, addr)
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return err
	}
	peer := newPeer("", addr, conn)
	if err := m.handshake(peer, true); err != nil {
		peer.Close()
		return err
	}
	m.register(peer)
	return nil
}

// handshake exchanges HandshakePayload and validates the remote's network
// ID before the session is admitted (§4.3 "NetworkIdMismatch").
func (m *Manager) handshake(p *Peer, initiator bool) error {
	self, err := newEnvelope(MsgHandshake, m.cfg.NodeID, HandshakePayload{
		NodeID:     m.cfg.NodeID,
		Version:    Version,
		ListenPort: m.cfg.ListenPort,
		NetworkID:  m.cfg.NetworkID,
	})
	if err != nil {
		return err
	}

	p.conn.SetReadDeadline(time.Now().Add(handshakeTimeout)) //nolint:errcheck
	defer p.conn.SetReadDeadline(time.Time{})                //nolint:errcheck

	send := func() error {
		p.conn.SetWriteDeadline(time.Now().Add(handshakeTimeout)) //nolint:errcheck
		return p.conn.WriteJSON(self)
	}
	recv := func() (HandshakePayload, error) {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			return HandshakePayload{}, err
		}
		if env.Type != MsgHandshake {
			return HandshakePayload{}, fmt.Errorf("gossip: expected handshake, got %s", env.Type)
		}
		var hs HandshakePayload
		if err := json.Unmarshal(env.Data, &hs); err != nil {
			return HandshakePayload{}, err
		}
		return hs, nil
	}

	var remote HandshakePayload
	if initiator {
		if err := send(); err != nil {
			return err
		}
		remote, err = recv()
	} else {
		remote, err = recv()
		if err == nil {
			err = send()
		}
	}
	if err != nil {
		return err
	}
	if remote.NetworkID != m.cfg.NetworkID {
		p.Enqueue(mustEnvelope(MsgDisconnect, m.cfg.NodeID, DisconnectPayload{Reason: "NetworkIdMismatch"})) //nolint:errcheck
		return fmt.Errorf("gossip: network id mismatch: remote=%q local=%q", remote.NetworkID, m.cfg.NetworkID)
	}
	if remote.NodeID == m.cfg.NodeID {
		return errors.New("gossip: refusing to connect to self")
	}
	p.ID = remote.NodeID
	p.ListenPort = remote.ListenPort
	if !initiator {
		// p.Addr currently holds the inbound connection's remote address,
		// whose port is ephemeral and not dialable. Replace it with the
		// peer's advertised listen port so it can be handed out via
		// MsgPeers (§4.3 peer discovery).
		p.Addr = fmt.Sprintf("%s:%d", hostOf(p.Addr), p.ListenPort)
	}
	return nil
}

// hostOf strips the port from a host:port address, returning addr
// unchanged if it cannot be parsed.
func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func mustEnvelope(typ MsgType, from string, payload any) Envelope {
	env, _ := newEnvelope(typ, from, payload)
	return env
}

func (m *Manager) register(p *Peer) {
	m.mu.Lock()
	if len(m.peers) >= m.cfg.MaxPeers {
		m.mu.Unlock()
		p.Enqueue(mustEnvelope(MsgDisconnect, m.cfg.NodeID, DisconnectPayload{Reason: "peer table full"})) //nolint:errcheck
		p.Close()
		return
	}
	if _, dup := m.peers[p.ID]; dup {
		m.mu.Unlock()
		p.Close()
		return
	}
	m.peers[p.ID] = p
	m.mu.Unlock()

	if m.cfg.Emitter != nil {
		m.cfg.Emitter.Emit(events.Event{Type: events.PeerConnected, Data: map[string]any{"peerId": p.ID, "addr": p.Addr}})
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p.writeLoop()
	}()
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		p.readLoop(m.dispatch)
		m.unregister(p)
	}()

	if !m.cfg.NoDiscovery {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.discover(p)
		}()
	}
}

// discover asks a freshly registered peer for its known peers and dials
// any it doesn't already know about, up to MaxPeers (§4.3 "sessions
// below MaxPeers opportunistically dial newly learned peers").
func (m *Manager) discover(p *Peer) {
	req := mustEnvelope(MsgGetPeers, m.cfg.NodeID, GetPeersPayload{})
	if err := p.Enqueue(req); err != nil {
		return
	}
	resp, err := p.awaitResponse(MsgPeers, RequestTimeout)
	if err != nil {
		return
	}
	var payload PeersPayload
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return
	}
	for _, info := range payload.Peers {
		if info.ID == "" || info.ID == m.cfg.NodeID || m.hasPeer(info.ID) {
			continue
		}
		if m.PeerCount() >= m.cfg.MaxPeers {
			return
		}
		addr := fmt.Sprintf("%s:%d", info.IP, info.Port)
		go func() {
			if err := m.Dial(addr); err != nil {
				m.log.Debug("opportunistic dial failed", zap.String("addr", addr), zap.Error(err))
			}
		}()
	}
}

func (m *Manager) hasPeer(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.peers[id]
	return ok
}

func (m *Manager) unregister(p *Peer) {
	m.mu.Lock()
	if cur, ok := m.peers[p.ID]; ok && cur == p {
		delete(m.peers, p.ID)
	}
	m.mu.Unlock()
	if m.cfg.Emitter != nil {
		m.cfg.Emitter.Emit(events.Event{Type: events.PeerDisconnected, Data: map[string]any{"peerId": p.ID}})
	}
}

// Peers returns a snapshot of the connected peer table, sorted by peer ID.
func (m *Manager) Peers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) PeerCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.peers)
}

// BroadcastBlock gossips a newly appended block to every peer, skipping it
// if this hash was already broadcast or received (§4.3 dedup).
func (m *Manager) BroadcastBlock(b *ledger.Block) {
	if m.dedupBlocks.SeenOrAdd(b.Hash()) {
		return
	}
	env, err := newEnvelope(MsgNewBlock, m.cfg.NodeID, NewBlockPayload{Block: b})
	if err != nil {
		return
	}
	m.broadcast(env, "")
}

// BroadcastTx gossips a newly accepted transaction, subject to the same dedup rule.
func (m *Manager) BroadcastTx(tx *ledger.Transaction) {
	if m.dedupTxs.SeenOrAdd(tx.ID) {
		return
	}
	env, err := newEnvelope(MsgNewTransaction, m.cfg.NodeID, NewTransactionPayload{Transaction: tx})
	if err != nil {
		return
	}
	m.broadcast(env, "")
}

func (m *Manager) broadcast(env Envelope, except string) {
	for _, p := range m.Peers() {
		if p.ID == except {
			continue
		}
		if err := p.Enqueue(env); errors.Is(err, errQueueFull) {
			m.log.Warn("disconnecting slow peer", zap.String("peer", p.ID))
			p.Close()
		}
	}
}

// dispatch routes one inbound envelope not already claimed by a pending
// request/response waiter.
func (m *Manager) dispatch(p *Peer, env Envelope) {
	switch env.Type {
	case MsgDisconnect:
		p.Close()

	case MsgGetPeers:
		infos := make([]PeerInfo, 0, m.PeerCount())
		for _, peer := range m.Peers() {
			infos = append(infos, PeerInfo{ID: peer.ID, IP: hostOf(peer.Addr), Port: peer.ListenPort})
		}
		resp, err := newEnvelope(MsgPeers, m.cfg.NodeID, PeersPayload{Peers: infos})
		if err == nil {
			p.Enqueue(resp) //nolint:errcheck
		}

	case MsgGetBlocks:
		var req GetBlocksPayload
		if err := json.Unmarshal(env.Data, &req); err != nil {
			return
		}
		resp, err := newEnvelope(MsgBlocks, m.cfg.NodeID, BlocksPayload{Blocks: m.blocksFrom(req.FromHeight, req.Count)})
		if err == nil {
			p.Enqueue(resp) //nolint:errcheck
		}

	case MsgGetTransactions:
		resp, err := newEnvelope(MsgTransactions, m.cfg.NodeID, TransactionsPayload{Transactions: m.cfg.Ledger.Pool().Ordered()})
		if err == nil {
			p.Enqueue(resp) //nolint:errcheck
		}

	case MsgNewBlock:
		var payload NewBlockPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Block == nil {
			return
		}
		if m.dedupBlocks.SeenOrAdd(payload.Block.Hash()) {
			return
		}
		accepted, err := m.cfg.Ledger.HandleReceivedBlock(payload.Block)
		if err != nil {
			m.log.Debug("rejected gossiped block", zap.Error(err))
			return
		}
		if accepted {
			if m.cfg.Emitter != nil {
				m.cfg.Emitter.Emit(events.Event{Type: events.BlockAppended, Height: payload.Block.Header.Height})
			}
			fwd, ferr := newEnvelope(MsgNewBlock, m.cfg.NodeID, payload)
			if ferr == nil {
				m.broadcast(fwd, p.ID)
			}
		}

	case MsgNewTransaction:
		var payload NewTransactionPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload.Transaction == nil {
			return
		}
		if m.dedupTxs.SeenOrAdd(payload.Transaction.ID) {
			return
		}
		if err := m.cfg.Ledger.SubmitTransaction(payload.Transaction); err != nil {
			m.log.Debug("rejected gossiped transaction", zap.Error(err))
			return
		}
		fwd, ferr := newEnvelope(MsgNewTransaction, m.cfg.NodeID, payload)
		if ferr == nil {
			m.broadcast(fwd, p.ID)
		}

	case MsgHandshake, MsgPeers, MsgBlocks, MsgTransactions:
		// unsolicited; only meaningful as an awaited response, already
		// intercepted by Peer.deliverIfPending before reaching dispatch.
	}
}

func (m *Manager) blocksFrom(fromHeight int64, count int) []*ledger.Block {
	if count <= 0 || count > 500 {
		count = 500
	}
	out := make([]*ledger.Block, 0, count)
	for h := fromHeight; h < fromHeight+int64(count); h++ {
		b, err := m.cfg.Ledger.GetBlockByHeight(h)
		if err != nil {
			break
		}
		out = append(out, b)
	}
	return out
}
