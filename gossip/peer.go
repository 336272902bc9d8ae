package gossip

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// OutboundQueueSize bounds each peer's outbound message queue (§4.3).
// When a broadcast finds the queue full, the peer's session is closed; no
// Disconnect message is sent to it first.
const OutboundQueueSize = 256

// RequestTimeout bounds how long a request/response pair waits before
// resolving to empty (§4.3, §5).
const RequestTimeout = 10 * time.Second

const writeDeadline = 10 * time.Second

var (
	errQueueFull  = errors.New("gossip: peer outbound queue full")
	errPeerClosed = errors.New("gossip: peer session closed")
)

// Peer is one session-oriented WebSocket link. Reads happen on a single
// goroutine per peer (readLoop), so messages from one peer are always
// processed in arrival order (§5 "within a peer session...").
type Peer struct {
	ID         string
	Addr       string
	ListenPort int

	conn *websocket.Conn
	send chan Envelope

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	pending map[MsgType]chan Envelope
}

func newPeer(id, addr string, conn *websocket.Conn) *Peer {
	conn.SetReadLimit(MaxFrameBytes)
	return &Peer{
		ID:      id,
		Addr:    addr,
		conn:    conn,
		send:    make(chan Envelope, OutboundQueueSize),
		closed:  make(chan struct{}),
		pending: make(map[MsgType]chan Envelope),
	}
}

// Enqueue queues env for delivery, failing immediately if the outbound
// queue is full rather than blocking the caller.
func (p *Peer) Enqueue(env Envelope) error {
	select {
	case <-p.closed:
		return errPeerClosed
	default:
	}
	select {
	case p.send <- env:
		return nil
	default:
		return errQueueFull
	}
}

// writeLoop drains the outbound queue to the socket until the peer closes.
func (p *Peer) writeLoop() {
	for {
		select {
		case env, ok := <-p.send:
			if !ok {
				return
			}
			p.conn.SetWriteDeadline(time.Now().Add(writeDeadline)) //nolint:errcheck
			if err := p.conn.WriteJSON(env); err != nil {
				p.Close()
				return
			}
		case <-p.closed:
			return
		}
	}
}

// readLoop reads frames until the connection errors or closes, dispatching
// each to handle in order. Oversized frames are rejected by the read
// limit set in newPeer, which surfaces here as a read error.
func (p *Peer) readLoop(handle func(*Peer, Envelope)) {
	defer p.Close()
	for {
		var env Envelope
		if err := p.conn.ReadJSON(&env); err != nil {
			return
		}
		if p.deliverIfPending(env) {
			continue
		}
		handle(p, env)
	}
}

// awaitResponse registers interest in the next envelope of respType and
// blocks until it arrives, the peer closes, or timeout elapses.
func (p *Peer) awaitResponse(respType MsgType, timeout time.Duration) (Envelope, error) {
	ch := make(chan Envelope, 1)
	p.mu.Lock()
	p.pending[respType] = ch
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.pending, respType)
		p.mu.Unlock()
	}()

	select {
	case env := <-ch:
		return env, nil
	case <-time.After(timeout):
		return Envelope{}, errors.New("gossip: request timed out")
	case <-p.closed:
		return Envelope{}, errPeerClosed
	}
}

func (p *Peer) deliverIfPending(env Envelope) bool {
	p.mu.Lock()
	ch, ok := p.pending[env.Type]
	if ok {
		delete(p.pending, env.Type)
	}
	p.mu.Unlock()
	if ok {
		ch <- env
	}
	return ok
}

// Close idempotently tears down the session.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		close(p.send)
		p.conn.Close() //nolint:errcheck
	})
}

// IsClosed reports whether the session has been torn down.
func (p *Peer) IsClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}
