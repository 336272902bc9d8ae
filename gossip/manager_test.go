package gossip

import (
	"context"
	"testing"
	"time"
)

func newTestManager(t *testing.T, nodeID, networkID string) *Manager {
	t.Helper()
	mgr := NewManager(Config{
		NodeID:      nodeID,
		NetworkID:   networkID,
		ListenAddr:  "127.0.0.1",
		ListenPort:  0,
		MaxPeers:    10,
		NoDiscovery: true,
	})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("start manager %s: %v", nodeID, err)
	}
	t.Cleanup(mgr.Stop)
	return mgr
}

// TestHandshakeRejectsNetworkIDMismatch verifies that a dial between two
// managers configured with different network IDs is refused during the
// handshake and never reaches either manager's peer table.
func TestHandshakeRejectsNetworkIDMismatch(t *testing.T) {
	a := newTestManager(t, "node-a", "mainnet")
	b := newTestManager(t, "node-b", "testnet")

	err := b.Dial(a.Addr())
	if err == nil {
		t.Fatalf("expected Dial to fail on network id mismatch")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if a.PeerCount() == 0 && b.PeerCount() == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := a.PeerCount(); got != 0 {
		t.Errorf("listener peer count: got %d want 0", got)
	}
	if got := b.PeerCount(); got != 0 {
		t.Errorf("dialer peer count: got %d want 0", got)
	}
}

// TestHandshakeAcceptsMatchingNetworkID is the positive control for the
// mismatch test above: two managers sharing a network ID complete the
// handshake and both register the session.
func TestHandshakeAcceptsMatchingNetworkID(t *testing.T) {
	a := newTestManager(t, "node-a", "mainnet")
	b := newTestManager(t, "node-b", "mainnet")

	if err := b.Dial(a.Addr()); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if a.PeerCount() == 1 && b.PeerCount() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := a.PeerCount(); got != 1 {
		t.Errorf("listener peer count: got %d want 1", got)
	}
	if got := b.PeerCount(); got != 1 {
		t.Errorf("dialer peer count: got %d want 1", got)
	}
}
