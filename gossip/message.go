package gossip

import (
	"encoding/json"
	"time"

	"github.com/aurum-chain/aurum/ledger"
)

// MsgType enumerates the gossip message types (§4.3).
type MsgType string

const (
	MsgHandshake        MsgType = "Handshake"
	MsgDisconnect       MsgType = "Disconnect"
	MsgGetPeers         MsgType = "GetPeers"
	MsgPeers            MsgType = "Peers"
	MsgGetBlocks        MsgType = "GetBlocks"
	MsgBlocks           MsgType = "Blocks"
	MsgGetTransactions  MsgType = "GetTransactions"
	MsgTransactions     MsgType = "Transactions"
	MsgNewBlock         MsgType = "NewBlock"
	MsgNewTransaction   MsgType = "NewTransaction"
)

// MaxFrameBytes is the maximum size of one WebSocket text frame. Larger
// frames are rejected and the peer disconnected (§6).
const MaxFrameBytes = 4 * 1024 * 1024

// Envelope is the one-per-frame wire document: {type, data, from, timestamp}.
type Envelope struct {
	Type      MsgType         `json:"type"`
	Data      json.RawMessage `json:"data"`
	From      string          `json:"from"`
	Timestamp int64           `json:"timestamp"`
}

// newEnvelope marshals payload into an Envelope stamped with from and now.
func newEnvelope(typ MsgType, from string, payload any) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Type:      typ,
		Data:      data,
		From:      from,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// HandshakePayload is exchanged symmetrically right after connect/accept.
type HandshakePayload struct {
	NodeID     string `json:"nodeId"`
	Version    string `json:"version"`
	ListenPort int    `json:"listenPort"`
	NetworkID  string `json:"networkId"`
}

// DisconnectPayload carries a human-readable reason for closing a session.
type DisconnectPayload struct {
	Reason string `json:"reason"`
}

// GetPeersPayload requests the remote's known peer addresses.
type GetPeersPayload struct{}

// PeerInfo is one entry in a PeersPayload.
type PeerInfo struct {
	ID   string `json:"id"`
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

// PeersPayload answers GetPeers.
type PeersPayload struct {
	Peers []PeerInfo `json:"peers"`
}

// GetBlocksPayload requests a batch of blocks starting at FromHeight.
type GetBlocksPayload struct {
	FromHeight int64 `json:"fromHeight"`
	Count      int   `json:"count"`
}

// BlocksPayload answers GetBlocks.
type BlocksPayload struct {
	Blocks []*ledger.Block `json:"blocks"`
}

// GetTransactionsPayload requests the remote's pool contents.
type GetTransactionsPayload struct{}

// TransactionsPayload answers GetTransactions.
type TransactionsPayload struct {
	Transactions []*ledger.Transaction `json:"transactions"`
}

// NewBlockPayload is broadcast once per locally accepted block.
type NewBlockPayload struct {
	Block *ledger.Block `json:"block"`
}

// NewTransactionPayload is broadcast once per locally accepted transaction.
type NewTransactionPayload struct {
	Transaction *ledger.Transaction `json:"transaction"`
}
