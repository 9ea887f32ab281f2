package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"atelier-sync-core/internal/domain"
	"atelier-sync-core/pkg/secret"

	"github.com/gorilla/websocket"
)

const (
	peerWriteWait = 10 * time.Second
	peerReadWait  = 30 * time.Second

	peerHelloMsg = "hello"
	peerPushMsg  = "push"
	peerPullMsg  = "pull"
)

// peerFrame is one request or response on the peer socket.
type peerFrame struct {
	Type     string               `json:"type"`
	DeviceID string               `json:"device_id,omitempty"`
	Secret   string               `json:"secret,omitempty"`
	Since    int64                `json:"since,omitempty"`
	Changes  []*domain.SyncChange `json:"changes,omitempty"`
	Accepted []string             `json:"accepted,omitempty"`
	Rejected []string             `json:"rejected,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// PeerAdapter syncs directly with one paired device over a persistent
// WebSocket. The handshake is mutual: we present our pairing secret and
// verify the peer's against the stored bcrypt hash.
type PeerAdapter struct {
	addr           string
	deviceID       string
	pairingSecret  string
	peerSecretHash string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewPeerAdapter(addr, deviceID, pairingSecret, peerSecretHash string) *PeerAdapter {
	return &PeerAdapter{
		addr:           addr,
		deviceID:       deviceID,
		pairingSecret:  pairingSecret,
		peerSecretHash: peerSecretHash,
	}
}

func (a *PeerAdapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn != nil {
		return nil
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, a.addr, nil)
	if err != nil {
		return fmt.Errorf("failed to dial peer: %w", err)
	}

	hello := peerFrame{
		Type:     peerHelloMsg,
		DeviceID: a.deviceID,
		Secret:   a.pairingSecret,
	}
	ack, err := roundTrip(conn, &hello)
	if err != nil {
		conn.Close()
		return fmt.Errorf("peer handshake failed: %w", err)
	}

	if err := secret.Compare(a.peerSecretHash, ack.Secret); err != nil {
		conn.Close()
		return fmt.Errorf("peer presented an invalid pairing secret")
	}

	a.conn = conn
	return nil
}

func (a *PeerAdapter) Disconnect() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil
	}
	err := a.conn.Close()
	a.conn = nil
	return err
}

func (a *PeerAdapter) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

func (a *PeerAdapter) PushChanges(ctx context.Context, changes []*domain.SyncChange) (*PushResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil, ErrNotConnected
	}

	resp, err := roundTrip(a.conn, &peerFrame{
		Type:     peerPushMsg,
		DeviceID: a.deviceID,
		Changes:  changes,
	})
	if err != nil {
		return nil, fmt.Errorf("peer push failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("peer rejected push: %s", resp.Error)
	}

	return &PushResult{Accepted: resp.Accepted, Rejected: resp.Rejected}, nil
}

func (a *PeerAdapter) PullChanges(ctx context.Context, sinceSequence int64) ([]*domain.SyncChange, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.conn == nil {
		return nil, ErrNotConnected
	}

	resp, err := roundTrip(a.conn, &peerFrame{
		Type:     peerPullMsg,
		DeviceID: a.deviceID,
		Since:    sinceSequence,
	})
	if err != nil {
		return nil, fmt.Errorf("peer pull failed: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("peer rejected pull: %s", resp.Error)
	}

	return resp.Changes, nil
}

func roundTrip(conn *websocket.Conn, frame *peerFrame) (*peerFrame, error) {
	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, err
	}

	conn.SetWriteDeadline(time.Now().Add(peerWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(peerReadWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var resp peerFrame
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
