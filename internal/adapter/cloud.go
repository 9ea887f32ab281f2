package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"atelier-sync-core/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// cloudTokenTTL bounds how long one signed request token stays valid.
const cloudTokenTTL = 5 * time.Minute

// CloudAdapter talks JSON over HTTP to the relay service. Every request
// carries a short-lived HS256 bearer token identifying this device; that is
// transport wiring, not an authorization system.
type CloudAdapter struct {
	baseURL     string
	deviceID    string
	tokenSecret []byte
	client      *http.Client
	connected   bool
}

func NewCloudAdapter(baseURL, deviceID, tokenSecret string) *CloudAdapter {
	return &CloudAdapter{
		baseURL:     baseURL,
		deviceID:    deviceID,
		tokenSecret: []byte(tokenSecret),
		client:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *CloudAdapter) Connect(ctx context.Context) error {
	req, err := a.newRequest(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay health check failed: status %d", resp.StatusCode)
	}

	a.connected = true
	return nil
}

func (a *CloudAdapter) Disconnect() error {
	a.connected = false
	return nil
}

func (a *CloudAdapter) IsConnected() bool {
	return a.connected
}

func (a *CloudAdapter) PushChanges(ctx context.Context, changes []*domain.SyncChange) (*PushResult, error) {
	if !a.connected {
		return nil, ErrNotConnected
	}

	body, err := json.Marshal(map[string]any{"changes": changes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode changes: %w", err)
	}

	req, err := a.newRequest(ctx, http.MethodPost, a.baseURL+"/changes", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("push rejected: status %d", resp.StatusCode)
	}

	var result PushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode push result: %w", err)
	}

	return &result, nil
}

func (a *CloudAdapter) PullChanges(ctx context.Context, sinceSequence int64) ([]*domain.SyncChange, error) {
	if !a.connected {
		return nil, ErrNotConnected
	}

	url := fmt.Sprintf("%s/changes?since=%d&device_id=%s", a.baseURL, sinceSequence, a.deviceID)
	req, err := a.newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pull failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pull rejected: status %d", resp.StatusCode)
	}

	var result struct {
		Changes []*domain.SyncChange `json:"changes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pulled changes: %w", err)
	}

	return result.Changes, nil
}

func (a *CloudAdapter) newRequest(ctx context.Context, method, url string, body *bytes.Reader) (*http.Request, error) {
	var req *http.Request
	var err error
	if body == nil {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	}
	if err != nil {
		return nil, err
	}

	token, err := a.signToken()
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	return req, nil
}

func (a *CloudAdapter) signToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"device_id": a.deviceID,
		"iat":       now.Unix(),
		"exp":       now.Add(cloudTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.tokenSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign request token: %w", err)
	}

	return signed, nil
}
