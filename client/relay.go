package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRelayURL is the public relay used when none is configured.
const DefaultRelayURL = "https://unrivaled-torte-81e36b.netlify.app"

const functionPath = "/.netlify/functions/tx"

// Session modes
const (
	ModeConnect     = "connect"
	ModeTransaction = "transaction"
)

// ErrInvalidWallet is returned when the relay reports a wallet address that does not parse.
var ErrInvalidWallet = errors.New("invalid wallet address from relay")

// Session is a relay session a mobile wallet can open by scanning its URI.
type Session struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
	URI  string `json:"uri"`
}

// UploadRequest carries unsigned base64 transactions for a wallet to sign.
type UploadRequest struct {
	Transactions []string `json:"transactions"`
	Wallet       string   `json:"wallet"`
	Label        string   `json:"label"`
}

// PollResult is the relay's view of a connect session.
type PollResult struct {
	Connected bool   `json:"connected"`
	Wallet    string `json:"wallet,omitempty"`
}

// RelayClient is the HTTP client for the transaction relay.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewRelayClient creates a new relay client. An empty baseURL means DefaultRelayURL.
func NewRelayClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *RelayClient {
	if baseURL == "" {
		baseURL = DefaultRelayURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &RelayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// RequestKind labels relay requests for metrics: "upload", "connect" or "poll".
func RequestKind(r *http.Request) string {
	if r.Method == http.MethodGet {
		return "poll"
	}
	if r.Header.Get("X-Relay-Mode") == ModeConnect {
		return "connect"
	}
	return "upload"
}

// UploadTransactions stores unsigned transactions on the relay and returns the
// session a wallet opens to sign them.
func (c *RelayClient) UploadTransactions(ctx context.Context, upload UploadRequest) (*Session, error) {
	id, err := c.createSession(ctx, ModeTransaction, upload)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "transactions uploaded to relay",
		"session_id", id,
		"wallet", upload.Wallet,
		"count", len(upload.Transactions),
	)
	return &Session{ID: id, Mode: ModeTransaction, URI: c.SessionURI(id)}, nil
}

// CreateConnectSession opens a session whose only purpose is learning the
// scanning wallet's address.
func (c *RelayClient) CreateConnectSession(ctx context.Context, label string) (*Session, error) {
	id, err := c.createSession(ctx, ModeConnect, map[string]string{
		"mode":  ModeConnect,
		"label": label,
	})
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "connect session created", "session_id", id)
	return &Session{ID: id, Mode: ModeConnect, URI: c.SessionURI(id)}, nil
}

// Poll reports whether a wallet has connected to the session.
func (c *RelayClient) Poll(ctx context.Context, sessionID string) (*PollResult, error) {
	u := fmt.Sprintf("%s%s?id=%s&poll=true", c.baseURL, functionPath, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.parseErrorResponse(resp)
	}

	var out PollResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &out, nil
}

// FetchURL is the relay endpoint a wallet calls to load a session.
func (c *RelayClient) FetchURL(sessionID string) string {
	return fmt.Sprintf("%s%s?id=%s", c.baseURL, functionPath, sessionID)
}

// SessionURI is the solana: URI encoded into the QR code for a session.
func (c *RelayClient) SessionURI(sessionID string) string {
	return "solana:" + strings.ReplaceAll(url.QueryEscape(c.FetchURL(sessionID)), "+", "%20")
}

func (c *RelayClient) createSession(ctx context.Context, mode string, payload interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+functionPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Relay-Mode", mode)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.parseErrorResponse(resp)
	}

	var session struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ID == "" {
		return "", errors.New("relay returned an empty session id")
	}
	return session.ID, nil
}

// parseErrorResponse attempts to parse an error response from the relay.
func (c *RelayClient) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("relay error (status %d): %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("relay error (status %d): %s", resp.StatusCode, errResp.Error)
}
