// Package client talks to a node's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"healthledger/api/server"
	"healthledger/core/ledger"
	"healthledger/core/storage"
)

// Client is a thin JSON client. Token, when set, is sent as a bearer
// token on every request.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("api: HTTP %d %s: %s", e.StatusCode, e.Code, e.Detail)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// GetStatus fetches /status.
func (c *Client) GetStatus(ctx context.Context) (server.StatusResponse, error) {
	var st server.StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

// GetHealth fetches /nodehealth.
func (c *Client) GetHealth(ctx context.Context) (server.NodeHealthResponse, error) {
	var h server.NodeHealthResponse
	err := c.do(ctx, http.MethodGet, "/nodehealth", nil, &h)
	return h, err
}

func (c *Client) GetLiveness(ctx context.Context) (bool, error) {
	var res server.LivenessResponse
	err := c.do(ctx, http.MethodGet, "/health/liveness", nil, &res)
	return res.Alive, err
}

// GetReadiness reports readiness. A 503 is an answer, not an error.
func (c *Client) GetReadiness(ctx context.Context) (bool, error) {
	var res server.ReadinessResponse
	err := c.do(ctx, http.MethodGet, "/health/readiness", nil, &res)
	if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusServiceUnavailable {
		return false, nil
	}
	return res.Ready, err
}

// Mine seals the pending transactions. Requires an administrator token.
func (c *Client) Mine(ctx context.Context) (storage.BlockSummary, error) {
	var b storage.BlockSummary
	err := c.do(ctx, http.MethodPost, "/api/v1/ledger/mine", nil, &b)
	return b, err
}

// Verify runs the node's chain integrity check.
func (c *Client) Verify(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/ledger/verify", nil, nil)
}

// History returns committed transactions. An empty participant means the
// caller's own history.
func (c *Client) History(ctx context.Context, participant string) ([]ledger.Transaction, error) {
	path := "/api/v1/ledger/history"
	if participant != "" {
		path += "?participant=" + url.QueryEscape(participant)
	}
	var txs []ledger.Transaction
	err := c.do(ctx, http.MethodGet, path, nil, &txs)
	return txs, err
}

// Blocks lists recent block summaries, newest first.
func (c *Client) Blocks(ctx context.Context, limit int) ([]storage.BlockSummary, error) {
	var out []storage.BlockSummary
	err := c.do(ctx, http.MethodGet, "/api/v1/ledger/blocks?limit="+strconv.Itoa(limit), nil, &out)
	return out, err
}
