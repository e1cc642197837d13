// Package oracle talks to the external one-bit check. The engine consumes only
// the boolean; unavailability is the caller's problem to convert into a safe
// decision, never this package's.
package oracle

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// CheckRequest is the oracle query. Force, when set, overrides the oracle's
// own judgment (used by demo and tests).
type CheckRequest struct {
	Type  string `json:"type"`
	TxID  string `json:"tx_id,omitempty"`
	Force *bool  `json:"force,omitempty"`
}

// CheckResult carries the single bit plus observed vendor latency.
type CheckResult struct {
	Bit       bool `json:"bit"`
	LatencyMS int  `json:"latency_ms"`
}

// Checker resolves a one-bit check. Implemented by the HTTP client and the
// local simulator.
type Checker interface {
	Check(ctx context.Context, req CheckRequest) (CheckResult, error)
}

// Client calls a worldcheck-style HTTP oracle.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an oracle client with the given request timeout.
// insecureTLS skips certificate verification (dev only).
func NewClient(baseURL string, timeout time.Duration, insecureTLS bool) *Client {
	transport := http.DefaultTransport
	if insecureTLS {
		transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}} //nolint:gosec
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout, Transport: transport},
	}
}

// Check posts the query and decodes the bit.
func (c *Client) Check(ctx context.Context, req CheckRequest) (CheckResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return CheckResult{}, fmt.Errorf("oracle: encode: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return CheckResult{}, fmt.Errorf("oracle: request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return CheckResult{}, fmt.Errorf("oracle: unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return CheckResult{}, fmt.Errorf("oracle: status %d", resp.StatusCode)
	}
	var out CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CheckResult{}, fmt.Errorf("oracle: decode: %w", err)
	}
	return out, nil
}
