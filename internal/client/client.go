// Package client provides an HTTP client for a running Lion City server.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// DefaultBaseURL is used when no address is configured.
const DefaultBaseURL = "http://localhost:8080"

// Client talks to the /api and /admin endpoints of one server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for baseURL with a 5-second timeout. An empty baseURL
// means DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

// Health checks GET /admin/health. Returns (ok, response body or error message).
func (c *Client) Health() (bool, string) {
	body, err := c.do(http.MethodGet, "/admin/health", nil)
	if err != nil {
		return false, err.Error()
	}
	return true, body
}

// Reset calls POST /admin/reset.
func (c *Client) Reset() (string, error) {
	body, err := c.do(http.MethodPost, "/admin/reset", nil)
	if err != nil {
		return "", fmt.Errorf("reset: %w", err)
	}
	return body, nil
}

// State returns GET /admin/state.
func (c *Client) State() (string, error) {
	return c.do(http.MethodGet, "/admin/state", nil)
}

// Seed POSTs the contents of a JSON file to POST /admin/state.
func (c *Client) Seed(filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("reading seed file: %w", err)
	}
	body, err := c.do(http.MethodPost, "/admin/state", json.RawMessage(data))
	if err != nil {
		return "", fmt.Errorf("seed failed: %w", err)
	}
	return body, nil
}

// AdvanceTime moves the simulated clock forward by d.
func (c *Client) AdvanceTime(d time.Duration) (string, error) {
	return c.do(http.MethodPost, "/admin/time/advance", map[string]string{"duration": d.String()})
}

// Status returns GET /api/status.
func (c *Client) Status() (string, error) {
	return c.do(http.MethodGet, "/api/status", nil)
}

// Balance returns the current point balance.
func (c *Client) Balance() (int, error) {
	body, err := c.do(http.MethodGet, "/api/balance", nil)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Balance int `json:"balance"`
	}
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return 0, fmt.Errorf("decoding balance: %w", err)
	}
	return resp.Balance, nil
}

// Transactions returns GET /api/transactions.
func (c *Client) Transactions() (string, error) {
	return c.do(http.MethodGet, "/api/transactions", nil)
}

// Messages returns GET /api/messages, optionally for one channel.
func (c *Client) Messages(channel string) (string, error) {
	path := "/api/messages"
	if channel != "" {
		path += "?channel=" + url.QueryEscape(channel)
	}
	return c.do(http.MethodGet, path, nil)
}

// Earn credits amount points from source.
func (c *Client) Earn(amount int, source, reason string) (string, error) {
	return c.do(http.MethodPost, "/api/points/earn", map[string]any{
		"amount": amount,
		"source": source,
		"reason": reason,
	})
}

// Spend deducts amount points, optionally issuing a redemption key.
func (c *Client) Spend(amount int, reason string, issueKey bool) (string, error) {
	return c.do(http.MethodPost, "/api/points/spend", map[string]any{
		"amount":    amount,
		"reason":    reason,
		"issue_key": issueKey,
	})
}

// Scan submits decoded QR text.
func (c *Client) Scan(text string) (string, error) {
	return c.do(http.MethodPost, "/api/scan", map[string]string{"text": text})
}

// Redeem redeems a reward or discount. kind is "rewards" or "discounts".
func (c *Client) Redeem(kind, id string) (string, error) {
	switch kind {
	case "reward", "rewards":
		kind = "rewards"
	case "discount", "discounts":
		kind = "discounts"
	default:
		return "", fmt.Errorf("unknown offer kind %q (expected reward or discount)", kind)
	}
	return c.do(http.MethodPost, "/api/"+kind+"/"+url.PathEscape(id)+"/redeem", nil)
}

// Offers returns GET /api/offers.
func (c *Client) Offers() (string, error) {
	return c.do(http.MethodGet, "/api/offers", nil)
}

func (c *Client) do(method, path string, body any) (string, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("encoding request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	text := strings.TrimSpace(string(data))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return text, &StatusError{StatusCode: resp.StatusCode, Body: text}
	}
	return text, nil
}
