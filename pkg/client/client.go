// Package client is the Go client for the proof service HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to one proof service instance.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is any non-2xx response, decoded from the service error body.
type APIError struct {
	StatusCode int
	Message    string
	Hint       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("proof service returned %d: %s", e.StatusCode, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
			Hint  string `json:"hint"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if json.Unmarshal(data, &apiErr) != nil || apiErr.Error == "" {
			apiErr.Error = string(data)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error, Hint: apiErr.Hint}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Prove submits one proof request and returns the fresh inference result
// while the proof is generated in the background.
func (c *Client) Prove(ctx context.Context, req *ProveRequest) (*ProveResult, error) {
	var res ProveResult
	if err := c.do(ctx, http.MethodPost, "/prove", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ProveBatch submits up to 5 requests atomically.
func (c *Client) ProveBatch(ctx context.Context, batch *BatchRequest) (*BatchResult, error) {
	var res BatchResult
	if err := c.do(ctx, http.MethodPost, "/prove/batch", batch, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetReceipt fetches the JSON representation of a receipt.
func (c *Client) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	var r Receipt
	if err := c.do(ctx, http.MethodGet, "/receipt/"+id, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Verify asks the service to re-check the stored proof for a receipt.
func (c *Client) Verify(ctx context.Context, receiptID string) (*VerifyResult, error) {
	var res VerifyResult
	body := map[string]string{"receipt_id": receiptID}
	if err := c.do(ctx, http.MethodPost, "/verify", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Models lists the registered model descriptors.
func (c *Client) Models(ctx context.Context) ([]*Model, error) {
	var res struct {
		Models []*Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/models", nil, &res); err != nil {
		return nil, err
	}
	return res.Models, nil
}

// Health fetches the service health document.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	var res HealthStatus
	if err := c.do(ctx, http.MethodGet, "/health", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Stats fetches the aggregate proof statistics.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var res Stats
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// WaitForReceipt polls until the receipt reaches a terminal status or ctx
// expires.
func (c *Client) WaitForReceipt(ctx context.Context, id string, interval time.Duration) (*Receipt, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		r, err := c.GetReceipt(ctx, id)
		if err != nil {
			return nil, err
		}
		if r.Status.Terminal() {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return r, ctx.Err()
		case <-ticker.C:
		}
	}
}
