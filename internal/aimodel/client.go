package aimodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Operation string

const (
	OpTryOn   Operation = "tryon"
	OpCasting Operation = "casting"
)

var ErrNotConfigured = errors.New("aimodel: endpoint not configured")

// Request is forwarded to the model as-is; the service does not interpret it.
type Request struct {
	StoreID   string          `json:"store_id"`
	RequestID string          `json:"request_id"`
	Input     json.RawMessage `json:"input"`
}

type Result struct {
	Output json.RawMessage `json:"output"`
}

// Generator runs one model operation.
type Generator interface {
	Generate(ctx context.Context, op Operation, req Request) (Result, error)
}

// Client calls the remote model over HTTP at <baseURL>/<operation>.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Generate(ctx context.Context, op Operation, req Request) (Result, error) {
	if c.baseURL == "" {
		return Result{}, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(op), bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.RequestID)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("aimodel %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return Result{}, fmt.Errorf("aimodel %s: read response: %w", op, err)
	}
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("aimodel %s: status %d", op, resp.StatusCode)
	}
	return Result{Output: raw}, nil
}
