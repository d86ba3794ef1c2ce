// ABOUTME: HTTP client that submits harvested items to the gateway webhook.
// ABOUTME: Classifies each response into accepted, duplicate, busy, or a terminal failure.

package harvester

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Submission outcomes. ErrBusy is the only retriable failure; the rest
// terminate the attempt loop for an item.
var (
	ErrBusy         = errors.New("gateway busy")
	ErrUnauthorized = errors.New("webhook token rejected")
	ErrRejected     = errors.New("payload rejected")
)

// SubmitResult is the gateway's answer for one submission attempt.
type SubmitResult struct {
	Status          string `json:"status"`
	Message         string `json:"message"`
	PostID          string `json:"post_id,omitempty"`
	CurrentHeadline string `json:"current_headline,omitempty"`
}

// Submitter delivers one item to the gateway.
type Submitter interface {
	Submit(ctx context.Context, item Item) (*SubmitResult, error)
}

// Client is the production Submitter, posting items to the gateway's
// webhook endpoint.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient creates a webhook client. endpoint is the full URL of the
// update webhook, e.g. "http://localhost:8080/webhook/update".
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		token:    token,
		http:     &http.Client{Timeout: timeout},
	}
}

type updatePayload struct {
	Domain    string   `json:"domain"`
	Headline  string   `json:"headline"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources"`
	Timestamp string   `json:"timestamp"`
}

// Submit posts the item to the gateway. Network failures and non-JSON
// responses come back as plain errors; gateway outcomes map to the
// sentinel errors above.
func (c *Client) Submit(ctx context.Context, item Item) (*SubmitResult, error) {
	ts := item.PublishedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	sources := []string{item.Link}
	if item.Link == "" {
		sources = []string{c.endpoint}
	}

	body, err := json.Marshal(updatePayload{
		Domain:    item.Domain,
		Headline:  item.Headline,
		Content:   item.Content,
		Sources:   sources,
		Timestamp: ts.Format(time.RFC3339),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting update: %w", err)
	}
	defer resp.Body.Close()

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response (HTTP %d): %w", resp.StatusCode, err)
	}

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		return &result, nil
	case http.StatusServiceUnavailable:
		return &result, fmt.Errorf("%w: processing %q", ErrBusy, result.CurrentHeadline)
	case http.StatusUnauthorized:
		return &result, fmt.Errorf("%w: %s", ErrUnauthorized, result.Message)
	case http.StatusBadRequest:
		return &result, fmt.Errorf("%w: %s", ErrRejected, result.Message)
	default:
		return &result, fmt.Errorf("unexpected HTTP %d: %s", resp.StatusCode, result.Message)
	}
}
