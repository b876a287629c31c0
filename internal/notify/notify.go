// Package notify delivers free-text status messages to the household
// notification relay, which forwards them as Discord DMs.
//
// Delivery is best-effort: callers log failures and carry on. A dead relay
// must never abort an upgrade run.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Client posts messages to the notification relay.
type Client struct {
	endpoint   string
	userID     int64
	httpClient *http.Client
}

// message is the relay's request body.
type message struct {
	UserID  int64  `json:"user_id"`
	Message string `json:"message"`
}

// NewClient creates a client for the relay at endpoint, addressing messages
// to the given Discord user.
func NewClient(endpoint string, userID int64) *Client {
	return &Client{
		endpoint:   endpoint,
		userID:     userID,
		httpClient: &http.Client{},
	}
}

// Send posts one message. A non-2xx response is an error carrying the
// response body.
func (c *Client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(message{UserID: c.userID, Message: text})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("notification relay returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}
