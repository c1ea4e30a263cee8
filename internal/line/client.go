// Package line is a minimal client for the LINE Messaging API: reply
// delivery and webhook signature validation. The reply endpoint is a single
// bearer-authenticated JSON POST, so no SDK is pulled in.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.line.me"

// Client sends messages through the LINE Messaging API.
type Client struct {
	token      string
	endpoint   string
	httpClient *http.Client
}

func NewClient(channelToken string) *Client {
	return &Client{
		token:      channelToken,
		endpoint:   defaultEndpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWithEndpoint is used by tests to point the client at a stub
// server.
func NewClientWithEndpoint(channelToken, endpoint string) *Client {
	c := NewClient(channelToken)
	c.endpoint = endpoint
	return c
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

// Reply sends text messages for the given reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []string) error {
	msgs := make([]textMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, textMessage{Type: "text", Text: m})
	}

	body, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: msgs})
	if err != nil {
		return fmt.Errorf("Reply: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v2/bot/message/reply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("Reply: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Reply: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("Reply: status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

// ValidateSignature checks the x-line-signature header: base64 of the
// HMAC-SHA256 of the raw request body under the channel secret.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// WebhookRequest is the body LINE posts to the webhook endpoint.
type WebhookRequest struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is one webhook event. Only message events with text messages are
// processed; everything else is ignored.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken"`
	Timestamp  int64   `json:"timestamp"`
	Source     Source  `json:"source"`
	Message    Message `json:"message"`
}

type Source struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type Message struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}
