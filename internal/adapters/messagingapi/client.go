// Package messagingapi is the outbound client for the messaging platform's
// reply and push APIs.
package messagingapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
)

// Client talks to the messaging platform bot API.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
	log         *logger.Logger
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

// NewClient creates the messaging API client. Returns nil when no API URL is
// configured; a nil client drops every send.
func NewClient(cfg config.MessagingConfig, log *logger.Logger) *Client {
	if cfg.GetMessagingAPIURL() == "" {
		return nil
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.GetMessagingAPIURL(), "/"),
		accessToken: cfg.GetMessagingAccessToken(),
		http:        &http.Client{Timeout: cfg.GetCollaboratorTimeout()},
		log:         log,
	}
}

// Reply answers the event that carried the reply token.
func (c *Client) Reply(ctx context.Context, replyToken, text string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, "/v2/bot/message/reply", replyRequest{
		ReplyToken: replyToken,
		Messages:   []textMessage{{Type: "text", Text: text}},
	})
}

// Push sends a proactive message to a linked identity.
func (c *Client) Push(ctx context.Context, messagingUserID, text string) error {
	if c == nil {
		return nil
	}
	return c.post(ctx, "/v2/bot/message/push", pushRequest{
		To:       messagingUserID,
		Messages: []textMessage{{Type: "text", Text: text}},
	})
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal messaging payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("messaging request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("messaging api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return nil
}
