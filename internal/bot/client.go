package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"
)

// Client sends messages through the bot platform HTTP API. A nil client
// is safe to call and drops messages silently, so the rest of the system
// works without a configured bot.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *logger.Logger
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// NewClient builds a bot API client, or nil when no API URL is configured.
func NewClient(cfg config.BotConfig, log *logger.Logger) *Client {
	if cfg.GetBotAPIURL() == "" || cfg.GetBotToken() == "" {
		return nil
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.GetBotAPIURL(), "/"),
		token:   cfg.GetBotToken(),
		http:    &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
}

// SendMessage delivers a plain-text message to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	if c == nil || chatID == 0 || text == "" {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal bot payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("bot request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("bot api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Info("bot message sent", "chat_id", chatID)
	return nil
}
