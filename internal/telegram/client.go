package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	applog "balancebot/internal/log"
)

const apiBase = "https://api.telegram.org/bot"

// Client talks to the Telegram Bot API over HTTPS. No third-party binding
// is used; the three methods the bot needs are small enough to call
// directly.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	pollTimeout time.Duration
	logger      *applog.Logger
}

var (
	_ Sender        = (*Client)(nil)
	_ MemberChecker = (*Client)(nil)
	_ UpdateSource  = (*Client)(nil)
)

func NewClient(token string, pollTimeout time.Duration, logger *applog.Logger) *Client {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentTelegram})
	}
	return &Client{
		httpClient:  &http.Client{},
		baseURL:     apiBase + token,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	return c.call(ctx, "sendMessage", params, nil)
}

func (c *Client) GetChatMember(ctx context.Context, chatID, userID int64) (Role, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	params := map[string]any{
		"chat_id": chatID,
		"user_id": userID,
	}
	var result struct {
		Status string `json:"status"`
	}
	if err := c.call(ctx, "getChatMember", params, &result); err != nil {
		return "", err
	}
	return Role(result.Status), nil
}

func (c *Client) GetUpdates(ctx context.Context, offset int64) ([]Update, error) {
	// The request blocks server-side up to pollTimeout; give the HTTP
	// round trip some headroom on top.
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout+15*time.Second)
	defer cancel()

	params := map[string]any{
		"offset":          offset,
		"timeout":         int(c.pollTimeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var result []struct {
		UpdateID int64 `json:"update_id"`
		Message  *struct {
			Text string `json:"text"`
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
			From *struct {
				ID int64 `json:"id"`
			} `json:"from"`
		} `json:"message"`
	}
	if err := c.call(ctx, "getUpdates", params, &result); err != nil {
		return nil, err
	}

	updates := make([]Update, 0, len(result))
	for _, u := range result {
		upd := Update{UpdateID: u.UpdateID}
		if u.Message != nil {
			upd.Text = u.Message.Text
			upd.ChatID = u.Message.Chat.ID
			if u.Message.From != nil {
				upd.UserID = u.Message.From.ID
			}
		}
		updates = append(updates, upd)
	}
	return updates, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(raw, &apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		c.logger.WarnContext(ctx, "Telegram API call rejected",
			"method", method, "status", resp.StatusCode, "description", apiResp.Description)
		return fmt.Errorf("%s: api error: %s", method, apiResp.Description)
	}
	if out != nil {
		if err := json.Unmarshal(apiResp.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
