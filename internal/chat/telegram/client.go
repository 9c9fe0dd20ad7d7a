// Package telegram sends notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultAPIURL is the public Bot API endpoint.
const DefaultAPIURL = "https://api.telegram.org"

const requestTimeout = 30 * time.Second

// APIError is a request the Bot API answered with ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// IsParseError reports whether the API rejected the message markup.
func IsParseError(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities")
}

// IsUnauthorized reports whether the API rejected the bot token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}

// apiResponse is the envelope of every Bot API reply.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type user struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Client posts messages to one chat.
type Client struct {
	http   *resty.Client
	token  string
	chatID string
}

// NewClient creates a client for the bot token that writes to chatID. An
// empty apiURL selects DefaultAPIURL.
func NewClient(apiURL, token, chatID string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetTimeout(requestTimeout).
		SetHeader("Accept", "application/json")

	return &Client{
		http:   httpClient,
		token:  token,
		chatID: chatID,
	}
}

// Send posts text to the configured chat. An empty parseMode sends plain
// text.
func (c *Client) Send(ctx context.Context, text, parseMode string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: true,
	}, nil)
}

// GetMe checks the token and returns the bot's username.
func (c *Client) GetMe(ctx context.Context) (string, error) {
	var u user
	if err := c.call(ctx, "getMe", nil, &u); err != nil {
		return "", err
	}
	if u.Username == "" {
		return fmt.Sprintf("bot %d", u.ID), nil
	}
	return "@" + u.Username, nil
}

func (c *Client) call(ctx context.Context, method string, body, result any) error {
	var out apiResponse

	req := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&out)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Post("/bot" + c.token + "/" + method)
	if err != nil {
		return c.redact(fmt.Errorf("calling %s: %w", method, err))
	}

	if !out.OK {
		apiErr := &APIError{
			Method:      method,
			StatusCode:  resp.StatusCode(),
			Code:        out.ErrorCode,
			Description: out.Description,
		}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode()
		}
		if apiErr.Description == "" {
			apiErr.Description = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}

	if result != nil {
		if err := json.Unmarshal(out.Result, result); err != nil {
			return fmt.Errorf("decoding %s result: %w", method, err)
		}
	}
	return nil
}

// redactedError hides the bot token that transport errors carry in the
// request URL.
type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func (c *Client) redact(err error) error {
	if c.token == "" || !strings.Contains(err.Error(), c.token) {
		return err
	}
	return &redactedError{
		msg: strings.ReplaceAll(err.Error(), c.token, "<redacted>"),
		err: err,
	}
}
