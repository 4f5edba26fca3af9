// Package notify delivers briefings and admin alerts over the Telegram Bot API.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"
)

// Format is the parse mode hint passed to the transport.
type Format string

const (
	FormatPlain    Format = ""
	FormatMarkdown Format = "Markdown"
)

// maxMessageRunes is Telegram's limit for one message.
const maxMessageRunes = 4096

// Transport sends one message to a chat endpoint.
type Transport interface {
	Send(ctx context.Context, chatID, text string, format Format) error
}

// APIError is a rejected sendMessage call.
type APIError struct {
	Status      int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: HTTP %d", e.Status)
	}
	return fmt.Sprintf("telegram: HTTP %d: %s", e.Status, e.Description)
}

// sendTimeout bounds one sendMessage call, including callers that detached
// from their run deadline.
const sendTimeout = 15 * time.Second

// Telegram implements Transport with the Bot API sendMessage method.
type Telegram struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewTelegram(baseURL, token string) *Telegram {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &Telegram{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: sendTimeout},
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, chatID, text string, format Format) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: truncate(text, maxMessageRunes), ParseMode: string(format)})
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/bot"+t.token+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: sending message: %w", err)
	}
	defer resp.Body.Close()

	var ar apiResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &ar)
	if resp.StatusCode != http.StatusOK || !ar.OK {
		return &APIError{Status: resp.StatusCode, Code: ar.ErrorCode, Description: ar.Description}
	}
	return nil
}

// truncate cuts s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
