package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"RifasCuba/internal/metrics"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is a non-ok reply from the Bot API.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	RetryAfter  int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, e.Description)
}

// Telegram is a thin Bot API client.
type Telegram struct {
	BotToken string
	APIBase  string
	Client   *http.Client
	log      *zap.Logger
}

// NewTelegram creates a client with optional proxy support.
func NewTelegram(botToken, proxyURL string, log *zap.Logger) *Telegram {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &Telegram{
		BotToken: botToken,
		APIBase:  defaultAPIBase,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: log,
	}
}

func (t *Telegram) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.APIBase, t.BotToken, method)
}

// call posts payload as JSON and decodes the result field into out (when non-nil).
func (t *Telegram) call(ctx context.Context, client *http.Client, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var result struct {
		OK          bool            `json:"ok"`
		Result      json.RawMessage `json:"result"`
		Description string          `json:"description"`
		Parameters  struct {
			RetryAfter int `json:"retry_after"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: string(respBody)}
	}
	if !result.OK || resp.StatusCode != http.StatusOK {
		return &APIError{
			Method: method, StatusCode: resp.StatusCode,
			Description: result.Description, RetryAfter: result.Parameters.RetryAfter,
		}
	}
	if out != nil {
		if err := json.Unmarshal(result.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}

// Message is an outgoing text message.
type Message struct {
	ChatID   int64
	Text     string
	Keyboard *InlineKeyboard
}

type sendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode"`
	ReplyMarkup *InlineKeyboard `json:"reply_markup,omitempty"`
}

// SendMessage sends an HTML message and returns its message id.
func (t *Telegram) SendMessage(ctx context.Context, m Message) (int64, error) {
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	err := t.call(ctx, t.Client, "sendMessage", sendMessageRequest{
		ChatID: chatID(m.ChatID), Text: m.Text, ParseMode: "HTML", ReplyMarkup: m.Keyboard,
	}, &sent)
	return sent.MessageID, err
}

// Photo re-sends an already uploaded photo by file id (or a public URL).
type Photo struct {
	ChatID   int64
	File     string
	Caption  string
	Keyboard *InlineKeyboard
}

func (t *Telegram) SendPhoto(ctx context.Context, p Photo) (int64, error) {
	var sent struct {
		MessageID int64 `json:"message_id"`
	}
	payload := map[string]any{
		"chat_id":    chatID(p.ChatID),
		"photo":      p.File,
		"caption":    p.Caption,
		"parse_mode": "HTML",
	}
	if p.Keyboard != nil {
		payload["reply_markup"] = p.Keyboard
	}
	err := t.call(ctx, t.Client, "sendPhoto", payload, &sent)
	return sent.MessageID, err
}

// EditMessageText replaces the text of a sent message and drops its keyboard
// unless a new one is given.
func (t *Telegram) EditMessageText(ctx context.Context, chat, messageID int64, text string, kb *InlineKeyboard) error {
	return t.call(ctx, t.Client, "editMessageText", map[string]any{
		"chat_id":      chatID(chat),
		"message_id":   messageID,
		"text":         text,
		"parse_mode":   "HTML",
		"reply_markup": orEmpty(kb),
	}, nil)
}

func (t *Telegram) EditMessageCaption(ctx context.Context, chat, messageID int64, caption string, kb *InlineKeyboard) error {
	return t.call(ctx, t.Client, "editMessageCaption", map[string]any{
		"chat_id":      chatID(chat),
		"message_id":   messageID,
		"caption":      caption,
		"parse_mode":   "HTML",
		"reply_markup": orEmpty(kb),
	}, nil)
}

// AnswerCallback acknowledges a button press; a non-empty text is shown as a toast.
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	return t.call(ctx, t.Client, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        alert,
	}, nil)
}

// BotUser is the result of getMe.
type BotUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (t *Telegram) GetMe(ctx context.Context) (BotUser, error) {
	var me BotUser
	err := t.call(ctx, t.Client, "getMe", struct{}{}, &me)
	return me, err
}

// SetWebhook registers url; an empty url removes the webhook so polling works.
func (t *Telegram) SetWebhook(ctx context.Context, hookURL, secret string) error {
	if hookURL == "" {
		return t.call(ctx, t.Client, "deleteWebhook", struct{}{}, nil)
	}
	return t.call(ctx, t.Client, "setWebhook", map[string]any{
		"url":             hookURL,
		"secret_token":    secret,
		"allowed_updates": []string{"message", "callback_query"},
	}, nil)
}

// SendWithRetry sends a message with exponential backoff retry. A 429 reply's
// retry_after wins over the computed backoff; other 4xx replies are final.
func (t *Telegram) SendWithRetry(ctx context.Context, m Message, maxRetries int) (int64, error) {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		id, err := t.SendMessage(ctx, m)
		if err == nil {
			return id, nil
		}
		lastErr = err
		backoff := time.Duration(1<<uint(i)) * time.Second
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			if apiErr.RetryAfter > 0 {
				backoff = time.Duration(apiErr.RetryAfter) * time.Second
			} else if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
				break
			}
		}
		if i == maxRetries {
			break
		}
		t.log.Warn("telegram send failed, retrying",
			zap.Int("attempt", i+1), zap.Int("max", maxRetries+1),
			zap.Duration("backoff", backoff), zap.Error(err))
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(backoff):
		}
	}
	metrics.NotifyFailuresTotal.Inc()
	return 0, fmt.Errorf("send to %d failed: %w", m.ChatID, lastErr)
}

func chatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// orEmpty makes edits remove the keyboard instead of leaving the old one.
func orEmpty(kb *InlineKeyboard) *InlineKeyboard {
	if kb == nil {
		return &InlineKeyboard{Rows: [][]Button{}}
	}
	return kb
}
