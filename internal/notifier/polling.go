package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Update is the subset of a Telegram update the bot reacts to.
type Update struct {
	UpdateID int64          `json:"update_id"`
	Message  *IncomingMsg   `json:"message,omitempty"`
	Callback *CallbackQuery `json:"callback_query,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type PhotoSize struct {
	FileID string `json:"file_id"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type WebAppData struct {
	Data string `json:"data"`
}

type IncomingMsg struct {
	MessageID  int64       `json:"message_id"`
	From       *User       `json:"from,omitempty"`
	Chat       Chat        `json:"chat"`
	Text       string      `json:"text,omitempty"`
	Caption    string      `json:"caption,omitempty"`
	Photo      []PhotoSize `json:"photo,omitempty"`
	WebAppData *WebAppData `json:"web_app_data,omitempty"`
}

// LargestPhoto returns the file id of the biggest photo size, or "".
func (m *IncomingMsg) LargestPhoto() string {
	if len(m.Photo) == 0 {
		return ""
	}
	best := m.Photo[0]
	for _, p := range m.Photo[1:] {
		if p.Width*p.Height > best.Width*best.Height {
			best = p
		}
	}
	return best.FileID
}

type CallbackQuery struct {
	ID      string       `json:"id"`
	From    User         `json:"from"`
	Message *IncomingMsg `json:"message,omitempty"`
	Data    string       `json:"data"`
}

// Sender returns the user that produced the update, or nil.
func (u Update) Sender() *User {
	switch {
	case u.Callback != nil:
		return &u.Callback.From
	case u.Message != nil:
		return u.Message.From
	}
	return nil
}

// Kind labels the update for logs and metrics.
func (u Update) Kind() string {
	switch {
	case u.Callback != nil:
		return "callback"
	case u.Message == nil:
		return "other"
	case u.Message.WebAppData != nil:
		return "web_app"
	case len(u.Message.Photo) > 0:
		return "photo"
	case u.Message.Text != "":
		return "text"
	}
	return "other"
}

// DecodeUpdate parses a webhook request body.
func DecodeUpdate(r io.Reader) (Update, error) {
	var u Update
	if err := json.NewDecoder(r).Decode(&u); err != nil {
		return u, fmt.Errorf("decode update: %w", err)
	}
	return u, nil
}

// UpdateHandler receives every update in arrival order.
type UpdateHandler func(Update)

// StartPolling begins long-polling for updates. Blocks until ctx is cancelled.
func (t *Telegram) StartPolling(ctx context.Context, handle UpdateHandler) {
	var offset int64
	client := &http.Client{Timeout: 35 * time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			t.log.Info("telegram polling stopped")
			return
		default:
		}

		var updates []Update
		err := t.call(ctx, client, "getUpdates", map[string]any{
			"offset":          offset,
			"timeout":         30,
			"allowed_updates": []string{"message", "callback_query"},
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn("polling request failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			handle(u)
		}
	}
}
