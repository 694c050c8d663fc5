package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultAPIBase = "https://api.telegram.org"

// Callback data prefixes carried on the offer message buttons. The
// webhook handler parses these back into booking responses.
const (
	CallbackAccept  = "accept_order"
	CallbackDecline = "decline_order"
)

// TelegramClient talks to the Telegram Bot API over plain HTTP.
type TelegramClient struct {
	token   string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

type Option func(*TelegramClient)

// WithBaseURL points the client at a different API host. Used in tests.
func WithBaseURL(url string) Option {
	return func(c *TelegramClient) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *TelegramClient) { c.client = hc }
}

func NewTelegramClient(token string, log *zap.Logger, opts ...Option) *TelegramClient {
	c := &TelegramClient{
		token:   token,
		baseURL: defaultAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type inlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboardMarkup struct {
	InlineKeyboard [][]inlineKeyboardButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string                `json:"chat_id"`
	Text        string                `json:"text"`
	ReplyMarkup *inlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// SendOffer delivers the offer summary with accept and decline buttons
// whose callback data carries the booking id.
func (c *TelegramClient) SendOffer(ctx context.Context, chatID, summary, bookingID string) error {
	req := sendMessageRequest{
		ChatID: chatID,
		Text:   summary,
		ReplyMarkup: &inlineKeyboardMarkup{
			InlineKeyboard: [][]inlineKeyboardButton{{
				{Text: "Accept", CallbackData: CallbackAccept + ":" + bookingID},
				{Text: "Decline", CallbackData: CallbackDecline + ":" + bookingID},
			}},
		},
	}
	return c.call(ctx, "sendMessage", req)
}

func (c *TelegramClient) SendSimpleMessage(ctx context.Context, chatID, text string) error {
	return c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text})
}

type answerCallbackRequest struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// AnswerCallbackQuery acknowledges a button press so the client stops
// showing a spinner. The text appears as a toast on the device.
func (c *TelegramClient) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	})
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramClient) call(ctx context.Context, method string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !parsed.OK {
		return fmt.Errorf("telegram %s failed: %s", method, parsed.Description)
	}

	c.log.Debug("telegram call ok", zap.String("method", method))
	return nil
}

// Update is the subset of the Bot API webhook payload the marketplace
// cares about: callback button presses on offer messages.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type CallbackQuery struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// ParseCallback splits callback data into its action and booking id.
// Returns ok=false for data this bot did not produce.
func ParseCallback(data string) (action, bookingID string, ok bool) {
	action, bookingID, found := strings.Cut(data, ":")
	if !found || bookingID == "" {
		return "", "", false
	}
	if action != CallbackAccept && action != CallbackDecline {
		return "", "", false
	}
	return action, bookingID, true
}
