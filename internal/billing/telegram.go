package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var ErrTelegramAPI = errors.New("telegram api error")

// LabeledPrice is one line of a Telegram invoice.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// InvoiceRequest is the body of the Bot API createInvoiceLink method.
type InvoiceRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Payload     string         `json:"payload"`
	Currency    string         `json:"currency"`
	Prices      []LabeledPrice `json:"prices"`
}

// sendInvoiceRequest is the body of sendInvoice. Stars invoices carry an
// empty provider token.
type sendInvoiceRequest struct {
	ChatID int64 `json:"chat_id"`
	InvoiceRequest
	ProviderToken string `json:"provider_token"`
}

// InlineButton is one button of an inline keyboard. Exactly one of WebApp
// and CallbackData is set.
type InlineButton struct {
	Text         string      `json:"text"`
	WebApp       *WebAppInfo `json:"web_app,omitempty"`
	CallbackData string      `json:"callback_data,omitempty"`
}

type WebAppInfo struct {
	URL string `json:"url"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]InlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      int64           `json:"chat_id"`
	Text        string          `json:"text"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

type callbackAnswer struct {
	CallbackQueryID string `json:"callback_query_id"`
}

type preCheckoutAnswer struct {
	PreCheckoutQueryID string `json:"pre_checkout_query_id"`
	OK                 bool   `json:"ok"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// BotClient talks to the Telegram Bot API.
type BotClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewBotClient(baseURL, token string) *BotClient {
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &BotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateInvoiceLink returns the t.me link that opens the invoice.
func (c *BotClient) CreateInvoiceLink(ctx context.Context, inv InvoiceRequest) (string, error) {
	result, err := c.call(ctx, "createInvoiceLink", inv)
	if err != nil {
		return "", err
	}
	link := result.String()
	if link == "" {
		return "", fmt.Errorf("%w: empty invoice link", ErrTelegramAPI)
	}
	return link, nil
}

// AnswerPreCheckoutQuery confirms or declines a checkout. Telegram drops the
// payment unless this is answered within ten seconds.
func (c *BotClient) AnswerPreCheckoutQuery(ctx context.Context, queryID string, ok bool, errorMessage string) error {
	_, err := c.call(ctx, "answerPreCheckoutQuery", preCheckoutAnswer{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errorMessage,
	})
	return err
}

// SendMessage posts text to a chat, with an inline keyboard when rows is
// not empty.
func (c *BotClient) SendMessage(ctx context.Context, chatID int64, text string, rows ...[]InlineButton) error {
	req := sendMessageRequest{ChatID: chatID, Text: text}
	if len(rows) > 0 {
		req.ReplyMarkup = &inlineKeyboard{InlineKeyboard: rows}
	}
	_, err := c.call(ctx, "sendMessage", req)
	return err
}

// SendInvoice posts an invoice message to a chat.
func (c *BotClient) SendInvoice(ctx context.Context, chatID int64, inv InvoiceRequest) error {
	_, err := c.call(ctx, "sendInvoice", sendInvoiceRequest{ChatID: chatID, InvoiceRequest: inv})
	return err
}

// AnswerCallbackQuery stops the client's progress indicator on a button.
func (c *BotClient) AnswerCallbackQuery(ctx context.Context, queryID string) error {
	_, err := c.call(ctx, "answerCallbackQuery", callbackAnswer{CallbackQueryID: queryID})
	return err
}

// call posts a JSON body to a Bot API method and returns its result field.
func (c *BotClient) call(ctx context.Context, method string, payload any) (gjson.Result, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bot"+c.token+"/"+method, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%s: %w", method, err)
	}

	parsed := gjson.ParseBytes(raw)
	if !parsed.Get("ok").Bool() {
		desc := parsed.Get("description").String()
		if desc == "" {
			desc = resp.Status
		}
		return gjson.Result{}, fmt.Errorf("%w: %s: %s", ErrTelegramAPI, method, desc)
	}
	return parsed.Get("result"), nil
}
