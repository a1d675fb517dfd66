package delivery

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

	apperrors "github.com/insighthub/server/pkg/errors"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramSink delivers chunks through the Telegram Bot API sendMessage
// endpoint using Markdown rendering with link previews disabled.
type TelegramSink struct {
	token   string
	baseURL string
	client  *http.Client
}

// TelegramOption customises a TelegramSink.
type TelegramOption func(*TelegramSink)

// WithTelegramBaseURL overrides the API endpoint, mainly for tests.
func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(s *TelegramSink) {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTelegramHTTPClient overrides the HTTP client.
func WithTelegramHTTPClient(client *http.Client) TelegramOption {
	return func(s *TelegramSink) {
		s.client = client
	}
}

// NewTelegramSink constructs a TelegramSink for the given bot token.
func NewTelegramSink(token string, opts ...TelegramOption) (*TelegramSink, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: bot token is required")
	}

	sink := &TelegramSink{
		token:   token,
		baseURL: defaultTelegramBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(sink)
	}
	return sink, nil
}

// Name implements Sink.
func (s *TelegramSink) Name() string { return "telegram" }

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send implements Sink. The destination is a Telegram chat id.
func (s *TelegramSink) Send(ctx context.Context, destination, text string) error {
	if strings.TrimSpace(destination) == "" {
		return apperrors.NewBadRequest("telegram chat id is required")
	}
	if len(text) > MaxMessageLength {
		return apperrors.NewBadRequest("telegram message exceeds the per-send limit")
	}

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                destination,
		Text:                  text,
		ParseMode:             "Markdown",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("telegram: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.ErrDeliveryFailed.WithInternal(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apperrors.ErrDeliveryFailed.WithInternal(err)
	}

	var decoded sendMessageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return apperrors.ErrDeliveryFailed.WithInternal(
			fmt.Errorf("unexpected response (status %d)", resp.StatusCode))
	}
	if !decoded.OK {
		return apperrors.ErrDeliveryFailed.WithInternal(
			fmt.Errorf("telegram api error %d: %s", decoded.ErrorCode, decoded.Description))
	}
	return nil
}
