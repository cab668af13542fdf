package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"TweetWatch/internal/ports"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	// maxMessageRunes is the Bot API limit for a sendMessage text.
	maxMessageRunes = 4096
)

// Notifier sends HTML digests to a Telegram chat via the Bot API.
type Notifier struct {
	baseURL  string
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. An empty baseURL
// targets api.telegram.org.
func NewNotifier(baseURL, botToken, chatID string) *Notifier {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Notifier{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID             string             `json:"chat_id"`
	Text               string             `json:"text"`
	ParseMode          string             `json:"parse_mode"`
	LinkPreviewOptions linkPreviewOptions `json:"link_preview_options"`
}

type linkPreviewOptions struct {
	IsDisabled bool `json:"is_disabled"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// PublishDigest posts an HTML digest, split into as many messages as the
// Bot API length limit requires.
func (n *Notifier) PublishDigest(ctx context.Context, digest string) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	parts := splitMessage(digest, maxMessageRunes)
	for i, part := range parts {
		if err := n.send(ctx, part); err != nil {
			return fmt.Errorf("send part %d/%d: %w", i+1, len(parts), err)
		}
	}
	return nil
}

func (n *Notifier) send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:             n.chatID,
		Text:               text,
		ParseMode:          "HTML",
		LinkPreviewOptions: linkPreviewOptions{IsDisabled: true},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var decoded apiResponse
	if jsonErr := json.Unmarshal(raw, &decoded); jsonErr != nil {
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram error: %s", resp.Status)
		}
		return fmt.Errorf("decode response: %w", jsonErr)
	}
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		if decoded.Description != "" {
			return fmt.Errorf("telegram error: %s: %s", resp.Status, decoded.Description)
		}
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

// splitMessage cuts text into parts of at most limit runes, preferring
// blank-line boundaries, then line breaks.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	for utf8.RuneCountInString(text) > limit {
		head := truncateRunes(text, limit)
		cut := strings.LastIndex(head, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(head, "\n")
		}
		if cut <= 0 {
			cut = len(head)
		}
		parts = append(parts, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
