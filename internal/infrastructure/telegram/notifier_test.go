package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var msg sendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		assert.Equal(t, "42", msg.ChatID)
		assert.Equal(t, "<b>@elon_musk</b>\n\n- see my_link", msg.Text)
		assert.Equal(t, "HTML", msg.ParseMode)
		assert.True(t, msg.LinkPreviewOptions.IsDisabled)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer server.Close()

	err := NewNotifier(server.URL, "TOKEN", "42").PublishDigest(context.Background(), "<b>@elon_musk</b>\n\n- see my_link")
	require.NoError(t, err)
}

func TestPublishDigestReportsAPIDescription(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: can't parse entities"}`))
	}))
	defer server.Close()

	err := NewNotifier(server.URL, "TOKEN", "42").PublishDigest(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "can't parse entities")
}

func TestPublishDigestNon200(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	err := NewNotifier(server.URL, "TOKEN", "42").PublishDigest(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestPublishDigestSplitsLongDigest(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg sendMessageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		mu.Lock()
		texts = append(texts, msg.Text)
		mu.Unlock()
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	block := "- " + strings.Repeat("é", 1500) + "\nSentiment: 0.50"
	digest := strings.Join([]string{block, block, block}, "\n\n")

	require.NoError(t, NewNotifier(server.URL, "TOKEN", "42").PublishDigest(context.Background(), digest))
	require.Len(t, texts, 2)
	assert.Equal(t, block+"\n\n"+block, texts[0])
	assert.Equal(t, block, texts[1])
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	err := NewNotifier("", "", "").PublishDigest(context.Background(), "x")
	require.Error(t, err)
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	assert.Nil(t, splitMessage("  ", 10))
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))
	assert.Equal(t, []string{"aaaa", "bbbb"}, splitMessage("aaaa\nbbbb", 6))

	parts := splitMessage(strings.Repeat("ж", 25), 10)
	require.Len(t, parts, 3)
	for _, p := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(p), 10)
	}
}
