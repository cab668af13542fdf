package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/usecase"
)

type fakeWatches struct {
	mu          sync.Mutex
	started     map[string]bool
	queries     map[string]domain.WatchQuery
	batches     map[string]domain.EnrichedBatch
	reminders   map[string]domain.Reminder
	snapshotErr error
}

func newFakeWatches() *fakeWatches {
	return &fakeWatches{
		started:   map[string]bool{},
		queries:   map[string]domain.WatchQuery{},
		batches:   map[string]domain.EnrichedBatch{},
		reminders: map[string]domain.Reminder{},
	}
}

func (f *fakeWatches) Start(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.started[id] {
		return usecase.ErrAlreadyStarted
	}
	f.started[id] = true
	return nil
}

func (f *fakeWatches) Configure(_ context.Context, id string, q domain.WatchQuery) error {
	if q.Account == "" {
		return usecase.ErrInvalidQuery
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[id] = q
	return nil
}

func (f *fakeWatches) Snapshot(_ context.Context, id string) (domain.EnrichedBatch, bool, error) {
	if f.snapshotErr != nil {
		return domain.EnrichedBatch{}, false, f.snapshotErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.batches[id]
	return b, ok, nil
}

func (f *fakeWatches) Reminder(_ context.Context, id string) (domain.Reminder, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reminders[id]
	return r, ok, nil
}

func newTestServer(t *testing.T, watches Watches) *httptest.Server {
	t.Helper()
	srv := New(":0", watches, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newFakeWatches())
	resp := do(t, http.MethodGet, ts.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartTwiceConflicts(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, newFakeWatches())

	first := do(t, http.MethodPost, ts.URL+"/api/watches/acct1/start", "")
	assert.Equal(t, http.StatusAccepted, first.StatusCode)

	second := do(t, http.MethodPost, ts.URL+"/api/watches/acct1/start", "")
	assert.Equal(t, http.StatusConflict, second.StatusCode)

	var body startResponse
	require.NoError(t, json.NewDecoder(second.Body).Decode(&body))
	assert.Equal(t, "already_started", body.Status)
}

func TestConfigure(t *testing.T) {
	t.Parallel()

	watches := newFakeWatches()
	ts := newTestServer(t, watches)

	resp := do(t, http.MethodPut, ts.URL+"/api/watches/acct1/query", `{"account":"golang","query":"generics"}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	watches.mu.Lock()
	assert.Equal(t, domain.WatchQuery{Account: "golang", Query: "generics"}, watches.queries["acct1"])
	watches.mu.Unlock()

	resp = do(t, http.MethodPut, ts.URL+"/api/watches/acct1/query", `{"query":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPut, ts.URL+"/api/watches/acct1/query", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRejectsInvalidEntityID(t *testing.T) {
	t.Parallel()

	watches := newFakeWatches()
	ts := newTestServer(t, watches)

	for _, path := range []string{"/api/watches/a%2Fb/start", "/api/watches/a%25b/start", "/api/watches/a%20b/start"} {
		resp := do(t, http.MethodPost, ts.URL+path, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)

		var body errorResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Contains(t, body.Error, "invalid entity id")
	}

	watches.mu.Lock()
	assert.Empty(t, watches.started)
	watches.mu.Unlock()

	resp := do(t, http.MethodPost, ts.URL+"/api/watches/team.news-2/start", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestStateNotFoundThenFound(t *testing.T) {
	t.Parallel()

	watches := newFakeWatches()
	ts := newTestServer(t, watches)

	resp := do(t, http.MethodGet, ts.URL+"/api/watches/acct1/state", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	watches.mu.Lock()
	watches.batches["acct1"] = domain.EnrichedBatch{
		EntityID: "acct1",
		Tweets: []domain.EnrichedTweet{
			{Tweet: domain.Tweet{ID: "1", Text: "hello"}, Sentiment: 0.83, Scored: true},
		},
	}
	watches.mu.Unlock()

	resp = do(t, http.MethodGet, ts.URL+"/api/watches/acct1/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var batch domain.EnrichedBatch
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&batch))
	require.Len(t, batch.Tweets, 1)
	assert.InDelta(t, 0.83, batch.Tweets[0].Sentiment, 1e-9)
}

func TestStateStoreFailure(t *testing.T) {
	t.Parallel()

	watches := newFakeWatches()
	watches.snapshotErr = errors.New("disk on fire")
	ts := newTestServer(t, watches)

	resp := do(t, http.MethodGet, ts.URL+"/api/watches/acct1/state", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestReminderView(t *testing.T) {
	t.Parallel()

	watches := newFakeWatches()
	ts := newTestServer(t, watches)

	resp := do(t, http.MethodGet, ts.URL+"/api/watches/acct1/reminder", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	watches.mu.Lock()
	watches.reminders["acct1"] = domain.Reminder{
		EntityID:     "acct1",
		Name:         usecase.ReminderName,
		DueTime:      time.Minute,
		Period:       10 * time.Minute,
		RegisteredAt: time.Now().Add(-time.Hour),
	}
	watches.mu.Unlock()

	resp = do(t, http.MethodGet, ts.URL+"/api/watches/acct1/reminder", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view ReminderView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "TweetReminder", view.Name)
	assert.Equal(t, "1m0s", view.DueTime)
	assert.Equal(t, "10m0s", view.Period)
	assert.True(t, view.NextFire.After(time.Now()))
}
