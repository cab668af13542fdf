package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"TweetWatch/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSearcher struct {
	tweets []domain.Tweet
	err    error
	calls  int
	last   [2]string
}

func (f *fakeSearcher) Search(_ context.Context, account, query string) ([]domain.Tweet, error) {
	f.calls++
	f.last = [2]string{account, query}
	if f.err != nil {
		return nil, f.err
	}
	return f.tweets, nil
}

// fakeScorer returns scores by tweet id; ids listed in fail return an error.
type fakeScorer struct {
	scores map[string]float64
	fail   map[string]bool
}

func (f *fakeScorer) Score(_ context.Context, tweet domain.Tweet) (float64, error) {
	if f.fail[tweet.ID] {
		return 0, errors.New("sentiment service returned 503 Service Unavailable")
	}
	return f.scores[tweet.ID], nil
}

type fakeReminders struct {
	mu         sync.Mutex
	registered map[string]domain.Reminder
	registers  int
	lookupErr  error
}

func newFakeReminders() *fakeReminders {
	return &fakeReminders{registered: map[string]domain.Reminder{}}
}

func (f *fakeReminders) Lookup(_ context.Context, name string) (domain.Reminder, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return domain.Reminder{}, false, f.lookupErr
	}
	r, ok := f.registered[name]
	return r, ok, nil
}

func (f *fakeReminders) Register(_ context.Context, name string, payload []byte, dueTime, period time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registers++
	f.registered[name] = domain.Reminder{Name: name, Payload: payload, DueTime: dueTime, Period: period}
	return nil
}

type fakeNotifier struct {
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.digests = append(f.digests, digest)
	return f.err
}
