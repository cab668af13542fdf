package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TweetWatch/internal/domain"
)

type stubBackend struct {
	name   string
	tweets []domain.Tweet
	err    error
	calls  int
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Search(_ context.Context, _ Request) ([]domain.Tweet, error) {
	s.calls++
	return s.tweets, s.err
}

func TestSourceFallsBackToNextBackend(t *testing.T) {
	t.Parallel()

	api := &stubBackend{name: "api", err: errors.New("429 Too Many Requests")}
	html := &stubBackend{name: "html", tweets: []domain.Tweet{{ID: "1", Text: "hello"}}}

	reg := NewRegistry()
	reg.Register(api)
	reg.Register(html)

	src := NewSource(reg, []string{"api", "html"}, 0, nil)
	tweets, err := src.Search(context.Background(), "acct1", "")
	require.NoError(t, err)
	require.Len(t, tweets, 1)
	assert.Equal(t, 1, api.calls)
	assert.Equal(t, 1, html.calls)
}

func TestSourceReportsUnregisteredBackend(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubBackend{name: "html"})
	reg.Register(&stubBackend{name: "api"})

	_, err := NewSource(reg, []string{"grpc"}, 0, nil).Search(context.Background(), "acct1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search backend grpc is not registered (have: api, html)")
}

func TestSourceJoinsErrorsWhenAllBackendsFail(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubBackend{name: "api", err: errors.New("api down")})
	reg.Register(&stubBackend{name: "html", err: errors.New("html down")})

	_, err := NewSource(reg, []string{"api", "html"}, 0, nil).Search(context.Background(), "acct1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api down")
	assert.Contains(t, err.Error(), "html down")
}

func TestSourceDedupesAndLimits(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(&stubBackend{name: "api", tweets: []domain.Tweet{{ID: "1"}, {ID: "1"}, {ID: "2"}, {ID: "3"}}})

	tweets, err := NewSource(reg, []string{"api"}, 2, nil).Search(context.Background(), "acct1", "")
	require.NoError(t, err)
	require.Len(t, tweets, 2)
	assert.Equal(t, "1", tweets[0].ID)
	assert.Equal(t, "2", tweets[1].ID)
}

func TestSourceUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := NewSource(NewRegistry(), []string{"grpc"}, 0, nil).Search(context.Background(), "acct1", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}
