package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// Source implements ports.TweetSearcher over an ordered list of registered backends.
// The first backend that answers wins; later ones are fallbacks.
type Source struct {
	registry *Registry
	order    []string
	limit    int
	logger   *slog.Logger
}

var _ ports.TweetSearcher = (*Source)(nil)

// NewSource wires the registry with the configured backend order.
func NewSource(reg *Registry, order []string, limit int, log *slog.Logger) *Source {
	return &Source{
		registry: reg,
		order:    order,
		limit:    limit,
		logger:   log,
	}
}

// Search queries backends in order and returns de-duplicated tweets in backend order.
func (s *Source) Search(ctx context.Context, account, query string) ([]domain.Tweet, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("search registry is not configured")
	}
	if len(s.order) == 0 {
		return nil, fmt.Errorf("no search backends configured")
	}

	req := Request{Account: account, Query: query, Limit: s.limit}

	var errs []error
	for _, name := range s.order {
		backend, err := s.registry.Resolve(name)
		if err != nil {
			return nil, err
		}

		s.debug("search", "backend", name, "account", account, "query", query)
		tweets, err := backend.Search(ctx, req)
		if err != nil {
			errs = append(errs, fmt.Errorf("backend %s: %w", name, err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		result := dedupe(tweets, s.limit)
		s.debug("search done", "backend", name, "tweets", len(result))
		return result, nil
	}

	return nil, errors.Join(errs...)
}

func dedupe(tweets []domain.Tweet, limit int) []domain.Tweet {
	seen := map[string]struct{}{}
	result := make([]domain.Tweet, 0, len(tweets))
	for _, tweet := range tweets {
		if _, ok := seen[tweet.ID]; ok {
			continue
		}
		seen[tweet.ID] = struct{}{}
		result = append(result, tweet)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

func (s *Source) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
