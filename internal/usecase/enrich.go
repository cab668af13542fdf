package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// ErrFetchFailed marks a tick aborted because tweets could not be fetched.
var ErrFetchFailed = errors.New("fetch tweets failed")

// EnricherDeps wires the driven adapters into the enrichment pipeline.
type EnricherDeps struct {
	Searcher      ports.TweetSearcher
	Scorer        ports.SentimentScorer
	SearchTimeout time.Duration
	ScoreTimeout  time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Enricher fetches tweets and scores each of them in a single best-effort pass.
type Enricher struct {
	searcher      ports.TweetSearcher
	scorer        ports.SentimentScorer
	searchTimeout time.Duration
	scoreTimeout  time.Duration
	logger        *slog.Logger
	now           func() time.Time
}

// NewEnricher constructs the pipeline; it is shared by every watch.
func NewEnricher(deps EnricherDeps) *Enricher {
	e := &Enricher{
		searcher:      deps.Searcher,
		scorer:        deps.Scorer,
		searchTimeout: deps.SearchTimeout,
		scoreTimeout:  deps.ScoreTimeout,
		logger:        deps.Logger,
		now:           deps.Now,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Enrich searches tweets of account matching query and attaches a sentiment score to
// each. A failed score degrades that tweet to domain.NeutralSentiment; a failed search
// fails the whole batch.
func (e *Enricher) Enrich(ctx context.Context, account, query string) (domain.EnrichedBatch, error) {
	if e.searcher == nil {
		return domain.EnrichedBatch{}, fmt.Errorf("%w: searcher is not configured", ErrFetchFailed)
	}

	tweets, err := e.search(ctx, account, query)
	if err != nil {
		return domain.EnrichedBatch{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	fetchedAt := e.now().UTC()
	batch := domain.EnrichedBatch{
		BatchID:   uuid.NewString(),
		Account:   account,
		Query:     query,
		FetchedAt: fetchedAt,
		Tweets:    make([]domain.EnrichedTweet, 0, len(tweets)),
	}

	for _, tweet := range tweets {
		enriched := domain.EnrichedTweet{
			Tweet:     tweet,
			Sentiment: domain.NeutralSentiment,
			FetchedAt: fetchedAt,
		}

		score, err := e.score(ctx, tweet)
		if err != nil {
			e.logger.Warn("sentiment unavailable, using neutral score",
				"account", account,
				"tweet", tweet.ID,
				"error", err)
		} else {
			enriched.Sentiment = score
			enriched.Scored = true
		}

		batch.Tweets = append(batch.Tweets, enriched)
	}

	e.logger.Debug("batch enriched",
		"account", account,
		"tweets", len(batch.Tweets),
		"degraded", batch.Degraded())
	return batch, nil
}

func (e *Enricher) search(ctx context.Context, account, query string) ([]domain.Tweet, error) {
	if e.searchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.searchTimeout)
		defer cancel()
	}
	return e.searcher.Search(ctx, account, query)
}

func (e *Enricher) score(ctx context.Context, tweet domain.Tweet) (float64, error) {
	if e.scorer == nil {
		return 0, fmt.Errorf("scorer is not configured")
	}
	if e.scoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.scoreTimeout)
		defer cancel()
	}

	score, err := e.scorer.Score(ctx, tweet)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return 0, fmt.Errorf("score %.3f out of range [0, 1]", score)
	}
	return score, nil
}
