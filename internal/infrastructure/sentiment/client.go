package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// Client talks to an external ML service that scores tweet sentiment.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
	limiter  *rate.Limiter
}

var _ ports.SentimentScorer = (*Client)(nil)

// NewClient creates a reusable HTTP client. ratePerSecond <= 0 disables throttling.
func NewClient(endpoint, apiKey string, timeout time.Duration, ratePerSecond float64) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
		limiter:  newLimiter(ratePerSecond),
	}
}

func newLimiter(ratePerSecond float64) *rate.Limiter {
	if ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// Score sends the tweet text and returns the service score in [0, 1].
func (c *Client) Score(ctx context.Context, tweet domain.Tweet) (float64, error) {
	if c.endpoint == "" {
		return 0, fmt.Errorf("sentiment client misconfigured: missing endpoint")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limit: %w", err)
	}

	payload := map[string]any{
		"id":   tweet.ID,
		"text": tweet.Text,
	}

	var resp struct {
		Score *float64 `json:"score"`
	}
	if err := c.post(ctx, "/score", payload, &resp); err != nil {
		return 0, err
	}
	if resp.Score == nil {
		return 0, fmt.Errorf("response has no score")
	}

	return *resp.Score, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return fmt.Errorf("unexpected status %s, close body: %v", resp.Status, closeErr)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("decode response: %w", err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}
