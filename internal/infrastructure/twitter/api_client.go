package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/search"
)

const (
	defaultAPIEndpoint = "https://api.twitter.com"
	minAPIResults      = 10
	maxAPIResults      = 100
)

// APIClient queries the v2 recent search endpoint with an app bearer token.
type APIClient struct {
	endpoint    string
	bearerToken string
	client      *http.Client
}

var _ search.Backend = (*APIClient)(nil)

// NewAPIClient builds a client; an empty endpoint defaults to api.twitter.com.
func NewAPIClient(endpoint, bearerToken string, client *http.Client) *APIClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if endpoint == "" {
		endpoint = defaultAPIEndpoint
	}
	return &APIClient{
		endpoint:    strings.TrimSuffix(endpoint, "/"),
		bearerToken: bearerToken,
		client:      client,
	}
}

// Name identifies the backend inside the registry.
func (c *APIClient) Name() string {
	return "api"
}

type recentSearchResponse struct {
	Data []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

// Search returns recent tweets authored by req.Account that match req.Query.
func (c *APIClient) Search(ctx context.Context, req search.Request) ([]domain.Tweet, error) {
	if c.bearerToken == "" {
		return nil, fmt.Errorf("twitter api client misconfigured: missing bearer token")
	}
	if req.Account == "" {
		return nil, fmt.Errorf("search requires an account")
	}

	endpoint, err := buildSearchURL(c.endpoint, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.bearerToken)
	httpReq.Header.Set("User-Agent", "TweetWatch/1.0")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("twitter error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var body recentSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(body.Data) == 0 && len(body.Errors) > 0 {
		return nil, fmt.Errorf("twitter error: %s: %s", body.Errors[0].Title, body.Errors[0].Detail)
	}

	tweets := make([]domain.Tweet, 0, len(body.Data))
	for _, item := range body.Data {
		tweets = append(tweets, domain.Tweet{ID: item.ID, Text: item.Text})
	}
	return tweets, nil
}

func buildSearchURL(base string, req search.Request) (string, error) {
	parsed, err := url.Parse(base + "/2/tweets/search/recent")
	if err != nil {
		return "", fmt.Errorf("invalid twitter endpoint %s: %w", base, err)
	}

	q := "from:" + strings.TrimPrefix(req.Account, "@")
	if query := strings.TrimSpace(req.Query); query != "" {
		q += " " + query
	}

	limit := req.Limit
	if limit < minAPIResults {
		limit = minAPIResults
	}
	if limit > maxAPIResults {
		limit = maxAPIResults
	}

	values := parsed.Query()
	values.Set("query", q)
	values.Set("max_results", strconv.Itoa(limit))
	parsed.RawQuery = values.Encode()
	return parsed.String(), nil
}
