package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/search"
)

var statusExpr = regexp.MustCompile(`/status/(\d+)`)

// HTMLScanner scrapes the search page of a Nitter-compatible frontend.
type HTMLScanner struct {
	baseURL string
	client  *http.Client
}

var _ search.Backend = (*HTMLScanner)(nil)

// NewHTMLScanner wires an HTTP client against the frontend at baseURL.
func NewHTMLScanner(baseURL string, client *http.Client) *HTMLScanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTMLScanner{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

// Name identifies the backend inside the registry.
func (h *HTMLScanner) Name() string {
	return "html"
}

// Search fetches the account's search page and extracts timeline items.
func (h *HTMLScanner) Search(ctx context.Context, req search.Request) ([]domain.Tweet, error) {
	if h.baseURL == "" {
		return nil, fmt.Errorf("html scanner misconfigured: missing base url")
	}
	if req.Account == "" {
		return nil, fmt.Errorf("search requires an account")
	}

	pageURL, err := buildPageURL(h.baseURL, req)
	if err != nil {
		return nil, err
	}

	doc, err := h.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", req.Account, err)
	}

	return extractTweets(doc), nil
}

func (h *HTMLScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "TweetWatch/1.0")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("frontend returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func extractTweets(doc *goquery.Document) []domain.Tweet {
	var tweets []domain.Tweet
	doc.Find(".timeline-item").Each(func(_ int, item *goquery.Selection) {
		tweet, ok := parseItem(item)
		if ok {
			tweets = append(tweets, tweet)
		}
	})
	return tweets
}

func parseItem(item *goquery.Selection) (domain.Tweet, bool) {
	href, _ := item.Find("a.tweet-link").First().Attr("href")
	match := statusExpr.FindStringSubmatch(href)
	if match == nil {
		return domain.Tweet{}, false
	}

	text := strings.Join(strings.Fields(item.Find(".tweet-content").First().Text()), " ")
	if text == "" {
		return domain.Tweet{}, false
	}

	return domain.Tweet{ID: match[1], Text: text}, true
}

func buildPageURL(base string, req search.Request) (string, error) {
	account := url.PathEscape(strings.TrimPrefix(req.Account, "@"))
	parsed, err := url.Parse(base + "/" + account + "/search")
	if err != nil {
		return "", fmt.Errorf("invalid frontend url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("f", "tweets")
	query.Set("q", strings.TrimSpace(req.Query))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
