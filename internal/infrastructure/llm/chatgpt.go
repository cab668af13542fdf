package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"TweetWatch/internal/config"
	"TweetWatch/internal/domain"
	"TweetWatch/internal/ports"
)

// ChatGPTScorer implements ports.SentimentScorer backed by OpenAI-compatible APIs.
type ChatGPTScorer struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	httpClient   *http.Client
}

var _ ports.SentimentScorer = (*ChatGPTScorer)(nil)

// NewChatGPTScorer builds a scorer from configuration.
func NewChatGPTScorer(cfg config.ChatGPTConfig) *ChatGPTScorer {
	return &ChatGPTScorer{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		httpClient: &http.Client{
			Timeout: cfg.Timeout.Duration,
		},
	}
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Score asks the model to rate the tweet and parses the numeric reply.
func (c *ChatGPTScorer) Score(ctx context.Context, tweet domain.Tweet) (float64, error) {
	if c == nil {
		return 0, fmt.Errorf("chatgpt scorer is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return 0, fmt.Errorf("chatgpt scorer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":       c.model,
		"temperature": 0,
		"messages": []map[string]string{
			{"role": "system", "content": safePrompt(c.systemPrompt)},
			{"role": "user", "content": tweet.Text},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("score tweet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return 0, fmt.Errorf("chatgpt error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var completion completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return 0, fmt.Errorf("decode chatgpt response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return 0, fmt.Errorf("chatgpt returned no choices")
	}

	return parseScore(completion.Choices[0].Message.Content)
}

func parseScore(content string) (float64, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimSuffix(content, ".")
	score, err := strconv.ParseFloat(content, 64)
	if err != nil {
		return 0, fmt.Errorf("chatgpt reply %q is not a number", content)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, fmt.Errorf("chatgpt reply %q is not a finite number", content)
	}
	return score, nil
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "Rate the sentiment of the tweet from 0 (negative) to 1 (positive). Reply with the number only."
	}
	return prompt
}
