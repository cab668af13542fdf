package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/server"
	"TweetWatch/internal/usecase"
)

// daemonClient calls the HTTP surface of a running daemon.
type daemonClient struct {
	base string
	http *http.Client
}

func newDaemonClient(base string) *daemonClient {
	return &daemonClient{
		base: strings.TrimSuffix(base, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *daemonClient) start(ctx context.Context, id string) error {
	resp, err := c.do(ctx, http.MethodPost, watchPath(id, "start"), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("watch %s: %w", id, usecase.ErrAlreadyStarted)
	default:
		return responseError(resp)
	}
}

func (c *daemonClient) configure(ctx context.Context, id string, q domain.WatchQuery) error {
	body, err := json.Marshal(map[string]string{"account": q.Account, "query": q.Query})
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPut, watchPath(id, "query"), body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return responseError(resp)
	}
	return nil
}

func (c *daemonClient) state(ctx context.Context, id string) (domain.EnrichedBatch, error) {
	var batch domain.EnrichedBatch
	err := c.getJSON(ctx, watchPath(id, "state"), &batch)
	return batch, err
}

func (c *daemonClient) reminder(ctx context.Context, id string) (server.ReminderView, error) {
	var view server.ReminderView
	err := c.getJSON(ctx, watchPath(id, "reminder"), &view)
	return view, err
}

func (c *daemonClient) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *daemonClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("daemon unreachable at %s: %w", c.base, err)
	}
	return resp, nil
}

func watchPath(id, action string) string {
	return "/api/watches/" + id + "/" + action
}

func responseError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %s: %s", resp.Status, payload.Error)
	}
	return fmt.Errorf("daemon returned %s", resp.Status)
}
