package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xavierca1/lead-dispatch/internal/infra/http/handlers"
)

type adminClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAdminClient(baseURL, token string, timeout time.Duration) *adminClient {
	return &adminClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *adminClient) status(ctx context.Context, details bool) (*handlers.QueueStatusResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/admin/queue?details=%t", c.baseURL, details), nil)
	if err != nil {
		return nil, err
	}

	var out handlers.QueueStatusResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) action(ctx context.Context, action, leadID string) (*handlers.QueueActionResponse, error) {
	body, err := json.Marshal(handlers.QueueActionRequest{Action: action, LeadID: leadID})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/queue", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out handlers.QueueActionResponse
	if err := c.do(req, &out); err != nil {
		if out.Message != "" {
			return &out, fmt.Errorf("%s: %w", out.Message, err)
		}
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) do(req *http.Request, out interface{}) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("admin API returned %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return fmt.Errorf("invalid response: %w", decodeErr)
	}
	return nil
}
