package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
)

// Client is the HTTP client for the relay's admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Ledger returns the live forwarded entries, oldest first
func (c *Client) Ledger(ctx context.Context) ([]domain.ForwardedEntry, error) {
	var result struct {
		Entries []domain.ForwardedEntry `json:"entries"`
	}
	if err := c.get(ctx, "/api/ledger", &result); err != nil {
		return nil, err
	}
	return result.Entries, nil
}

// Archive returns the most recent archived events
func (c *Client) Archive(ctx context.Context, limit int) ([]*repo.ArchivedEvent, error) {
	path := "/api/archive"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}

	var result struct {
		Events []*repo.ArchivedEvent `json:"events"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Events, nil
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay API unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("relay API %s: %s", path, apiErr.Message)
		}
		return fmt.Errorf("relay API %s: status %d", path, resp.StatusCode)
	}

	return json.Unmarshal(body, result)
}
