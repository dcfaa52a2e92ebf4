// Package matcher is the HTTP client for the external competitor-matching
// service (GET / for liveness, POST /api/find-competitor for matching).
package matcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ErrServiceFailure is returned when the service answers with success=false.
var ErrServiceFailure = errors.New("matching service reported failure")

// Client talks to the matching service. The underlying http.Client has no
// timeout: liveness checks are bounded by the caller's context and match
// requests are allowed to take as long as the service needs.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the service rooted at baseURL, e.g.
// "http://localhost:5000".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping issues GET / and reports whether the service answered with 2xx.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("matcher: ping: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("matcher: ping: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return fmt.Errorf("matcher: ping: %w", err)
	}
	return nil
}

// FindCompetitor asks the service for the listing that best matches the
// given keyword and description. A nil match with a nil error means the
// service found nothing.
func (c *Client) FindCompetitor(ctx context.Context, keyword, description string) (*domain.MatchResult, error) {
	payload, err := json.Marshal(findRequest{Keyword: keyword, Description: description})
	if err != nil {
		return nil, fmt.Errorf("matcher: marshal request: %w", err)
	}

	body, err := c.doPost(ctx, "/api/find-competitor", payload)
	if err != nil {
		return nil, fmt.Errorf("matcher: find competitor: %w", err)
	}

	var out findResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("matcher: decode response: %w", err)
	}
	if out.Success == nil {
		return nil, fmt.Errorf("matcher: decode response: missing success field")
	}
	if !*out.Success {
		if out.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrServiceFailure, out.Error)
		}
		return nil, ErrServiceFailure
	}
	if out.BestMatch == nil {
		return nil, nil
	}

	m := out.BestMatch.ToDomainMatch()
	return &m, nil
}

func (c *Client) doPost(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkHTTPStatus maps non-2xx responses to errors, wrapping the matching
// domain sentinel where one exists.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
