package pipedrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/sync-engine/pkg/logging"
	"github.com/relaycrm/sync-engine/pkg/retry"
)

// DefaultTimeout is the maximum time to wait for a single API response.
const DefaultTimeout = 30 * time.Second

// DefaultPageLimit is the page size for bulk collection fetches.
const DefaultPageLimit = 100

// maxLoggedBodyLength bounds error bodies carried in StatusError.
const maxLoggedBodyLength = 200

// Client provides access to the Pipedrive API. It is the sole egress path:
// every read and write routes through do, so rate-limit backoff is applied
// uniformly.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	pageLimit  int
	policy     *retry.Policy
	logger     *zap.Logger
}

// Config holds configuration for creating a Pipedrive client.
type Config struct {
	BaseURL   string
	APIToken  string
	PageLimit int
	Timeout   time.Duration
	Retry     *retry.Policy
}

// NewClient creates a new Pipedrive API client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("api token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.pipedrive.com/v1"
	}

	pageLimit := cfg.PageLimit
	if pageLimit <= 0 {
		pageLimit = DefaultPageLimit
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	policy := cfg.Retry
	if policy == nil {
		policy = retry.DefaultPolicy()
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      cfg.APIToken,
		pageLimit:  pageLimit,
		policy:     policy,
		logger:     logger.Named("pipedrive"),
	}, nil
}

// StatusError is a non-2xx HTTP response from the remote API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("pipedrive returned status %d: %s", e.Code, e.Body)
}

// APIError is a 2xx response whose envelope reports success=false.
type APIError struct {
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pipedrive API error: %s", e.Message)
}

// IsRateLimited reports whether err is a 429 response. This is the only
// status that triggers retry; everything else is terminal for the call.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

// IsNotFound reports whether err is a 404 response. An update hitting 404
// means the stored remote id is stale and the caller falls back to a create.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// envelope is the uniform response wrapper every endpoint returns.
type envelope struct {
	Success        bool            `json:"success"`
	Error          string          `json:"error"`
	Data           json.RawMessage `json:"data"`
	AdditionalData *additionalData `json:"additional_data"`
}

type additionalData struct {
	Pagination *pagination `json:"pagination"`
}

type pagination struct {
	MoreItemsInCollection bool `json:"more_items_in_collection"`
}

func (e *envelope) decode(out any) error {
	if out == nil || len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func (e *envelope) moreItems() bool {
	return e.AdditionalData != nil &&
		e.AdditionalData.Pagination != nil &&
		e.AdditionalData.Pagination.MoreItemsInCollection
}

// do executes a request and decodes the envelope data into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	env, err := c.doEnvelope(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	return env.decode(out)
}

// doEnvelope executes a request with rate-limit backoff and returns the
// decoded envelope. A 429 response is retried per the policy; any other
// failure is surfaced immediately.
func (c *Client) doEnvelope(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	return retry.DoWithResult(ctx, c.policy, IsRateLimited, func() (*envelope, error) {
		return c.doOnce(ctx, method, path, query, body)
	})
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any) (*envelope, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path %q: %w", path, err)
	}

	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_token", c.token)
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Pipedrive request",
		zap.String("method", method),
		zap.String("url", logging.SanitizeURL(u.String())))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipedrive request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("Rate limit hit, backing off",
			zap.String("method", method),
			zap.String("path", path))
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("failed to parse response envelope: %w", err)
	}
	if !env.Success {
		return nil, &APIError{Message: env.Error}
	}

	return &env, nil
}

func truncateBody(b []byte) string {
	s := string(b)
	if len(s) > maxLoggedBodyLength {
		return s[:maxLoggedBodyLength] + "..."
	}
	return s
}
