package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/redis"
	"github.com/wonny/trifund/pkg/retry"
)

// Client is an HTTP client wrapper with retry, rate limiting and logging
// ⭐ SSOT: 모든 외부 HTTP 요청은 이 클라이언트를 통해서만 수행
type Client struct {
	httpClient   *http.Client
	logger       *logger.Logger
	retryPolicy  retry.Policy
	retryEnabled bool
	userAgent    string
	rateLimiter  *redis.RateLimiter
	rateLimitCfg *redis.RateLimitConfig
}

// New creates a client with a 30s timeout and 3 retries
func New(log *logger.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		logger:       log,
		retryPolicy:  retry.DefaultPolicy(),
		retryEnabled: true,
	}
}

// WithTimeout overrides the per-request timeout
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	c.httpClient.Timeout = timeout
	return c
}

// WithRetry configures retry behavior
func (c *Client) WithRetry(maxRetries int, initialDelay time.Duration) *Client {
	c.retryPolicy.MaxRetries = maxRetries
	c.retryPolicy.InitialDelay = initialDelay
	c.retryEnabled = true
	return c
}

// DisableRetry disables automatic retry
func (c *Client) DisableRetry() *Client {
	c.retryEnabled = false
	return c
}

// WithUserAgent sets the User-Agent header (Wikipedia rejects empty agents)
func (c *Client) WithUserAgent(ua string) *Client {
	c.userAgent = ua
	return c
}

// WithRateLimiter sets the shared rate limiter for this client
func (c *Client) WithRateLimiter(limiter *redis.RateLimiter, cfg redis.RateLimitConfig) *Client {
	c.rateLimiter = limiter
	c.rateLimitCfg = &cfg
	return c
}

// StatusError is returned for non-2xx responses
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// GetBody performs a GET request and returns the body of a 2xx response
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	if c.rateLimiter != nil && c.rateLimitCfg != nil {
		if err := c.rateLimiter.Wait(ctx, *c.rateLimitCfg); err != nil {
			return nil, fmt.Errorf("rate limit wait failed: %w", err)
		}
	}

	policy := c.retryPolicy
	if !c.retryEnabled {
		policy.MaxRetries = 0
	}

	var body []byte
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		b, err := c.get(ctx, url)
		if err != nil {
			var se *StatusError
			if asStatus(err, &se) && !IsRetryableError(se.StatusCode) {
				return retry.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		c.logger.WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay,
			"url":     url,
			"error":   err.Error(),
		}).Warn("Retrying HTTP request")
	})

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"url":      url,
			"duration": time.Since(start),
			"error":    err.Error(),
		}).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"url":      url,
		"bytes":    len(body),
		"duration": time.Since(start),
	}).Debug("HTTP request completed")

	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create GET request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

func asStatus(err error, target **StatusError) bool {
	se, ok := err.(*StatusError)
	if ok {
		*target = se
	}
	return ok
}

// IsRetryableError checks if a status code should be retried
func IsRetryableError(statusCode int) bool {
	// 5xx 서버 에러와 429 Too Many Requests만 재시도
	return statusCode >= 500 || statusCode == 429
}
