package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxBodySize = 10 << 20

// Options configures a Client. Zero values fall back to the defaults the
// embedded config ships with.
type Options struct {
	BaseURL       string
	Timeout       time.Duration // per attempt
	RetryAttempts int           // extra attempts after the first, 0 = none
	RetryDelay    time.Duration // first backoff interval
	RateLimit     float64       // requests per second, 0 = unlimited
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// Client is the gateway to the remote posts/users API.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	limiter    *rate.Limiter
	group      singleflight.Group
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url scheme must be http or https, got %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		http:       opts.HTTPClient,
		timeout:    opts.Timeout,
		retries:    opts.RetryAttempts,
		retryDelay: opts.RetryDelay,
		logger:     opts.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.retryDelay <= 0 {
		c.retryDelay = time.Second
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c, nil
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = query.Encode()
	return u.String()
}

// get fetches path and decodes the JSON body into out. Identical concurrent
// requests share one round trip; a waiter whose own context ends stops
// waiting without affecting the others.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	rawURL := c.resolve(path, query)

	for {
		ch := c.group.DoChan(rawURL, func() (any, error) {
			return c.fetch(ctx, rawURL)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return shape(ctx, ctx.Err())
		case res = <-ch:
		}

		if res.Err != nil {
			// The shared round trip belonged to a caller that gave up.
			if res.Shared && errors.Is(res.Err, ErrCanceled) && ctx.Err() == nil {
				continue
			}
			return res.Err
		}

		if err := json.Unmarshal(res.Val.([]byte), out); err != nil {
			return &Error{
				Message: fmt.Sprintf("decoding %s: %v", path, err),
				Status:  http.StatusInternalServerError,
				Code:    CodeUnknown,
				Err:     err,
			}
		}
		return nil
	}
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	b.MaxElapsedTime = 0

	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		body, err := c.attempt(ctx, rawURL, attempt)
		if err != nil {
			var apiErr *Error
			if errors.As(err, &apiErr) && retryable(apiErr) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return body, nil
	}

	body, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.retries)), ctx))
	if err != nil {
		return nil, shape(ctx, err)
	}
	return body, nil
}

func (c *Client) attempt(ctx context.Context, rawURL string, n int) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, shape(ctx, err)
		}
	}

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, shape(ctx, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		shaped := shape(ctx, err)
		c.logger.Debug("api request failed",
			"url", rawURL, "attempt", n, "request_id", requestID,
			"code", shaped.Code, "err", err)
		return nil, shaped
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		"url", rawURL, "attempt", n, "request_id", requestID,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return nil, httpError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, shape(ctx, err)
	}
	return body, nil
}
