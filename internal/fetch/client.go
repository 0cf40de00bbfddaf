// Package fetch provides resilient text and structured-data retrieval over a
// single shared connection pool. All requests go through one retry envelope
// with jittered exponential backoff; non-2xx responses surface as classified
// StatusError values instead of being swallowed.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/campushub/notice-harvester/internal/metrics"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent   string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// StatusError reports a non-2xx response that survived the retry envelope.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

// Client fetches pages through a Colly collector sharing one pooled
// transport. Construct it explicitly and pass it by reference; Close releases
// the pooled connections, which would otherwise leak sockets across runs.
type Client struct {
	cfg           Config
	transport     *http.Transport
	baseCollector *colly.Collector
	retry         *retryPolicy
	logger        *zap.Logger
}

// New builds a Client with its own pooled transport.
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	transport := newHTTPTransport()
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(transport)
	c.IgnoreRobotsTxt = true
	// Retries and repeated cycles revisit the same listing URLs.
	c.AllowURLRevisit = true

	return &Client{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		retry:         newRetryPolicy(cfg.MaxAttempts, cfg.BackoffBase, cfg.BackoffMax),
		logger:        logger,
	}
}

// Close releases pooled connections.
func (c *Client) Close() {
	c.transport.CloseIdleConnections()
}

// FetchText retrieves a URL and returns the body as text.
func (c *Client) FetchText(ctx context.Context, url string) (string, error) {
	body, err := c.fetch(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchJSON retrieves a URL and decodes the body as JSON.
func (c *Client) FetchJSON(ctx context.Context, url string) (any, error) {
	body, err := c.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("decode json from %s: %w", url, err)
	}
	return v, nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		body, err := c.doFetch(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !c.retry.shouldRetry(err, attempt) {
			break
		}
		metrics.ObserveFetchRetry()
		delay := c.retry.backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if waitErr := wait(ctx, delay); waitErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, waitErr)
		}
	}
	return nil, lastErr
}

func (c *Client) doFetch(ctx context.Context, url string) ([]byte, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector := c.baseCollector.Clone()
	collector.IgnoreRobotsTxt = true
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.WithTransport(c.transport)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = &StatusError{URL: url, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
	case visitErr := <-done:
		if fetchErr != nil {
			var statusErr *StatusError
			if errors.As(fetchErr, &statusErr) {
				return nil, fetchErr
			}
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		if visitErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, visitErr)
		}
		if status < 200 || status >= 300 {
			return nil, &StatusError{URL: url, StatusCode: status}
		}
		return body, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
