package arso

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/couchcryptid/arso-air-quality-etl/internal/domain"
)

// maxBodyBytes caps the feed download; the real document is well under 1 MiB.
const maxBodyBytes = 16 << 20

// Client downloads the ARSO air-quality feed. It makes exactly one request per
// Fetch call and never retries.
type Client struct {
	url        string
	httpClient *http.Client
	maxBody    int64
	logger     *slog.Logger
}

// NewClient creates a feed client with the given per-request timeout.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBody: maxBodyBytes,
		logger:  logger,
	}
}

// Fetch performs one GET of the feed URL and returns the raw body. Failures
// are returned as *domain.FetchError classified as timeout, connection or
// http (any status outside 2xx counts as http).
func (c *Client) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchHTTP, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		fe := &domain.FetchError{Kind: classify(err), Err: err}
		c.logger.Error("feed request failed", "url", c.url, "kind", fe.Kind, "error", err)
		return nil, fe
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		fe := &domain.FetchError{
			Kind:       domain.FetchHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, snippet),
		}
		c.logger.Error("feed returned error status", "url", c.url, "status", resp.StatusCode)
		return nil, fe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		fe := &domain.FetchError{Kind: classify(err), Err: fmt.Errorf("read body: %w", err)}
		c.logger.Error("feed body read failed", "url", c.url, "kind", fe.Kind, "error", err)
		return nil, fe
	}
	if int64(len(body)) > c.maxBody {
		fe := &domain.FetchError{
			Kind:       domain.FetchHTTP,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response body exceeds %d bytes", c.maxBody),
		}
		c.logger.Error("feed body too large", "url", c.url, "limit", c.maxBody)
		return nil, fe
	}

	c.logger.Debug("feed fetched", "url", c.url, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

// classify maps a transport error to a failure kind.
func classify(err error) domain.FetchFailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return domain.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FetchTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.FetchConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return domain.FetchConnection
	}
	return domain.FetchHTTP
}
