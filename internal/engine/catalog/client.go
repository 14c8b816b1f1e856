package catalog

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	utls "github.com/refraction-networking/utls"

	"github.com/rendis/catalogtap/internal/model"
)

const (
	locationPath   = "/api/location/my"
	categoriesPath = "/api/products/categories"
	productsPath   = "/api/products"
	ratingPath     = "/api/ratings/producer/"

	maxRetries   = 3
	baseBackoff  = 250 * time.Millisecond
	maxBackoff   = 2 * time.Second
	jitterFactor = 0.5
	maxErrorBody = 512
)

var browserUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
}

// StatusError is a non-2xx answer from the marketplace API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed if repeated.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string // bearer credential, passed through untouched
	Timeout    time.Duration
	ProxyURL   string
	BrowserTLS bool // present a Chrome ClientHello via utls
	UserAgent  string
	Logger     *log.Logger
}

// Client talks to the marketplace JSON API.
type Client struct {
	base      *url.URL
	token     string
	userAgent string
	browser   bool
	http      *http.Client
	logger    *log.Logger
}

// NewClient builds a client for the API rooted at opts.BaseURL.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "catalogtap"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		base:      base,
		token:     opts.Token,
		userAgent: ua,
		browser:   opts.BrowserTLS,
		logger:    logger.WithPrefix("api"),
		http: &http.Client{
			Transport: newTransport(opts.ProxyURL, opts.BrowserTLS),
			Timeout:   timeout,
		},
	}, nil
}

func newTransport(proxyURL string, browserTLS bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        32,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if browserTLS {
		transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			host, _, err := net.SplitHostPort(addr)
			if err != nil {
				host = addr
			}

			// Chrome spec with HTTP/1.1 ALPN; the transport does not speak h2 over a custom conn.
			spec, err := utls.UTLSIdToSpec(utls.HelloChrome_Auto)
			if err != nil {
				conn.Close()
				return nil, err
			}
			for i, ext := range spec.Extensions {
				if alpn, ok := ext.(*utls.ALPNExtension); ok {
					alpn.AlpnProtocols = []string{"http/1.1"}
					spec.Extensions[i] = alpn
					break
				}
			}

			tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloCustom)
			if err := tlsConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, err
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		}
	}

	if proxyURL != "" {
		if proxyParsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(proxyParsed)
			// The proxy owns the connection; fall back to standard TLS.
			transport.DialTLSContext = nil
			transport.TLSClientConfig = &tls.Config{}
		}
	}

	return transport
}

// Location returns the consumer's saved location, or nil when none is saved.
func (c *Client) Location(ctx context.Context) (*model.ConsumerLocation, error) {
	var loc *model.ConsumerLocation
	if err := c.getJSON(ctx, locationPath, nil, &loc); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrLocationUnavailable, err)
	}
	return loc, nil
}

// Categories returns the category names in server order.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var cats []string
	if err := c.getJSON(ctx, categoriesPath, nil, &cats); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrCategoriesUnavailable, err)
	}
	if cats == nil {
		cats = []string{}
	}
	return cats, nil
}

// Products returns one page of products for the given query.
func (c *Client) Products(ctx context.Context, query url.Values) (model.PageResult, error) {
	var page model.PageResult
	if err := c.getJSON(ctx, productsPath, query, &page); err != nil {
		return model.PageResult{}, fmt.Errorf("%w: %w", model.ErrCatalogUnavailable, err)
	}
	return page.Normalize(), nil
}

// ProducerRating returns the rating summary of a producer. A 404 or an
// empty body is the empty summary, not an error.
func (c *Client) ProducerRating(ctx context.Context, producerID string) (model.RatingSummary, error) {
	var summary *model.RatingSummary
	err := c.getJSON(ctx, ratingPath+url.PathEscape(producerID), nil, &summary)
	var se *StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return model.RatingSummary{}, nil
	case err != nil:
		return model.RatingSummary{}, fmt.Errorf("%w: %w", model.ErrRatingUnavailable, err)
	case summary == nil:
		return model.RatingSummary{}, nil
	}
	return *summary, nil
}

// getJSON performs a GET with retry and exponential backoff and decodes
// the body into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	reqURL := u.String()

	var lastErr error
	for attempt := range maxRetries {
		start := time.Now()
		body, err := c.doRequest(ctx, reqURL)
		if err == nil {
			c.logger.Debug("request", "path", path, "attempt", attempt+1, "elapsed", time.Since(start))
			if len(bytes.TrimSpace(body)) == 0 {
				return nil
			}
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("decoding %s: %w", path, err)
			}
			return nil
		}

		lastErr = err
		var se *StatusError
		if !errors.As(err, &se) || !se.Retryable() {
			c.logger.Warn("request failed", "path", path, "err", err)
			return err
		}

		backoff := baseBackoff * time.Duration(1<<uint(attempt))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(float64(backoff) * jitterFactor * rand.Float64())
		c.logger.Warn("retrying", "path", path, "status", se.StatusCode, "backoff", backoff+jitter)

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		case <-time.After(backoff + jitter):
		}
	}

	return lastErr
}

func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.browser {
		req.Header.Set("User-Agent", browserUserAgents[rand.IntN(len(browserUserAgents))])
	} else {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
