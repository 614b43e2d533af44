// Package fetch provides the hardened HTTP client used by all extraction
// strategies: bounded timeout, bounded retries for transient failures only,
// a hard response-size cap, and manual redirect following with per-hop
// hostname validation against an allowlist.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// UserAgent is the browser User-Agent string sent with every request.
const UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:146.0) Gecko/20100101 Firefox/146.0"

// Defaults for client hardening knobs.
const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxBodyBytes = 2 << 20 // 2MB
	DefaultMaxRedirects = 3
	DefaultAttempts     = 3
	defaultRetryDelay   = 500 * time.Millisecond
)

// Errors surfaced by Fetch. Callers classify these into the ingestion error
// taxonomy; fetch itself only distinguishes failure shapes.
var (
	ErrDisallowedHost   = errors.New("redirect target not in host allowlist")
	ErrResponseTooLarge = errors.New("response body exceeds size cap")
	ErrEmptyResponse    = errors.New("empty response body")
	ErrTooManyRedirects = errors.New("too many redirects")
)

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d fetching %s", e.StatusCode, e.URL)
}

// Response is the outcome of a successful fetch.
type Response struct {
	Body        []byte
	FinalURL    string // URL after redirects
	ContentType string
	StatusCode  int
}

// Client is a hardened HTTP fetcher. The zero value is not usable; construct
// with New.
type Client struct {
	httpClient   *http.Client
	cache        Cacher
	logger       *slog.Logger
	timeout      time.Duration
	maxBodyBytes int64
	maxRedirects int
	attempts     uint
}

// Option configures a Client.
type Option func(*config)

type config struct {
	cache        Cacher
	logger       *slog.Logger
	timeout      time.Duration
	maxBodyBytes int64
	maxRedirects int
	attempts     uint
}

// WithCache sets the HTTP response cache.
func WithCache(cache Cacher) Option {
	return func(c *config) { c.cache = cache }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithMaxBodyBytes overrides the response body size cap.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) { c.maxBodyBytes = n }
}

// WithMaxRedirects overrides the redirect hop limit.
func WithMaxRedirects(n int) Option {
	return func(c *config) { c.maxRedirects = n }
}

// WithAttempts overrides the retry attempt budget for transient failures.
func WithAttempts(n uint) Option {
	return func(c *config) { c.attempts = n }
}

// New creates a fetch client.
func New(opts ...Option) *Client {
	cfg := &config{
		logger:       slog.Default(),
		timeout:      DefaultTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
		maxRedirects: DefaultMaxRedirects,
		attempts:     DefaultAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		httpClient: &http.Client{
			// Redirects are followed manually in fetchOnce so every hop
			// can be validated against the allowlist.
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		cache:        cfg.cache,
		logger:       cfg.logger,
		timeout:      cfg.timeout,
		maxBodyBytes: cfg.maxBodyBytes,
		maxRedirects: cfg.maxRedirects,
		attempts:     cfg.attempts,
	}
}

// Fetch retrieves a URL. allowedHosts is the set of hostnames (exact or
// suffix match) that redirect hops may land on; nil allows any host for the
// initial request but still refuses hops to private-looking addresses.
// Retries apply only to transient failures (network errors, timeouts, 5xx);
// 404, 429, and allowlist violations fail immediately.
func (c *Client) Fetch(ctx context.Context, rawURL string, allowedHosts []string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.cache == nil {
		return c.fetchWithRetry(ctx, rawURL, allowedHosts)
	}

	// Error responses are cached as sentinels to avoid hammering servers
	// that already said no.
	var resp *Response
	data, err := c.cache.GetSet(ctx, URLToKey(rawURL), func(ctx context.Context) ([]byte, error) {
		r, fetchErr := c.fetchWithRetry(ctx, rawURL, allowedHosts)
		if fetchErr != nil {
			var httpErr *HTTPError
			if errors.As(fetchErr, &httpErr) {
				return fmt.Appendf(nil, "ERROR:%d", httpErr.StatusCode), nil
			}
			return nil, fetchErr
		}
		resp = r
		return encodeResponse(r), nil
	}, c.cache.TTL())
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return resp, nil
	}
	return decodeResponse(rawURL, data)
}

func (c *Client) fetchWithRetry(ctx context.Context, rawURL string, allowedHosts []string) (*Response, error) {
	return retry.DoWithData(
		func() (*Response, error) {
			globalRateLimiter.Wait(rawURL, c.logger)
			return c.fetchOnce(ctx, rawURL, allowedHosts)
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(defaultRetryDelay),
		retry.MaxJitter(100*time.Millisecond),
		retry.RetryIf(isRetryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying fetch", "attempt", n+1, "url", rawURL, "error", err)
		}),
	)
}

// fetchOnce performs a single request chain, following redirects by hand so
// each hop's hostname can be checked before it is fetched. This blocks SSRF
// through open redirectors on otherwise-trusted platforms.
func (c *Client) fetchOnce(ctx context.Context, rawURL string, allowedHosts []string) (*Response, error) {
	currentURL := rawURL
	for hop := 0; ; hop++ {
		u, err := url.Parse(currentURL)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("invalid URL %q: %w", currentURL, errors.Join(err, errInvalidURL))
		}
		if !hostAllowed(u.Hostname(), allowedHosts) {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedHost, u.Hostname())
		}
		// With no allowlist the initial host is the caller's choice, but an
		// open redirector must not bounce the fetch into internal addresses.
		if hop > 0 && len(allowedHosts) == 0 && isPrivateHost(u.Hostname()) {
			return nil, fmt.Errorf("%w: %s", ErrDisallowedHost, u.Hostname())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, http.NoBody)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			_ = resp.Body.Close() //nolint:errcheck // intentional
			if location == "" {
				return nil, &HTTPError{StatusCode: resp.StatusCode, URL: currentURL}
			}
			if hop >= c.maxRedirects {
				return nil, fmt.Errorf("%w: %d hops from %s", ErrTooManyRedirects, hop+1, rawURL)
			}
			next := resolveRelative(currentURL, location)
			c.logger.Debug("following redirect", "from", currentURL, "to", next, "status", resp.StatusCode)
			currentURL = next
			continue
		}

		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close() //nolint:errcheck // intentional
			return nil, &HTTPError{StatusCode: resp.StatusCode, URL: currentURL}
		}

		body, err := readCapped(resp.Body, c.maxBodyBytes)
		_ = resp.Body.Close() //nolint:errcheck // intentional
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", currentURL, err)
		}
		if len(body) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, currentURL)
		}

		return &Response{
			Body:        body,
			StatusCode:  resp.StatusCode,
			FinalURL:    currentURL,
			ContentType: resp.Header.Get("Content-Type"),
		}, nil
	}
}

var errInvalidURL = errors.New("invalid URL")

// readCapped reads at most maxBytes; a body that exceeds the cap is a hard
// failure, never a silent truncation.
func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: over %d bytes", ErrResponseTooLarge, maxBytes)
	}
	return body, nil
}

// isPrivateHost reports whether a hostname names a loopback, private, or
// link-local address.
func isPrivateHost(host string) bool {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// hostAllowed matches a hostname against the allowlist (exact or dot-suffix).
func hostAllowed(host string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	for _, a := range allowed {
		a = strings.ToLower(a)
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

// isRetryable reports whether a failure class can change on retry.
// 404 and 429 never will; neither will allowlist or size-cap violations.
func isRetryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	switch {
	case errors.Is(err, ErrDisallowedHost),
		errors.Is(err, ErrResponseTooLarge),
		errors.Is(err, ErrTooManyRedirects),
		errors.Is(err, errInvalidURL):
		return false
	}
	// Network errors, timeouts, empty bodies.
	return true
}

// resolveRelative resolves a possibly-relative redirect Location header.
func resolveRelative(baseURL, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	if strings.HasPrefix(ref, "//") {
		return base.Scheme + ":" + ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}
