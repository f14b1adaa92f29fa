package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// ErrInvalidProxy is returned when the configured proxy URL cannot be
// parsed or uses an unsupported scheme.
var ErrInvalidProxy = errors.New("web: invalid proxy URL")

// maxRedirects caps redirect chains to break loops.
const maxRedirects = 10

// Response is the outcome of one page fetch.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// Status is the HTTP status code.
	Status int

	// Header holds the response headers.
	Header http.Header

	// Body is the response body, capped at the configured limit.
	Body []byte

	// Truncated reports that the body hit the cap and was cut off.
	Truncated bool
}

// Fetcher retrieves pages for URL events. Fetch reads the full page
// for link extraction; Probe is the cheaper variant for URLs that are
// recorded but never spidered.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Response, error)
	Probe(ctx context.Context, pageURL string) (*Response, error)
}

// Client is the production Fetcher. A single Client is shared by every
// worker so connection pooling and proxy state stay consistent.
type Client struct {
	client       *http.Client
	probeTimeout time.Duration
	userAgent    string
	maxBody      int64

	proxyURL  string
	sslVerify bool
	timeout   time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds a full page fetch, redirects included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithProbeTimeout bounds probe fetches. Probes hit URLs the spider
// will never follow, so they get a shorter leash.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.probeTimeout = d
	}
}

// WithProxy routes all requests through a proxy. http, https and
// socks5 URLs are supported, e.g. "socks5://127.0.0.1:9050".
func WithProxy(rawURL string) Option {
	return func(c *Client) {
		c.proxyURL = rawURL
	}
}

// WithUserAgent sets the User-Agent header for every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSSLVerify enables TLS certificate verification. Off by default:
// reconnaissance targets routinely serve self-signed or mismatched
// certificates, and an unverified page is still a page.
func WithSSLVerify(verify bool) Option {
	return func(c *Client) {
		c.sslVerify = verify
	}
}

// WithMaxBody caps how many bytes of a response body are read.
func WithMaxBody(n int64) Option {
	return func(c *Client) {
		c.maxBody = n
	}
}

// New builds a Client. It returns ErrInvalidProxy when a proxy URL is
// configured but unusable.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		timeout:      10 * time.Second,
		probeTimeout: 5 * time.Second,
		userAgent:    "bbot/2.0 (+https://github.com/AnshumanSrivastavaGit/bbot)",
		maxBody:      5 * 1024 * 1024,
		sslVerify:    false,
	}
	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !c.sslVerify, //nolint:gosec // opt-in via ssl_verify
		},
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     30 * time.Second,
	}
	if c.proxyURL != "" {
		if err := configureProxy(transport, c.proxyURL); err != nil {
			return nil, err
		}
	}

	c.client = &http.Client{
		Transport: transport,
		Timeout:   c.timeout,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	return c, nil
}

// configureProxy wires the transport for the proxy scheme. HTTP-style
// proxies use the standard CONNECT path; socks5 replaces the dialer.
func configureProxy(transport *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidProxy, rawURL, err)
	}
	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5":
		var auth *proxy.Auth
		if u.User != nil {
			auth = &proxy.Auth{User: u.User.Username()}
			auth.Password, _ = u.User.Password()
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidProxy, rawURL, err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidProxy, u.Scheme)
	}
	return nil
}

// Fetch retrieves a full page.
func (c *Client) Fetch(ctx context.Context, pageURL string) (*Response, error) {
	return c.get(ctx, pageURL)
}

// Probe retrieves a page under the probe timeout. The response is the
// same shape as a full fetch; only the deadline differs.
func (c *Client) Probe(ctx context.Context, pageURL string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	return c.get(ctx, pageURL)
}

func (c *Client) get(ctx context.Context, pageURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Read one byte past the cap so truncation is detectable.
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	truncated := int64(len(body)) > c.maxBody
	if truncated {
		body = body[:c.maxBody]
	}

	return &Response{
		URL:       resp.Request.URL.String(),
		Status:    resp.StatusCode,
		Header:    resp.Header,
		Body:      body,
		Truncated: truncated,
	}, nil
}
