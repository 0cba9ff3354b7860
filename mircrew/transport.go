package mircrew

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// Headers sent with every request. The forum serves a reduced page to
// clients that do not look like a browser.
var browserHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64; rv:145.0) Gecko/20100101 Firefox/145.0",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,it-IT;q=0.8,it;q=0.5,en;q=0.3",
}

// Response is the final response of a request after redirects
type Response struct {
	StatusCode int
	Body       string
	URL        *url.URL
}

// Transport is a cookie-bearing HTTP client bound to one forum.
// It does not interpret HTML.
type Transport struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewTransport creates a transport for baseURL whose requests are bounded by timeout
func NewTransport(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Transport, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Transport{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				TLSHandshakeTimeout: 10 * time.Second,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}, nil
}

// BaseURL returns the forum root without a trailing slash
func (t *Transport) BaseURL() string {
	return strings.TrimRight(t.baseURL.String(), "/")
}

// Resolve turns a forum-relative path ("./viewtopic.php?t=1", "search.php") into an absolute URL
func (t *Transport) Resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	return t.baseURL.ResolveReference(ref), nil
}

// Get issues a GET request. params are merged into the query of path.
func (t *Transport) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	target, err := t.Resolve(path)
	if err != nil {
		return nil, wrapError(KindInternal, err, "invalid request path %q", path)
	}
	if len(params) > 0 {
		query := target.Query()
		for key, values := range params {
			query[key] = values
		}
		target.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, wrapError(KindInternal, err, "failed to create request")
	}

	return t.do(req)
}

// Post issues an application/x-www-form-urlencoded POST request
func (t *Transport) Post(ctx context.Context, path string, form url.Values) (*Response, error) {
	target, err := t.Resolve(path)
	if err != nil {
		return nil, wrapError(KindInternal, err, "invalid request path %q", path)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, wrapError(KindInternal, err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", t.baseURL.String())

	return t.do(req)
}

// Cookies returns the cookies the jar would send to the forum root
func (t *Transport) Cookies() []*http.Cookie {
	return t.httpClient.Jar.Cookies(t.baseURL)
}

// CloseIdleConnections releases pooled connections
func (t *Transport) CloseIdleConnections() {
	t.httpClient.CloseIdleConnections()
}

func (t *Transport) do(req *http.Request) (*Response, error) {
	for name, value := range browserHeaders {
		if req.Header.Get(name) == "" {
			req.Header.Set(name, value)
		}
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(req, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapError(KindNetwork, err, "failed to read response body from %s", req.URL.Path)
	}

	t.logger.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Forum request completed")

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &Error{
			Kind:       KindNetwork,
			Message:    fmt.Sprintf("%s %s returned status %d", req.Method, req.URL.Path, resp.StatusCode),
			StatusCode: resp.StatusCode,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(body),
		URL:        resp.Request.URL,
	}, nil
}

// classifyTransportError maps client failures onto KindNetwork with a readable cause.
// Only the path is reported; query strings may carry a session id.
func classifyTransportError(req *http.Request, err error) *Error {
	reason := "request failed"

	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		reason = "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		reason = "request timed out"
	case errors.As(err, &dnsErr):
		reason = "DNS lookup failed"
	case errors.As(err, &certErr):
		reason = "TLS certificate verification failed"
	case errors.As(err, &netErr) && netErr.Timeout():
		reason = "request timed out"
	}

	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}

	return wrapError(KindNetwork, cause, "%s %s: %s", req.Method, req.URL.Path, reason)
}
