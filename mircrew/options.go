package mircrew

import "time"

const (
	// DefaultBaseURL is the forum the client talks to unless overridden
	DefaultBaseURL = "https://mircrew-releases.org"
	// DefaultTimeout bounds every single request
	DefaultTimeout = 30 * time.Second
	// DefaultCookiePrefix is the phpBB cookie name prefix configured on the forum
	DefaultCookiePrefix = "phpbb3_12hgm"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	baseURL        string
	timeout        time.Duration
	cookiePrefix   string
	likeStrategies []LikeStrategy
	likeEndpoints  []string
}

func defaultOptions() clientOptions {
	return clientOptions{
		baseURL:      DefaultBaseURL,
		timeout:      DefaultTimeout,
		cookiePrefix: DefaultCookiePrefix,
	}
}

// WithBaseURL points the client at a different forum root.
func WithBaseURL(baseURL string) Option {
	return func(o *clientOptions) {
		if baseURL != "" {
			o.baseURL = baseURL
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithCookiePrefix sets the phpBB cookie name prefix used to read the session cookies.
func WithCookiePrefix(prefix string) Option {
	return func(o *clientOptions) {
		if prefix != "" {
			o.cookiePrefix = prefix
		}
	}
}

// WithLikeStrategies replaces the default like detection chain.
func WithLikeStrategies(strategies ...LikeStrategy) Option {
	return func(o *clientOptions) {
		o.likeStrategies = strategies
	}
}

// WithLikeEndpoints replaces the endpoint templates tried by the endpoint like strategy.
// Templates may use {topic} and {post} placeholders.
func WithLikeEndpoints(endpoints ...string) Option {
	return func(o *clientOptions) {
		if len(endpoints) > 0 {
			o.likeEndpoints = endpoints
		}
	}
}
