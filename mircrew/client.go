package mircrew

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Client sequences the session, transport and page extractors into the
// search, details and magnet operations.
type Client struct {
	transport  *Transport
	session    *SessionManager
	strategies []LikeStrategy
	logger     zerolog.Logger

	magnetLocks keyedMutex
}

// NewClient creates a client for the given credentials. No request is made
// until the first operation; missing credentials are reported then.
func NewClient(credentials Credentials, logger zerolog.Logger, opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	transport, err := NewTransport(options.baseURL, options.timeout, logger)
	if err != nil {
		return nil, err
	}

	strategies := options.likeStrategies
	if len(strategies) == 0 {
		strategies = DefaultLikeStrategies(options.likeEndpoints)
	}

	return &Client{
		transport:  transport,
		session:    NewSessionManager(credentials, transport, options.cookiePrefix, logger),
		strategies: strategies,
		logger:     logger,
	}, nil
}

// Authenticate establishes the forum session if needed
func (c *Client) Authenticate(ctx context.Context) (*Session, error) {
	return c.session.Authenticate(ctx)
}

// State returns the session state
func (c *Client) State() State {
	return c.session.State()
}

// BaseURL returns the forum root
func (c *Client) BaseURL() string {
	return c.transport.BaseURL()
}

// Close releases idle connections
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// SearchMovie searches topic titles. A blank title returns no results without a request.
func (c *Client) SearchMovie(ctx context.Context, title string) ([]SearchResult, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return []SearchResult{}, nil
	}

	params := url.Values{
		"keywords": {title},
		"sf":       {"titleonly"},
		"sr":       {"topics"},
	}

	resp, err := c.authenticatedGet(ctx, "search.php", params)
	if err != nil {
		return nil, err
	}

	results, err := ParseSearchResults(resp.Body, c.transport.BaseURL())
	if err != nil {
		return nil, err
	}

	c.logger.Debug().Str("title", title).Int("count", len(results)).Msg("Search completed")
	return results, nil
}

// GetMovieDetails loads a topic and extracts its metadata
func (c *Client) GetMovieDetails(ctx context.Context, movieID string) (*MovieDetails, error) {
	id, err := validateMovieID(movieID)
	if err != nil {
		return nil, err
	}

	resp, err := c.loadTopic(ctx, id)
	if err != nil {
		return nil, err
	}

	details, err := ParseMovieDetails(resp.Body, id, c.transport.BaseURL())
	if err != nil {
		if errors.Is(err, ErrParsing) {
			return nil, wrapError(KindMovieNotFound, err, "movie %s not found", id)
		}
		return nil, err
	}

	return details, nil
}

// GetMagnetLink reveals and returns the magnet link of a topic. A magnet
// already visible on the first load is returned as is; otherwise the topic is
// liked when a like affordance is found, reloaded and scanned.
func (c *Client) GetMagnetLink(ctx context.Context, movieID string) (string, error) {
	id, err := validateMovieID(movieID)
	if err != nil {
		return "", err
	}

	unlock := c.magnetLocks.Lock(id)
	defer unlock()

	resp, err := c.loadTopic(ctx, id)
	if err != nil {
		return "", err
	}

	if magnet, err := ParseMagnetLink(resp.Body); err == nil {
		c.logger.Debug().Str("movie_id", id).Msg("Magnet link visible without like")
		return magnet, nil
	}

	doc, err := parseDocument(resp.Body)
	if err != nil {
		return "", err
	}

	strategy, err := runLikeChain(ctx, c.strategies, sessionRequester{c}, &LikePage{TopicID: id, Doc: doc}, c.logger)
	if err != nil {
		return "", err
	}
	if strategy == "" {
		c.logger.Debug().Str("movie_id", id).Msg("No like affordance found, reading page as is")
	} else {
		c.logger.Debug().Str("movie_id", id).Str("strategy", strategy).Msg("Like action performed")
	}

	resp, err = c.loadTopic(ctx, id)
	if err != nil {
		return "", err
	}

	magnet, err := ParseMagnetLink(resp.Body)
	if err != nil {
		return "", wrapError(KindMagnetNotFound, err, "no magnet link available for movie %s", id)
	}

	return magnet, nil
}

// loadTopic fetches a topic page, mapping a missing topic to KindMovieNotFound
func (c *Client) loadTopic(ctx context.Context, id string) (*Response, error) {
	resp, err := c.authenticatedGet(ctx, "viewtopic.php", url.Values{"t": {id}})
	if err != nil {
		if StatusCodeOf(err) == http.StatusNotFound {
			return nil, wrapError(KindMovieNotFound, err, "movie %s not found", id)
		}
		return nil, err
	}
	if hasNotFoundMarker(resp.Body) {
		return nil, newError(KindMovieNotFound, "movie %s not found", id)
	}
	return resp, nil
}

func (c *Client) authenticatedGet(ctx context.Context, path string, params url.Values) (*Response, error) {
	return c.withSession(ctx, func() (*Response, error) {
		return c.transport.Get(ctx, path, params)
	})
}

// withSession issues a request within the session. A page served to a
// logged-out visitor drops the session; the request is replayed once after
// logging in again.
func (c *Client) withSession(ctx context.Context, do func() (*Response, error)) (*Response, error) {
	for attempt := 0; ; attempt++ {
		if _, err := c.session.Authenticate(ctx); err != nil {
			return nil, err
		}

		resp, err := do()
		if err != nil {
			return nil, err
		}

		doc, err := parseDocument(resp.Body)
		if err != nil || !isAnonymousPage(doc) {
			return resp, nil
		}

		c.session.Invalidate()
		if attempt > 0 {
			return nil, newError(KindAuthentication, "session lost and could not be restored")
		}
	}
}

// sessionRequester sends like requests through withSession
type sessionRequester struct {
	c *Client
}

func (r sessionRequester) Get(ctx context.Context, path string, params url.Values) (*Response, error) {
	return r.c.authenticatedGet(ctx, path, params)
}

func (r sessionRequester) Post(ctx context.Context, path string, form url.Values) (*Response, error) {
	return r.c.withSession(ctx, func() (*Response, error) {
		return r.c.transport.Post(ctx, path, form)
	})
}

func validateMovieID(movieID string) (string, error) {
	id := strings.TrimSpace(movieID)
	if id == "" {
		return "", newError(KindMovieNotFound, "movie ID cannot be empty")
	}
	if !isNumeric(id) {
		return "", newError(KindMovieNotFound, "invalid movie ID %q: must be numeric", movieID)
	}
	return id, nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// keyedMutex serialises work per key
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the lock for key and returns its release function
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
