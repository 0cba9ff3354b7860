package mircrew

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Environment variables that supply the credentials
const (
	EnvUsername = "MIRCREW_USERNAME"
	EnvPassword = "MIRCREW_PASSWORD"
)

// anonymousUserID is the phpBB user id of a guest
const anonymousUserID = "1"

// Credentials are the forum login. They are held in memory only.
type Credentials struct {
	Username string
	Password string
}

// String never reveals the credentials
func (c Credentials) String() string {
	return "Credentials{REDACTED}"
}

// Missing returns the environment variable names of the empty fields
func (c Credentials) Missing() []string {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, EnvUsername)
	}
	if strings.TrimSpace(c.Password) == "" {
		missing = append(missing, EnvPassword)
	}
	return missing
}

// Session is an authenticated forum session
type Session struct {
	SessionID    string
	UserID       string
	AutoLoginKey string
}

// State of the session manager
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// SessionManager owns the login state and the cookies of one Transport.
// At most one login is in flight; concurrent callers share its result.
type SessionManager struct {
	credentials  Credentials
	transport    *Transport
	cookiePrefix string
	logger       zerolog.Logger

	mu      sync.RWMutex
	state   State
	session *Session

	logins singleflight.Group
}

// NewSessionManager creates an unauthenticated session manager
func NewSessionManager(credentials Credentials, transport *Transport, cookiePrefix string, logger zerolog.Logger) *SessionManager {
	if cookiePrefix == "" {
		cookiePrefix = DefaultCookiePrefix
	}
	return &SessionManager{
		credentials:  credentials,
		transport:    transport,
		cookiePrefix: cookiePrefix,
		logger:       logger,
	}
}

// State returns the current authentication state
func (m *SessionManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Session returns a copy of the current session, or nil when not authenticated
func (m *SessionManager) Session() *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != StateAuthenticated || m.session == nil {
		return nil
	}
	s := *m.session
	return &s
}

// Authenticate logs in unless a session is already established, in which
// case the current session is returned without any request.
func (m *SessionManager) Authenticate(ctx context.Context) (*Session, error) {
	if s := m.Session(); s != nil {
		return s, nil
	}

	if missing := m.credentials.Missing(); len(missing) > 0 {
		return nil, newError(KindAuthentication, "missing credentials: set %s", strings.Join(missing, " and "))
	}

	// The shared login outlives any single caller; the transport timeout bounds it
	loginCtx := context.WithoutCancel(ctx)
	ch := m.logins.DoChan("login", func() (any, error) {
		// another caller may have finished a login while we waited
		if s := m.Session(); s != nil {
			return s, nil
		}
		return m.login(loginCtx)
	})

	select {
	case <-ctx.Done():
		return nil, wrapError(KindNetwork, ctx.Err(), "login: request cancelled")
	case res := <-ch:
		if res.Shared {
			m.logger.Debug().Msg("Joined in-flight login")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		s := *res.Val.(*Session)
		return &s, nil
	}
}

// Invalidate drops the session after the forum stopped recognising it
func (m *SessionManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAuthenticated {
		m.logger.Warn().Msg("Session lost, re-authentication required")
	}
	m.state = StateUnauthenticated
	m.session = nil
}

func (m *SessionManager) setState(state State, session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = state
	m.session = session
}

func (m *SessionManager) login(ctx context.Context) (*Session, error) {
	m.setState(StateAuthenticating, nil)
	m.logger.Debug().Msg("Authenticating with forum")

	session, err := m.exchange(ctx)
	if err != nil {
		m.setState(StateUnauthenticated, nil)
		return nil, err
	}

	m.setState(StateAuthenticated, session)
	m.logger.Info().Str("user_id", session.UserID).Msg("Authenticated with forum")
	return session, nil
}

func (m *SessionManager) exchange(ctx context.Context) (*Session, error) {
	page, err := m.transport.Get(ctx, "index.php", nil)
	if err != nil {
		return nil, err
	}

	form, err := parseLoginForm(page.Body)
	if err != nil {
		return nil, err
	}

	data := url.Values{
		"username":      {m.credentials.Username},
		"password":      {m.credentials.Password},
		"autologin":     {"on"},
		"login":         {"Login"},
		"redirect":      {"./index.php?"},
		"creation_time": {form.creationTime},
		"form_token":    {form.formToken},
	}

	resp, err := m.transport.Post(ctx, form.action, data)
	if err != nil {
		return nil, err
	}

	if doc, err := parseDocument(resp.Body); err == nil {
		if reason := loginRejection(doc); reason != "" {
			return nil, newError(KindAuthentication, "login rejected: %s", reason)
		}
	}

	session := m.sessionFromCookies()
	if session.UserID == anonymousUserID {
		return nil, newError(KindAuthentication, "login rejected: invalid username or password")
	}

	var missing []string
	if session.SessionID == "" {
		missing = append(missing, m.cookiePrefix+"_sid")
	}
	if session.UserID == "" {
		missing = append(missing, m.cookiePrefix+"_u")
	}
	if session.AutoLoginKey == "" {
		missing = append(missing, m.cookiePrefix+"_k")
	}
	if len(missing) > 0 {
		return nil, newError(KindAuthentication, "login did not set session cookies %s", strings.Join(missing, ", "))
	}

	return session, nil
}

func (m *SessionManager) sessionFromCookies() *Session {
	session := &Session{}
	for _, cookie := range m.transport.Cookies() {
		switch cookie.Name {
		case m.cookiePrefix + "_sid":
			session.SessionID = cookie.Value
		case m.cookiePrefix + "_u":
			session.UserID = cookie.Value
		case m.cookiePrefix + "_k":
			session.AutoLoginKey = cookie.Value
		}
	}
	return session
}
