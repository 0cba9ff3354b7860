package mircrew

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser     = "mario"
	testPassword = "s3cret"
	testToken    = "a1b2c3d4e5"
	testCreated  = "1700000000"
	cookieSID    = DefaultCookiePrefix + "_sid"
	cookieUser   = DefaultCookiePrefix + "_u"
	cookieKey    = DefaultCookiePrefix + "_k"
)

// fakeForum is a minimal phpBB lookalike serving the pages the client touches
type fakeForum struct {
	t      *testing.T
	server *httptest.Server

	mu         sync.Mutex
	validSID   string
	logins     int
	requests   []string
	searchHTML string
	searches   []string
	// indexHTML replaces the login page served to guests
	indexHTML string
	// topics before and after the like action
	topics map[string]string
	liked  map[string]string
	likes  map[string]int
	// omitCookie drops one session cookie from a successful login
	omitCookie string
	// loginGate holds guest index requests until closed; loginStarted
	// receives a value when one is held
	loginGate    chan struct{}
	loginStarted chan struct{}
	// expireOnLike forgets the session right before the next like request
	expireOnLike bool
}

func newFakeForum(t *testing.T) *fakeForum {
	t.Helper()
	f := &fakeForum{
		t:      t,
		topics: make(map[string]string),
		liked:  make(map[string]string),
		likes:  make(map[string]int),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeForum) client(t *testing.T, opts ...Option) *Client {
	t.Helper()
	return f.clientWith(t, Credentials{Username: testUser, Password: testPassword}, opts...)
}

func (f *fakeForum) clientWith(t *testing.T, creds Credentials, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithBaseURL(f.server.URL)}, opts...)
	client, err := NewClient(creds, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func (f *fakeForum) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeForum) loginCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

func (f *fakeForum) searchQueries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.searches...)
}

func (f *fakeForum) requestsTo(target string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == target {
			n++
		}
	}
	return n
}

func (f *fakeForum) likeCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[id]
}

// expire makes the forum forget the current session
func (f *fakeForum) expire() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validSID = ""
}

func (f *fakeForum) authenticated(r *http.Request) bool {
	cookie, err := r.Cookie(cookieSID)
	return err == nil && f.validSID != "" && cookie.Value == f.validSID
}

func (f *fakeForum) handle(w http.ResponseWriter, r *http.Request) {
	if f.loginGate != nil && r.URL.Path == "/index.php" {
		select {
		case f.loginStarted <- struct{}{}:
		default:
		}
		<-f.loginGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if f.expireOnLike && r.URL.Path == "/like.php" {
		f.expireOnLike = false
		f.validSID = ""
	}

	switch {
	case r.URL.Path == "/index.php" && r.Method == http.MethodGet:
		if f.authenticated(r) {
			fmt.Fprint(w, loggedInPage("<h1>Board index</h1>"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: cookieUser, Value: anonymousUserID, Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: cookieSID, Value: "guest", Path: "/"})
		if f.indexHTML != "" {
			fmt.Fprint(w, f.indexHTML)
			return
		}
		fmt.Fprint(w, loginPage(""))

	case r.URL.Path == "/ucp.php" && r.Method == http.MethodPost:
		f.handleLogin(w, r)

	case !f.authenticated(r):
		fmt.Fprint(w, loginPage(""))

	case r.URL.Path == "/search.php":
		f.searches = append(f.searches, r.URL.RawQuery)
		fmt.Fprint(w, loggedInPage(f.searchHTML))

	case r.URL.Path == "/viewtopic.php":
		id := r.URL.Query().Get("t")
		if thanks := r.URL.Query().Get("thanks"); thanks != "" {
			f.likes[id]++
		}
		page, ok := f.topics[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, loggedInPage("<p>The requested topic does not exist.</p>"))
			return
		}
		if after, ok := f.liked[id]; ok && f.likes[id] > 0 {
			page = after
		}
		fmt.Fprint(w, loggedInPage(page))

	case r.URL.Path == "/like.php" && r.Method == http.MethodPost:
		assert.NoError(f.t, r.ParseForm())
		f.likes[r.PostForm.Get("t")]++
		fmt.Fprint(w, loggedInPage("<p>Grazie!</p>"))

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeForum) handleLogin(w http.ResponseWriter, r *http.Request) {
	assert.NoError(f.t, r.ParseForm())
	if r.URL.Query().Get("mode") != "login" ||
		r.PostForm.Get("form_token") != testToken ||
		r.PostForm.Get("creation_time") != testCreated ||
		r.PostForm.Get("autologin") != "on" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("username") != testUser || r.PostForm.Get("password") != testPassword {
		fmt.Fprint(w, loginPage(`<div class="error">You have specified an incorrect password.</div>`))
		return
	}

	f.logins++
	f.validSID = fmt.Sprintf("sess%d", f.logins)
	cookies := map[string]string{cookieSID: f.validSID, cookieUser: "42", cookieKey: "autokey"}
	for name, value := range cookies {
		if name == f.omitCookie {
			continue
		}
		http.SetCookie(w, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	http.Redirect(w, r, "/index.php", http.StatusFound)
}

func loginPage(errorHTML string) string {
	return `<html><head><title>MirCrew Releases - Index</title></head><body>
<form method="post" action="./ucp.php?mode=login&amp;sid=guest" id="login">
` + errorHTML + `
<input type="text" name="username" value="">
<input type="password" name="password">
<input type="checkbox" name="autologin">
<input type="hidden" name="form_token" value="` + testToken + `">
<input type="hidden" name="creation_time" value="` + testCreated + `">
<input type="submit" name="login" value="Login">
</form></body></html>`
}

func loggedInPage(body string) string {
	if strings.Contains(body, "<html") {
		return body
	}
	return `<html><head><title>MirCrew Releases</title></head><body>
<ul class="nav"><li><a href="./ucp.php?mode=logout&amp;sid=x">Esci [ mario ]</a></li></ul>
` + body + `</body></html>`
}
