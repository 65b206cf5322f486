package allegro

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Credentials identify a registered Allegro application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// API is the root of every resource path. It holds the application
// credentials and the current token pair, performs the OAuth2 exchanges and
// hands the access token to each request built from it.
//
// One API value represents one session. Token replacement is atomic for the
// pair, but concurrent exchanges on the same API race (last writer wins);
// give concurrent sessions their own API.
type API struct {
	config *oauth2.Config
	env    Environment
	client Doer
	logger *slog.Logger

	mu     sync.RWMutex
	tokens tokenPair
}

type tokenPair struct {
	access  string
	refresh string
	expiry  time.Time
}

// Compile-time check that API can be used wherever an oauth2.TokenSource is expected.
var _ oauth2.TokenSource = (*API)(nil)

// Option configures an API.
type Option func(*API)

// WithEnvironment selects the deployment (Production by default).
func WithEnvironment(env Environment) Option {
	return func(a *API) {
		a.env = env
	}
}

// WithHTTPClient replaces the client used for every request.
func WithHTTPClient(client Doer) Option {
	return func(a *API) {
		a.client = client
	}
}

// WithTransport keeps the default client settings but sends requests through rt.
func WithTransport(rt http.RoundTripper) Option {
	return func(a *API) {
		a.client = &http.Client{Transport: rt, Timeout: defaultTimeout}
	}
}

// WithLogger sets the logger for request debug records.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithTokens resumes a session from a previously obtained token pair.
func WithTokens(accessToken, refreshToken string) Option {
	return func(a *API) {
		a.tokens = tokenPair{access: accessToken, refresh: refreshToken}
	}
}

// WithToken resumes a session from a stored oauth2.Token. A nil token is ignored.
func WithToken(token *oauth2.Token) Option {
	return func(a *API) {
		if token == nil {
			return
		}
		a.tokens = tokenPair{
			access:  token.AccessToken,
			refresh: token.RefreshToken,
			expiry:  token.Expiry,
		}
	}
}

const defaultTimeout = 30 * time.Second

// New creates an API for the given application credentials.
func New(creds Credentials, opts ...Option) *API {
	a := &API{
		env:    Production,
		client: &http.Client{Timeout: defaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	a.config = &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Endpoint:     a.env.Endpoint,
	}

	return a
}

// BaseURI returns the origin of the REST API.
func (a *API) BaseURI() string {
	return a.env.APIURL
}

// UploadBaseURI returns the origin used for uploads.
func (a *API) UploadBaseURI() string {
	return a.env.UploadURL
}

// AccessToken returns the current access token, or "" if none is held.
func (a *API) AccessToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.access
}

// RefreshToken returns the current refresh token, or "" if none is held.
func (a *API) RefreshToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tokens.refresh
}

// SetAccessToken overrides the access token, e.g. after restoring it out of band.
// The refresh token is left as is.
func (a *API) SetAccessToken(token string) *API {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens.access = token
	a.tokens.expiry = time.Time{}
	return a
}

// Token returns a snapshot of the held tokens. It never refreshes; callers
// decide when to call RefreshTokens.
func (a *API) Token() (*oauth2.Token, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return &oauth2.Token{
		AccessToken:  a.tokens.access,
		TokenType:    "Bearer",
		RefreshToken: a.tokens.refresh,
		Expiry:       a.tokens.expiry,
	}, nil
}

// Child returns the top-level resource named segment.
func (a *API) Child(segment string) *Resource {
	return &Resource{id: segment, api: a}
}

// ChildWithID returns the item id of the top-level collection,
// equivalent to a.Child(collection).Child(id).
func (a *API) ChildWithID(collection, id string) *Resource {
	return a.Child(collection).Child(id)
}

// Path descends through segments in order, e.g. Path("sale", "offers").
// The API root is not a resource: with no segments Path returns nil, and
// calling a verb on that nil node panics. Callers building paths from input
// check for an empty segment list first.
func (a *API) Path(segments ...string) *Resource {
	if len(segments) == 0 {
		return nil
	}
	return a.Child(segments[0]).Path(segments[1:]...)
}
