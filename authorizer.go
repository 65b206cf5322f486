package allegro

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// AuthorizationURI returns the URL the resource owner opens in a browser to
// grant access. Allegro redirects back to the RedirectURI with a "code" query
// parameter to be passed to ExchangeCode.
//
// Parameters are emitted in a fixed order (response_type, client_id,
// redirect_uri) rather than the sorted order of url.Values.
func (a *API) AuthorizationURI() string {
	var b strings.Builder
	b.WriteString(a.config.Endpoint.AuthURL)
	b.WriteString("?response_type=code")
	b.WriteString("&client_id=")
	b.WriteString(url.QueryEscape(a.config.ClientID))
	b.WriteString("&redirect_uri=")
	b.WriteString(url.QueryEscape(a.config.RedirectURL))
	return b.String()
}

// ExchangeCode trades an authorization code for a token pair.
//
// The raw token endpoint response is always returned, whatever its status.
// The held tokens are replaced only if the body is a JSON object carrying
// both access_token and refresh_token; otherwise they are left untouched.
func (a *API) ExchangeCode(ctx context.Context, code string) (*Response, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.config.RedirectURL)

	return a.requestToken(ctx, form)
}

// RefreshTokens trades the held refresh token for a new pair, with the same
// contract as ExchangeCode.
func (a *API) RefreshTokens(ctx context.Context) (*Response, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", a.RefreshToken())
	form.Set("redirect_uri", a.config.RedirectURL)

	return a.requestToken(ctx, form)
}

// requestToken posts a form-encoded grant with HTTP Basic client
// authentication. oauth2.Config.Exchange is not used because it turns
// non-2xx responses into errors and hides the body callers need to see.
func (a *API) requestToken(ctx context.Context, form url.Values) (*Response, error) {
	header := http.Header{}
	header.Set("Authorization", "Basic "+basicAuth(a.config.ClientID, a.config.ClientSecret))
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	now := time.Now()
	resp, err := a.send(ctx, http.MethodPost, a.config.Endpoint.TokenURL, header, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		a.logger.DebugContext(ctx, "token response is not a JSON object", "status", resp.StatusCode)
		return resp, nil
	}
	if body.AccessToken == nil || body.RefreshToken == nil {
		a.logger.DebugContext(ctx, "token response without token pair", "status", resp.StatusCode)
		return resp, nil
	}

	pair := tokenPair{access: *body.AccessToken, refresh: *body.RefreshToken}
	// Convert ExpiresIn to an absolute expiry, as oauth2.Token does.
	if seconds, ok := expiresIn(body.ExpiresIn); ok {
		pair.expiry = now.Add(time.Duration(seconds) * time.Second)
	}

	a.mu.Lock()
	a.tokens = pair
	a.mu.Unlock()

	return resp, nil
}

// tokenResponse distinguishes absent fields from empty strings. ExpiresIn is
// kept raw so that a malformed value does not fail the whole body.
type tokenResponse struct {
	AccessToken  *string         `json:"access_token"`
	RefreshToken *string         `json:"refresh_token"`
	ExpiresIn    json.RawMessage `json:"expires_in"`
}

// expiresIn reads a positive lifetime in seconds, given as a JSON number or a
// numeric string. Anything else is ignored.
func expiresIn(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil || seconds <= 0 {
		return 0, false
	}
	return seconds, true
}

func basicAuth(clientID, clientSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(clientID + ":" + clientSecret))
}
