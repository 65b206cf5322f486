package allegro

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorizationURI(t *testing.T) {
	env := newTestEnv(t)
	api := env.newAPI()

	want := env.auth.URL + "/auth/oauth/authorize?response_type=code&client_id=c1&redirect_uri=https%3A%2F%2Fx%2Fcb"
	assert.Equal(t, want, api.AuthorizationURI())
}

func TestAuthorizationURI_EscapesClientID(t *testing.T) {
	api := New(Credentials{ClientID: "a b&c", RedirectURI: "http://localhost:8080/cb?x=1"})

	assert.Equal(t,
		"https://allegro.pl/auth/oauth/authorize?response_type=code&client_id=a+b%26c&redirect_uri=http%3A%2F%2Flocalhost%3A8080%2Fcb%3Fx%3D1",
		api.AuthorizationURI(),
	)
}

func TestDefaultEnvironmentIsProduction(t *testing.T) {
	api := New(testCredentials)

	assert.Equal(t, "https://api.allegro.pl", api.BaseURI())
	assert.Equal(t, "https://upload.allegro.pl", api.UploadBaseURI())
	assert.NotEqual(t, api.BaseURI(), api.UploadBaseURI())
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("replaces tokens on complete response", func(t *testing.T) {
		env := newTestEnv(t)
		body := `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":43199,"token_type":"bearer"}`
		env.auth.respond(http.StatusOK, body)
		api := env.newAPI(WithTokens("old-access", "old-refresh"))

		before := time.Now()
		resp, err := api.ExchangeCode(ctx, "the-code")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, body, resp.String())
		assert.Equal(t, "new-access", api.AccessToken())
		assert.Equal(t, "new-refresh", api.RefreshToken())

		token, err := api.Token()
		require.NoError(t, err)
		assert.WithinDuration(t, before.Add(43199*time.Second), token.Expiry, 5*time.Second)
	})

	t.Run("sends form with basic auth", func(t *testing.T) {
		env := newTestEnv(t)
		api := env.newAPI()

		_, err := api.ExchangeCode(ctx, "the-code")
		require.NoError(t, err)

		req := env.auth.last(t)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/auth/oauth/token", req.URI)
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte("c1:s3cret")), req.Header.Get("Authorization"))

		form, err := url.ParseQuery(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "the-code", form.Get("code"))
		assert.Equal(t, "https://x/cb", form.Get("redirect_uri"))
	})

	t.Run("ignores malformed expires_in", func(t *testing.T) {
		tests := []struct {
			name      string
			expiresIn string
		}{
			{"word", `"never"`},
			{"bool", `true`},
			{"object", `{}`},
			{"null", `null`},
			{"negative", `-5`},
			{"fraction", `12.5`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.auth.respond(http.StatusOK, `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":`+tt.expiresIn+`}`)
				api := env.newAPI(WithTokens("old-access", "old-refresh"))

				_, err := api.ExchangeCode(ctx, "the-code")
				require.NoError(t, err)

				assert.Equal(t, "new-access", api.AccessToken())
				assert.Equal(t, "new-refresh", api.RefreshToken())
				token, err := api.Token()
				require.NoError(t, err)
				assert.True(t, token.Expiry.IsZero())
			})
		}
	})

	t.Run("accepts expires_in as numeric string", func(t *testing.T) {
		env := newTestEnv(t)
		env.auth.respond(http.StatusOK, `{"access_token":"a","refresh_token":"r","expires_in":"60"}`)
		api := env.newAPI()

		before := time.Now()
		_, err := api.ExchangeCode(ctx, "the-code")
		require.NoError(t, err)

		token, err := api.Token()
		require.NoError(t, err)
		assert.WithinDuration(t, before.Add(time.Minute), token.Expiry, 5*time.Second)
	})

	t.Run("leaves tokens on incomplete response", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			body   string
		}{
			{"missing refresh token", http.StatusOK, `{"access_token":"only-access"}`},
			{"missing access token", http.StatusOK, `{"refresh_token":"only-refresh"}`},
			{"null field", http.StatusOK, `{"access_token":null,"refresh_token":"r"}`},
			{"error payload", http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Invalid authorization code"}`},
			{"not json", http.StatusBadGateway, `<html>bad gateway</html>`},
			{"json array", http.StatusOK, `["access_token","refresh_token"]`},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				env := newTestEnv(t)
				env.auth.respond(tt.status, tt.body)
				api := env.newAPI(WithTokens("old-access", "old-refresh"))

				resp, err := api.ExchangeCode(ctx, "the-code")
				require.NoError(t, err)

				assert.Equal(t, tt.status, resp.StatusCode)
				assert.Equal(t, tt.body, resp.String())
				assert.Equal(t, "old-access", api.AccessToken())
				assert.Equal(t, "old-refresh", api.RefreshToken())
			})
		}
	})
}

func TestRefreshTokens(t *testing.T) {
	env := newTestEnv(t)
	env.auth.respond(http.StatusOK, `{"access_token":"a2","refresh_token":"r2"}`)
	api := env.newAPI(WithTokens("a1", "r1"))

	resp, err := api.RefreshTokens(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.OK())

	form, err := url.ParseQuery(env.auth.last(t).Body)
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "r1", form.Get("refresh_token"))
	assert.Equal(t, "https://x/cb", form.Get("redirect_uri"))

	assert.Equal(t, "a2", api.AccessToken())
	assert.Equal(t, "r2", api.RefreshToken())
}

func TestTokenEndpointTransportError(t *testing.T) {
	env := newTestEnv(t)
	api := env.newAPI(WithTokens("a1", "r1"))
	env.auth.Close()

	resp, err := api.RefreshTokens(context.Background())
	assert.Nil(t, resp)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.MethodPost, transportErr.Method)
	assert.Equal(t, "a1", api.AccessToken())
}

func TestSetAccessToken(t *testing.T) {
	api := New(testCredentials, WithTokens("a1", "r1"))

	api.SetAccessToken("restored")

	assert.Equal(t, "restored", api.AccessToken())
	assert.Equal(t, "r1", api.RefreshToken())
}

func TestTokenSnapshot(t *testing.T) {
	api := New(testCredentials)

	token, err := api.Token()
	require.NoError(t, err)
	assert.Empty(t, token.AccessToken)
	assert.False(t, token.Valid())

	api.SetAccessToken("a1")
	token, err = api.Token()
	require.NoError(t, err)
	assert.Equal(t, "a1", token.AccessToken)
	assert.Equal(t, "Bearer", token.Type())
}
