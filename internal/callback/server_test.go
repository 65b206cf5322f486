package callback

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLoopback(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"http://localhost:8080/callback", true},
		{"http://127.0.0.1/cb", true},
		{"http://[::1]:9000/", true},
		{"https://localhost:8080/callback", false},
		{"http://example.com/cb", false},
		{"http://10.0.0.1/cb", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLoopback(tt.uri))
		})
	}
}

func TestNewRejectsRemoteRedirect(t *testing.T) {
	_, err := New("https://shop.example.com/allegro/callback")
	require.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	s, err := New("http://localhost")
	require.NoError(t, err)
	assert.Equal(t, "localhost:80", s.Addr())
	assert.Equal(t, "/", s.path)
}

func TestRedirectHandler(t *testing.T) {
	t.Run("publishes code", func(t *testing.T) {
		s, err := New("http://localhost:8080/cb")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?code=abc123", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		select {
		case res := <-s.Results():
			require.NoError(t, res.Err)
			assert.Equal(t, "abc123", res.Code)
		default:
			t.Fatal("no result published")
		}
	})

	t.Run("publishes authorization error", func(t *testing.T) {
		s, err := New("http://localhost:8080/cb")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?error=access_denied&error_description=denied+by+user", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		res := <-s.Results()
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "access_denied")
	})

	t.Run("rejects missing code", func(t *testing.T) {
		s, err := New("http://localhost:8080/cb")
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb", nil))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, s.Results())
	})

	t.Run("keeps first result", func(t *testing.T) {
		s, err := New("http://localhost:8080/cb")
		require.NoError(t, err)

		for _, code := range []string{"first", "second"} {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?code="+code, nil))
			assert.Equal(t, http.StatusOK, rec.Code)
		}

		assert.Equal(t, "first", (<-s.Results()).Code)
	})

	t.Run("keeps client request id", func(t *testing.T) {
		s, err := New("http://localhost:8080/cb")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/cb?code=x", nil)
		req.Header.Set("X-Request-ID", "browser-42")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		assert.Equal(t, "browser-42", rec.Header().Get("X-Request-ID"))
	})
}

func TestHealthEndpoints(t *testing.T) {
	s, err := New("http://localhost:8080/cb")
	require.NoError(t, err)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartServesRedirect(t *testing.T) {
	s, err := New("http://127.0.0.1:0/callback")
	require.NoError(t, err)

	errCh, err := s.Start(context.Background())
	require.NoError(t, err)

	resp, err := http.Get("http://" + s.Addr() + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + s.Addr() + "/callback?code=live-code&state=xyz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Authorization complete")

	select {
	case res := <-s.Results():
		assert.Equal(t, "live-code", res.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	_, open := <-errCh
	assert.False(t, open, "error channel closes after shutdown")
}

func TestRecovererPublishesFailure(t *testing.T) {
	s, err := New("http://127.0.0.1:8765/cb")
	require.NoError(t, err)

	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?code=x", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	select {
	case res := <-s.Results():
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "boom")
	default:
		t.Fatal("no result published")
	}
}
