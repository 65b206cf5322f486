package allegro

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"golang.org/x/oauth2"
)

// recordedRequest captures what reached a test server.
type recordedRequest struct {
	Method string
	Host   string
	URI    string
	Header http.Header
	Body   string
}

// recorder is an httptest server answering every request with a fixed
// status and body while recording the requests it saw.
type recorder struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func newRecorder(t *testing.T, status int, body string) *recorder {
	t.Helper()

	rec := &recorder{status: status, body: body}
	rec.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)

		rec.mu.Lock()
		rec.requests = append(rec.requests, recordedRequest{
			Method: r.Method,
			Host:   r.Host,
			URI:    r.URL.RequestURI(),
			Header: r.Header.Clone(),
			Body:   string(data),
		})
		status, body := rec.status, rec.body
		rec.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(rec.Close)

	return rec
}

func (r *recorder) respond(status int, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status, r.body = status, body
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) last(t *testing.T) recordedRequest {
	t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.requests) == 0 {
		t.Fatal("no request recorded")
	}
	return r.requests[len(r.requests)-1]
}

// testEnv wires one recorder per host: the REST API, the upload host and
// the authorization server.
type testEnv struct {
	api    *recorder
	upload *recorder
	auth   *recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		api:    newRecorder(t, http.StatusOK, `{"ok":true}`),
		upload: newRecorder(t, http.StatusCreated, `{"uploaded":true}`),
		auth:   newRecorder(t, http.StatusOK, `{}`),
	}
}

func (e *testEnv) environment() Environment {
	return Environment{
		APIURL:    e.api.URL,
		UploadURL: e.upload.URL,
		Endpoint: oauth2.Endpoint{
			AuthURL:  e.auth.URL + "/auth/oauth/authorize",
			TokenURL: e.auth.URL + "/auth/oauth/token",
		},
	}
}

var testCredentials = Credentials{
	ClientID:     "c1",
	ClientSecret: "s3cret",
	RedirectURI:  "https://x/cb",
}

func (e *testEnv) newAPI(opts ...Option) *API {
	return New(testCredentials, append([]Option{WithEnvironment(e.environment())}, opts...)...)
}
