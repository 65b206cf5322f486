package allegro

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Doer sends a single HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Response is the raw outcome of a request. It is returned for every HTTP
// status, including 4xx and 5xx; callers inspect StatusCode themselves.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// String returns the body as text.
func (r *Response) String() string {
	return string(r.Body)
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// RequestOption adjusts the media type of a single request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	version int
	beta    bool
}

// WithVersion selects the API version encoded in the media type. Default 1.
func WithVersion(version int) RequestOption {
	return func(o *requestOptions) {
		o.version = version
	}
}

// WithBeta switches the media type to the beta tier.
func WithBeta() RequestOption {
	return func(o *requestOptions) {
		o.beta = true
	}
}

func newRequestOptions(opts []RequestOption) requestOptions {
	o := requestOptions{version: 1}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MediaType returns the vendor media type used for Content-Type and Accept,
// e.g. "application/vnd.allegro.public.v1+json".
func MediaType(version int, beta bool) string {
	tier := "public"
	if beta {
		tier = "beta"
	}
	return "application/vnd.allegro." + tier + ".v" + strconv.Itoa(version) + "+json"
}

// send performs one request and reads the full body. HTTP error statuses are
// returned as a normal *Response; only transport failures become errors.
func (a *API) send(ctx context.Context, method, url string, header http.Header, body io.Reader) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range header {
		req.Header[key] = values
	}

	// Outbound trace propagation; a no-op unless a propagator is registered.
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Err: fmt.Errorf("reading response body: %w", err)}
	}

	a.logger.DebugContext(ctx, "allegro request",
		"method", method,
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
