package allegro

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Resource is one node of a REST resource address. Nodes are immutable:
// Child and ChildWithID return new nodes that point back at their parent, so
// a node can be branched any number of times and reused afterwards.
//
// Segments are joined verbatim; callers escape them if needed.
type Resource struct {
	id     string
	parent *Resource // nil for top-level resources
	api    *API
}

// Child returns the sub-resource named segment, e.g. a collection.
func (r *Resource) Child(segment string) *Resource {
	return &Resource{id: segment, parent: r, api: r.api}
}

// ChildWithID returns the item id of the sub-collection, equivalent to
// r.Child(collection).Child(id).
func (r *Resource) ChildWithID(collection, id string) *Resource {
	return r.Child(collection).Child(id)
}

// Path descends through segments in order. With no segments it returns r.
func (r *Resource) Path(segments ...string) *Resource {
	node := r
	for _, segment := range segments {
		node = node.Child(segment)
	}
	return node
}

// URI returns the address of the resource on the API host.
func (r *Resource) URI() string {
	if r.parent == nil {
		return r.api.BaseURI() + "/" + r.id
	}
	return r.parent.URI() + "/" + r.id
}

// UploadURI returns the address of the resource on the upload host.
func (r *Resource) UploadURI() string {
	if r.parent == nil {
		return r.api.UploadBaseURI() + "/" + r.id
	}
	return r.parent.UploadURI() + "/" + r.id
}

// Get fetches the resource. A non-nil query is appended to the URI.
func (r *Resource) Get(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	return r.do(ctx, http.MethodGet, withQuery(r.URI(), query), nil, opts)
}

// Put replaces the resource with the JSON encoding of body.
func (r *Resource) Put(ctx context.Context, body any, opts ...RequestOption) (*Response, error) {
	return r.doJSON(ctx, http.MethodPut, r.URI(), body, opts)
}

// Post sends the JSON encoding of body to the resource.
func (r *Resource) Post(ctx context.Context, body any, opts ...RequestOption) (*Response, error) {
	return r.doJSON(ctx, http.MethodPost, r.URI(), body, opts)
}

// Delete removes the resource. A non-nil query is appended to the URI.
func (r *Resource) Delete(ctx context.Context, query url.Values, opts ...RequestOption) (*Response, error) {
	return r.do(ctx, http.MethodDelete, withQuery(r.URI(), query), nil, opts)
}

// Upload posts the JSON encoding of body to the resource on the upload host.
func (r *Resource) Upload(ctx context.Context, body any, opts ...RequestOption) (*Response, error) {
	return r.doJSON(ctx, http.MethodPost, r.UploadURI(), body, opts)
}

// UploadRaw posts binary content, such as an image, to the resource on the
// upload host. contentType replaces the vendor Content-Type; Accept keeps it.
func (r *Resource) UploadRaw(ctx context.Context, contentType string, body io.Reader, opts ...RequestOption) (*Response, error) {
	o := newRequestOptions(opts)
	header := r.header(o)
	header.Set("Content-Type", contentType)
	return r.api.send(ctx, http.MethodPost, r.UploadURI(), header, body)
}

func (r *Resource) doJSON(ctx context.Context, method, uri string, body any, opts []RequestOption) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request body: %w", err)
	}
	return r.do(ctx, method, uri, bytes.NewReader(data), opts)
}

func (r *Resource) do(ctx context.Context, method, uri string, body io.Reader, opts []RequestOption) (*Response, error) {
	return r.api.send(ctx, method, uri, r.header(newRequestOptions(opts)), body)
}

// header builds the bearer and vendor media type headers. The token is read
// at request time so that refreshes are picked up by existing nodes.
func (r *Resource) header(o requestOptions) http.Header {
	mediaType := MediaType(o.version, o.beta)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.api.AccessToken())
	header.Set("Content-Type", mediaType)
	header.Set("Accept", mediaType)
	return header
}

// withQuery appends the encoded query. An empty non-nil query still yields a
// trailing "?".
func withQuery(uri string, query url.Values) string {
	if query == nil {
		return uri
	}
	return uri + "?" + query.Encode()
}
