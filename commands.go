package allegro

import (
	"context"

	"github.com/google/uuid"
)

// Commands issues Allegro command resources below a resource. A command is
// an idempotent PUT to {resource}/{name}-commands/{id}; replaying the same id
// does not run the command twice.
type Commands struct {
	resource *Resource
}

// Commands returns the command helper for r.
func (r *Resource) Commands() *Commands {
	return &Commands{resource: r}
}

// Send runs the command name with a freshly generated id and returns that id
// together with the response, so the command can be polled or replayed.
func (c *Commands) Send(ctx context.Context, name string, body any, opts ...RequestOption) (string, *Response, error) {
	id := uuid.NewString()
	resp, err := c.SendWithID(ctx, name, id, body, opts...)
	return id, resp, err
}

// SendWithID runs the command name under a caller-chosen id.
func (c *Commands) SendWithID(ctx context.Context, name, id string, body any, opts ...RequestOption) (*Response, error) {
	return c.Resource(name, id).Put(ctx, body, opts...)
}

// Resource returns the node of command id, e.g. for polling its status with Get.
func (c *Commands) Resource(name, id string) *Resource {
	return c.resource.ChildWithID(name+"-commands", id)
}
