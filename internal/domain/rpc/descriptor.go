package rpc

import (
	"context"

	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/domain/param"
)

// Call is what a handler receives: validated parameters, the caller's session (nil when
// anonymous) and the client binding the request arrived from.
type Call struct {
	Route   string
	Params  param.Values
	Session *domainauth.Session
	Client  domainauth.ClientBinding
}

// UserID returns the session's user, or "" when anonymous.
func (c Call) UserID() string {
	if c.Session == nil {
		return ""
	}
	return c.Session.UserID
}

// Invocable runs a method's business logic. Returning an error signals an unexpected
// fault; orderly business failures are expressed as unsuccessful responses.
type Invocable interface {
	Invoke(ctx context.Context, call Call) (Response, error)
}

// HandlerFunc adapts a function to Invocable.
type HandlerFunc func(ctx context.Context, call Call) (Response, error)

// Invoke calls f.
func (f HandlerFunc) Invoke(ctx context.Context, call Call) (Response, error) {
	return f(ctx, call)
}

// Descriptor is the immutable registration record of one route.
type Descriptor struct {
	Route             string
	Params            []param.Spec
	RequiresSession   bool
	RequiresNoSession bool
	Permissions       []string
	Transactional     bool
	Handler           Invocable
}

// Module groups descriptors for registration. The grouping has no runtime meaning.
type Module struct {
	Name    string
	Methods []Descriptor
}
