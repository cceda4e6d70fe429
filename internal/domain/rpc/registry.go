package rpc

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/target/mmk-rpc-api/internal/domain/param"
)

var (
	// ErrDuplicateRoute is returned when two descriptors share a route.
	ErrDuplicateRoute = errors.New("duplicate route")
	// ErrInvalidDescriptor is returned for misconfigured descriptors.
	ErrInvalidDescriptor = errors.New("invalid method descriptor")
)

// Registry is a flat, read-only map from route to descriptor.
// It is built once at startup and shared by concurrent calls without locking.
type Registry struct {
	methods map[string]Descriptor
}

// NewRegistry validates and indexes the descriptors of all modules.
func NewRegistry(modules ...Module) (*Registry, error) {
	r := &Registry{methods: make(map[string]Descriptor)}
	for _, m := range modules {
		for _, d := range m.Methods {
			if err := r.add(d); err != nil {
				return nil, fmt.Errorf("module %s: %w", m.Name, err)
			}
		}
	}
	return r, nil
}

// With returns a new registry holding r's descriptors plus ds.
func (r *Registry) With(ds ...Descriptor) (*Registry, error) {
	out := &Registry{methods: make(map[string]Descriptor, len(r.methods)+len(ds))}
	for route, d := range r.methods {
		out.methods[route] = d
	}
	for _, d := range ds {
		if err := out.add(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) add(d Descriptor) error {
	d.Route = NormalizeRoute(d.Route)
	if d.Route == "/" {
		return fmt.Errorf("%w: empty route", ErrInvalidDescriptor)
	}
	if d.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDescriptor, d.Route)
	}
	if d.RequiresSession && d.RequiresNoSession {
		return fmt.Errorf("%w: %s requires both a session and no session", ErrInvalidDescriptor, d.Route)
	}
	seen := make(map[string]bool, len(d.Params))
	for _, p := range d.Params {
		if p.Key == "" || !p.Type.Valid() {
			return fmt.Errorf("%w: %s has a malformed parameter %q", ErrInvalidDescriptor, d.Route, p.Key)
		}
		if seen[p.Key] {
			return fmt.Errorf("%w: %s declares parameter %q twice", ErrInvalidDescriptor, d.Route, p.Key)
		}
		seen[p.Key] = true
	}
	if _, exists := r.methods[d.Route]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRoute, d.Route)
	}
	d.Params = append([]param.Spec(nil), d.Params...)
	d.Permissions = append([]string(nil), d.Permissions...)
	r.methods[d.Route] = d
	return nil
}

// Lookup returns the descriptor registered for route.
func (r *Registry) Lookup(route string) (Descriptor, bool) {
	if r == nil {
		return Descriptor{}, false
	}
	d, ok := r.methods[NormalizeRoute(route)]
	return d, ok
}

// Routes returns all registered routes in sorted order.
func (r *Registry) Routes() []string {
	routes := make([]string, 0, len(r.methods))
	for route := range r.methods {
		routes = append(routes, route)
	}
	sort.Strings(routes)
	return routes
}

// Len returns the number of registered methods.
func (r *Registry) Len() int { return len(r.methods) }

// NormalizeRoute gives routes a single leading slash and no trailing slash.
func NormalizeRoute(route string) string {
	route = strings.Trim(strings.TrimSpace(route), "/")
	return "/" + route
}
