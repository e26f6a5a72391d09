// Package resources maps every remote resource onto the query layer. Each
// read is a Resource value and each write an Action value; the exported API
// methods are thin wrappers that fill in the parameters.
package resources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"wayfinder/internal/query"
	"wayfinder/internal/rpc"
	"wayfinder/internal/session"
)

// API binds the resource tables to a query client, a transport and the
// session that gates user-scoped reads.
type API struct {
	Query   *query.Client
	Caller  rpc.Caller
	Session session.Provider
	logger  *zap.Logger
}

// New creates an API. A nil session provider means nobody is signed in.
func New(q *query.Client, caller rpc.Caller, sess session.Provider, logger *zap.Logger) *API {
	if sess == nil {
		sess = session.Anonymous
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		Query:   q,
		Caller:  caller,
		Session: sess,
		logger:  logger.Named("resources"),
	}
}

// Resource is the configuration record for one read.
type Resource[P, R any] struct {
	Namespace query.Namespace
	Endpoint  rpc.Endpoint[P, R]
	Retry     int
	// UserScoped reads wait for a finished session with a user, and the user
	// id becomes the first key part.
	UserScoped bool
	StaleTime  time.Duration
	// Failure is shown when the server gives no message of its own.
	Failure string
	// Enabled adds a gate on top of the endpoint's required parameters.
	Enabled func(P) bool
}

// Key returns the cache key for p.
func (r Resource[P, R]) Key(api *API, p P) query.Key {
	return r.Prefix(api, r.Endpoint.Args(p)...)
}

// Prefix returns a key prefix in r's namespace, scoped to the current user
// when r is user-scoped.
func (r Resource[P, R]) Prefix(api *API, parts ...any) query.Key {
	if r.UserScoped {
		parts = append([]any{api.Session.Current().UserID()}, parts...)
	}
	return r.Namespace.Key(parts...)
}

// Descriptor builds the query descriptor for p from the current session.
func (r Resource[P, R]) Descriptor(api *API, p P) query.Descriptor[R] {
	return query.Descriptor[R]{
		Key:       r.Key(api, p),
		Enabled:   r.enabled(api, p),
		Retry:     r.Retry,
		StaleTime: r.StaleTime,
		Fetch: func(ctx context.Context) (R, error) {
			return rpc.Call(ctx, api.Caller, r.Endpoint, p, r.Failure)
		},
	}
}

func (r Resource[P, R]) enabled(api *API, p P) bool {
	if r.UserScoped && !api.Session.Current().Ready() {
		return false
	}
	if err := r.Endpoint.Ready(p); err != nil {
		return false
	}
	if r.Enabled != nil && !r.Enabled(p) {
		return false
	}
	return true
}

// Use runs the read for p.
func (r Resource[P, R]) Use(ctx context.Context, api *API, p P) query.Result[R] {
	return query.Fetch(ctx, api.Query, r.Descriptor(api, p))
}

// Prefetch warms the cache for p without returning the data. Disabled reads
// are a no-op.
func (r Resource[P, R]) Prefetch(ctx context.Context, api *API, p P) error {
	return query.Prefetch(ctx, api.Query, r.Descriptor(api, p))
}

// Watch starts an observer on p. The observer refetches when its key is
// invalidated and must be closed by the caller.
func (r Resource[P, R]) Watch(ctx context.Context, api *API, p P, onChange func(query.Result[R])) *query.Observer[R] {
	obs := query.Observe(api.Query, onChange)
	obs.Set(ctx, r.Descriptor(api, p))
	return obs
}

// Action is the configuration record for one write.
type Action[P, R any] struct {
	Endpoint rpc.Endpoint[P, R]
	// Invalidates returns the key prefixes the write affects.
	Invalidates func(api *API, p P, res R) []query.Key
	Success     string
	Failure     string
}

// Run validates p, sends it and invalidates the affected keys.
func (a Action[P, R]) Run(ctx context.Context, api *API, p P) (R, error) {
	m := query.Mutation[P, R]{
		Name:     a.Endpoint.Name,
		Validate: a.Endpoint.Ready,
		Do: func(ctx context.Context, p P) (R, error) {
			return rpc.Call(ctx, api.Caller, a.Endpoint, p, a.Failure)
		},
		SuccessMessage: a.Success,
		FailureMessage: a.Failure,
	}
	if a.Invalidates != nil {
		m.Invalidates = func(p P, res R) []query.Key {
			return a.Invalidates(api, p, res)
		}
	}
	return query.Mutate(ctx, api.Query, m, p)
}
