package database

import (
	"context"
)

type contextKey string

const (
	// ScopeKey is the context key for storing the request-scoped database handle.
	ScopeKey contextKey = "dbScope"
)

// Scope is the database handle repositories use for one unit of work: a pooled
// connection for a request, or a transaction during ingestion.
type Scope struct {
	Conn    Querier
	release func()
}

// Close releases the underlying pooled connection, if any. Safe to call more than once.
func (s *Scope) Close() {
	if s == nil || s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

// GetScope retrieves the database scope from context.
// Returns nil and false if not present.
func GetScope(ctx context.Context) (*Scope, bool) {
	scope, ok := ctx.Value(ScopeKey).(*Scope)
	return scope, ok && scope != nil
}

// SetScope stores the database scope in context.
func SetScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, ScopeKey, scope)
}

// NewScope wraps an arbitrary Querier (pool, connection or transaction) without taking ownership.
func NewScope(q Querier) *Scope {
	return &Scope{Conn: q}
}

// WithPoolScope returns ctx with a scope backed directly by the pool, for background work
// that does not need connection affinity.
func (db *DB) WithPoolScope(ctx context.Context) context.Context {
	return SetScope(ctx, NewScope(db.Pool))
}
