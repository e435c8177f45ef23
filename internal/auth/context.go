package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated principal of a request.
type Caller struct {
	UserID uuid.UUID
	Email  string
	// System marks trusted in-process callers such as the CLI and the watchdog.
	System bool
}

// SystemCaller returns the principal used by operator tooling.
func SystemCaller() Caller {
	return Caller{System: true}
}

// ContextWithCaller returns a new context that carries the authenticated caller.
func ContextWithCaller(ctx context.Context, caller Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the authenticated caller from the context, if any.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	if ctx == nil {
		return Caller{}, false
	}
	caller, ok := ctx.Value(callerKey).(Caller)
	if !ok {
		return Caller{}, false
	}
	if !caller.System && caller.UserID == uuid.Nil {
		return Caller{}, false
	}
	return caller, true
}
