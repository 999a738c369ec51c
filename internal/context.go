package internal

import (
	"context"
	"time"

	"github.com/frahmantamala/datashare/internal/core/identity"
)

type ctxKey string

const ContextCallerKey ctxKey = "caller"

// CallerFromContext returns the authenticated caller, or a zero Caller.
func CallerFromContext(ctx context.Context) identity.Caller {
	if ctx == nil {
		return identity.Caller{}
	}
	if caller, ok := ctx.Value(ContextCallerKey).(identity.Caller); ok {
		return caller
	}
	return identity.Caller{}
}

func ContextWithCaller(ctx context.Context, caller identity.Caller) context.Context {
	return context.WithValue(ctx, ContextCallerKey, caller)
}

// WithTimeout returns a context with timeout, defaulting to 5 seconds if duration is zero or negative.
func WithTimeout(ctx context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if duration <= 0 {
		duration = 5 * time.Second
	}
	return context.WithTimeout(ctx, duration)
}
