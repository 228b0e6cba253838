package platform

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const engineContextKey = contextKey("engine_context")

type engineContextValue struct {
	Logger Logger
	Tracer trace.Tracer
	Actor  *Actor
}

// Actor identifies the authenticated caller behind a request, as
// resolved by the HTTP layer's capability middleware and carried through
// context so C9's pipeline can re-validate the capability check
// independently of the transport.
type Actor struct {
	Type         string
	ID           string
	Name         string
	LegalEntity  string
	Capabilities []string
}

// CanExecute reports whether the actor's capability list grants the
// given intent type, or contains the wildcard "*".
func (a *Actor) CanExecute(intentType string) bool {
	if a == nil {
		return false
	}

	for _, c := range a.Capabilities {
		if c == intentType || c == "*" {
			return true
		}
	}

	return false
}

// ActorFromContext extracts the Actor carried on ctx, or nil if none was
// set (e.g. internal/worker-originated calls that bypass the HTTP
// capability middleware).
func ActorFromContext(ctx context.Context) *Actor {
	if v, ok := ctx.Value(engineContextKey).(*engineContextValue); ok {
		return v.Actor
	}

	return nil
}

// ContextWithActor returns a derived context carrying actor.
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	v := valueOrNew(ctx)
	v.Actor = actor

	return context.WithValue(ctx, engineContextKey, v)
}

// LoggerFromContext extracts the Logger carried on ctx, falling back to a
// no-op logger so call sites never need to nil-check.
//
//nolint:ireturn
func LoggerFromContext(ctx context.Context) Logger {
	if v, ok := ctx.Value(engineContextKey).(*engineContextValue); ok && v.Logger != nil {
		return v.Logger
	}

	return &NoneLogger{}
}

// ContextWithLogger returns a derived context carrying logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	v := valueOrNew(ctx)
	v.Logger = logger

	return context.WithValue(ctx, engineContextKey, v)
}

// TracerFromContext extracts the trace.Tracer carried on ctx, falling back
// to the global default tracer.
//
//nolint:ireturn
func TracerFromContext(ctx context.Context) trace.Tracer {
	if v, ok := ctx.Value(engineContextKey).(*engineContextValue); ok && v.Tracer != nil {
		return v.Tracer
	}

	return otel.Tracer("default")
}

// ContextWithTracer returns a derived context carrying tracer.
func ContextWithTracer(ctx context.Context, tracer trace.Tracer) context.Context {
	v := valueOrNew(ctx)
	v.Tracer = tracer

	return context.WithValue(ctx, engineContextKey, v)
}

func valueOrNew(ctx context.Context) *engineContextValue {
	if v, ok := ctx.Value(engineContextKey).(*engineContextValue); ok {
		cp := *v
		return &cp
	}

	return &engineContextValue{}
}
