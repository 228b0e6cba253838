// Package intentpipeline implements C9: the thin router and trace
// carrier that assigns an intent id, resolves the registered handler for
// an intent type, and surfaces its result — including the capability
// (authorization) check the transport layer defers to the pipeline.
package intentpipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/mcarvalho21/nova-sub000/internal/domain/intentdom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Handler executes one intent type end to end, per §4.10's scoped
// transaction discipline.
type Handler interface {
	IntentType() string
	Execute(ctx context.Context, intent intentdom.Intent, intentID string) (*intentdom.Result, error)
}

// Pipeline routes intents to their registered handler by type.
type Pipeline struct {
	handlers map[string]Handler
	logger   platform.Logger
}

// New builds an empty Pipeline.
func New(logger platform.Logger) *Pipeline {
	if logger == nil {
		logger = &platform.NoneLogger{}
	}

	return &Pipeline{handlers: make(map[string]Handler), logger: logger}
}

// Register adds a handler under its declared intent type.
func (p *Pipeline) Register(handler Handler) {
	p.handlers[handler.IntentType()] = handler
}

// Execute assigns a fresh intent id when the intent carries none, re-validates the actor's capability
// for this intent type (the capability check spec.md §1 names in the
// pipeline but leaves to the transport layer to populate), looks up the
// handler, and surfaces its result.
func (p *Pipeline) Execute(ctx context.Context, intent intentdom.Intent) (*intentdom.Result, error) {
	tracer := platform.TracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "intentpipeline.execute")
	defer span.End()

	intentID := intent.ID
	if intentID == "" {
		intentID = uuid.NewString()
	}

	if actor := platform.ActorFromContext(ctx); actor != nil && !actor.CanExecute(intent.Type) {
		err := platform.ForbiddenError{Message: "actor lacks capability for intent type " + intent.Type}
		platform.HandleSpanError(&span, "capability check failed", err)

		return &intentdom.Result{Success: false, Error: err.Error(), IntentID: intentID}, err
	}

	handler, ok := p.handlers[intent.Type]
	if !ok {
		result := &intentdom.Result{Success: false, Error: "no handler registered for intent type " + intent.Type, IntentID: intentID}
		return result, nil
	}

	result, err := handler.Execute(ctx, intent, intentID)
	if err != nil {
		platform.HandleSpanError(&span, "intent handler failed", err)
		return nil, err
	}

	result.IntentID = intentID

	return result, nil
}
