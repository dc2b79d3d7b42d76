package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler processes claimed jobs matched by name.
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	// HandlerFunc processes a decoded payload of type T.
	HandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewHandler wraps a typed function as a Handler. The handler name is
// the qualified type name of T, matching what Enqueue stores.
func NewHandler[T any](handler HandlerFunc[T]) Handler {
	var payload T
	return &typedHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

type typedHandler[T any] struct {
	name    string
	handler HandlerFunc[T]
}

func (h *typedHandler[T]) Name() string {
	return h.name
}

func (h *typedHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}
