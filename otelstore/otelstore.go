// Package otelstore traces store activity with OpenTelemetry. Every
// dispatched action becomes a span that opens on the before hook and closes
// when the action settles; mutations committed while an action is in flight
// are annotated on its span.
package otelstore

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dshills/fluxstore/module"
	"github.com/dshills/fluxstore/store"
)

const tracerName = "github.com/dshills/fluxstore/otelstore"

// Option configures the tracing plugin.
type Option func(*observer)

// WithTracerProvider traces through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *observer) {
		if tp != nil {
			o.tracer = tp.Tracer(tracerName)
		}
	}
}

type observer struct {
	tracer trace.Tracer

	mu    sync.Mutex
	spans map[string]trace.Span
}

// Attach subscribes the tracer to the store. The returned function detaches
// it; spans for actions still in flight end when those actions settle.
func Attach(s *store.Store, opts ...Option) func() {
	o := &observer{
		tracer: otel.GetTracerProvider().Tracer(tracerName),
		spans:  make(map[string]trace.Span),
	}
	for _, opt := range opts {
		opt(o)
	}

	unsubAct := s.SubscribeAction(store.ActionHooks{
		Before: o.actionStart,
		After: func(a store.Action, _ module.StateMap) {
			o.actionEnd(a, nil)
		},
		Error: func(a store.Action, _ module.StateMap, err error) {
			o.actionEnd(a, err)
		},
	})

	unsubMut := s.Subscribe(func(m store.Mutation, _ module.StateMap) {
		o.mutation(m)
	})

	return func() {
		unsubAct()
		unsubMut()
	}
}

func (o *observer) actionStart(a store.Action, _ module.StateMap) {
	_, span := o.tracer.Start(context.Background(), "action "+a.Type,
		trace.WithAttributes(
			attribute.String("fluxstore.action.type", a.Type),
			attribute.String("fluxstore.action.id", a.ID),
		),
	)
	o.mu.Lock()
	o.spans[a.ID] = span
	o.mu.Unlock()
}

func (o *observer) actionEnd(a store.Action, err error) {
	o.mu.Lock()
	span, ok := o.spans[a.ID]
	delete(o.spans, a.ID)
	o.mu.Unlock()
	if !ok {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// mutation annotates in-flight action spans, which is where a commit during
// a dispatch belongs. A commit with no action in flight gets an instant
// span of its own.
func (o *observer) mutation(m store.Mutation) {
	o.mu.Lock()
	inflight := make([]trace.Span, 0, len(o.spans))
	for _, span := range o.spans {
		inflight = append(inflight, span)
	}
	o.mu.Unlock()

	attrs := trace.WithAttributes(attribute.String("fluxstore.mutation.type", m.Type))
	if len(inflight) == 0 {
		_, span := o.tracer.Start(context.Background(), "mutation "+m.Type, attrs)
		span.End()
		return
	}
	for _, span := range inflight {
		span.AddEvent("mutation "+m.Type, attrs)
	}
}
