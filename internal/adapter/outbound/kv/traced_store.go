package kv

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/SoleStyle/solestyle/internal/adapter/outbound/kv"

// TracedStore wraps a Store with one span per operation.
type TracedStore struct {
	next    Store
	tracer  trace.Tracer
	backend string
}

// NewTracedStore wraps next. backend names the driver in span attributes.
func NewTracedStore(next Store, tp trace.TracerProvider, backend string) *TracedStore {
	return &TracedStore{next: next, tracer: tp.Tracer(tracerName), backend: backend}
}

func (s *TracedStore) start(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "kv."+op, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("kv.backend", s.backend),
			attribute.String("kv.key", key),
		))
}

func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, ErrRevisionMismatch) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Get implements Store.
func (s *TracedStore) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, span := s.start(ctx, "Get", key)
	v, ok, err := s.next.Get(ctx, key)
	span.SetAttributes(attribute.Bool("kv.found", ok))
	finish(span, err)
	return v, ok, err
}

// Set implements Store.
func (s *TracedStore) Set(ctx context.Context, key, value string) error {
	ctx, span := s.start(ctx, "Set", key)
	span.SetAttributes(attribute.Int("kv.bytes", len(value)))
	err := s.next.Set(ctx, key, value)
	finish(span, err)
	return err
}

// Remove implements Store.
func (s *TracedStore) Remove(ctx context.Context, key string) error {
	ctx, span := s.start(ctx, "Remove", key)
	err := s.next.Remove(ctx, key)
	finish(span, err)
	return err
}

// CompareAndSet implements Store. A revision mismatch is recorded as an
// attribute, not a span error.
func (s *TracedStore) CompareAndSet(ctx context.Context, key string, expected Revision, value string) (Revision, error) {
	ctx, span := s.start(ctx, "CompareAndSet", key)
	span.SetAttributes(attribute.Int("kv.bytes", len(value)))
	rev, err := s.next.CompareAndSet(ctx, key, expected, value)
	span.SetAttributes(attribute.Bool("kv.conflict", errors.Is(err, ErrRevisionMismatch)))
	finish(span, err)
	return rev, err
}

// Close implements Store.
func (s *TracedStore) Close() error {
	return s.next.Close()
}

var _ Store = (*TracedStore)(nil)
