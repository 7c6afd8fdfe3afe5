package otel

import (
	"context"
	"sync"

	eventbus "github.com/hanpama/querysign/internal/eventbus"
	events "github.com/hanpama/querysign/internal/events"
	runid "github.com/hanpama/querysign/internal/runid"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures OpenTelemetry and attaches event subscribers to b.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, b *eventbus.Bus, endpoint, service string) (func(context.Context) error, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Register(b, tp.Tracer("querysign"))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Register records runs and files on b as spans of tracer. File spans are
// children of the span of the run found in their context.
func Register(b *eventbus.Bus, tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register(b)
}

type subscriber struct {
	tracer    trace.Tracer
	runSpans  sync.Map // run id -> trace.Span
	fileSpans sync.Map // run id + path -> trace.Span
}

func fileKey(ctx context.Context, path string) string {
	rid, _ := runid.FromContext(ctx)
	return rid + "\x00" + path
}

func (s *subscriber) register(b *eventbus.Bus) func() {
	unsubs := []func(){
		eventbus.Subscribe(b, func(ctx context.Context, e events.RunStart) {
			rid, _ := runid.FromContext(ctx)
			_, span := s.tracer.Start(ctx, "querysign.run")
			span.SetAttributes(
				attribute.String("querysign.run_id", rid),
				attribute.String("querysign.root", e.Root),
				attribute.String("querysign.strategy", e.Strategy),
				attribute.Int("querysign.workers", e.Workers),
			)
			s.runSpans.Store(rid, span)
		}),

		eventbus.Subscribe(b, func(ctx context.Context, e events.RunFinish) {
			rid, _ := runid.FromContext(ctx)
			v, ok := s.runSpans.LoadAndDelete(rid)
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(
				attribute.Int("querysign.files", e.Files),
				attribute.Int("querysign.signed", e.Signed),
				attribute.Int("querysign.skipped", e.Skipped),
				attribute.Int("querysign.failed", e.Failed),
			)
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, "run failed")
			}
			span.End()
		}),

		eventbus.Subscribe(b, func(ctx context.Context, e events.FileStart) {
			rid, _ := runid.FromContext(ctx)
			parent := ctx
			if v, ok := s.runSpans.Load(rid); ok {
				parent = trace.ContextWithSpan(ctx, v.(trace.Span))
			}
			_, span := s.tracer.Start(parent, "querysign.file")
			span.SetAttributes(attribute.String("code.filepath", e.Path))
			s.fileSpans.Store(fileKey(ctx, e.Path), span)
		}),

		eventbus.Subscribe(b, func(ctx context.Context, e events.FileFinish) {
			v, ok := s.fileSpans.LoadAndDelete(fileKey(ctx, e.Path))
			if !ok {
				return
			}
			span := v.(trace.Span)
			span.SetAttributes(attribute.String("querysign.outcome", string(e.Outcome)))
			if e.Name != "" {
				span.SetAttributes(attribute.String("graphql.operation.name", e.Name))
			}
			if e.Err != nil {
				span.RecordError(e.Err)
				span.SetStatus(codes.Error, "extraction failed")
			}
			span.End()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
