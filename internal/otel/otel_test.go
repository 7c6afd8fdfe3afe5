package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	eventbus "github.com/hanpama/querysign/internal/eventbus"
	events "github.com/hanpama/querysign/internal/events"
	runid "github.com/hanpama/querysign/internal/runid"
)

func TestSpansFollowEvents(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	b := eventbus.New()
	unsubscribe := Register(b, tp.Tracer("test"))
	defer unsubscribe()

	ctx, _ := runid.NewContext(context.Background())
	eventbus.Publish(ctx, b, events.RunStart{Root: "src", Strategy: "structural", Workers: 2})
	eventbus.Publish(ctx, b, events.FileStart{Path: "src/A.graphql.ts"})
	eventbus.Publish(ctx, b, events.FileStart{Path: "src/B.graphql.ts"})
	eventbus.Publish(ctx, b, events.FileFinish{Path: "src/B.graphql.ts", Outcome: events.OutcomeFailed, Err: errors.New("bad")})
	eventbus.Publish(ctx, b, events.FileFinish{Path: "src/A.graphql.ts", Name: "AQuery", Outcome: events.OutcomeSigned})
	eventbus.Publish(ctx, b, events.RunFinish{Root: "src", Files: 2, Signed: 1, Failed: 1})

	ended := sr.Ended()
	require.Len(t, ended, 3)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range ended {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	require.Len(t, byName["querysign.run"], 1)
	require.Len(t, byName["querysign.file"], 2)

	run := byName["querysign.run"][0]
	for _, f := range byName["querysign.file"] {
		require.Equal(t, run.SpanContext().SpanID(), f.Parent().SpanID())
		require.Equal(t, run.SpanContext().TraceID(), f.SpanContext().TraceID())
	}
	require.Equal(t, codes.Error, byName["querysign.file"][0].Status().Code)
}

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), eventbus.New(), "", "querysign")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}
