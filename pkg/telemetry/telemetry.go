// Functions for working with OpenTelemetry across the SDK and its CLI.

package telemetry

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	otrace "go.opentelemetry.io/otel/trace"

	"github.com/swanchain/go-swan-sdk/pkg/version"
)

const (
	// How long between each time OT sends something to the collector.
	batchTimeout = 5 * time.Second

	// Collector endpoint value that selects the JSON-on-stdout exporter.
	StdoutEndpoint = "stdout"

	instrumentationName = "github.com/swanchain/go-swan-sdk"
)

// Initialize the OpenTelemetry library.
//
// An empty collectorEndpointURL gives a provider without any exporter; spans are
// created and propagated but never shipped anywhere.
//
// You MUST call `Shutdown()` on the tracer provider before exiting,
// lest traces are not sent to the collector.
func New(ctx context.Context, serviceName string, collectorEndpointURL string) (*trace.TracerProvider, error) {
	otel.SetTextMapPropagator(newPropagator())

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.OSName(runtime.GOOS),
		semconv.ServiceVersion(version.Version()),
	)

	tracerProvider, err := newTraceProvider(ctx, res, collectorEndpointURL)
	if err != nil {
		return nil, err
	}

	otel.SetTracerProvider(tracerProvider)

	return tracerProvider, nil
}

// Returns the SDK tracer from the global provider.
// Falls back to a no-op tracer when `New()` has not been called, so library
// users are not forced to set up tracing.
func Tracer() otrace.Tracer {
	return otel.Tracer(instrumentationName)
}

// TraceID returns the hex trace id of the span in ctx, or an empty string.
func TraceID(ctx context.Context) string {
	sc := otrace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// InjectHeaders writes the W3C trace context of ctx into an outgoing request.
func InjectHeaders(ctx context.Context, header http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
}

func newPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

func newTraceProvider(ctx context.Context, res *resource.Resource, endpointURL string) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{
		trace.WithResource(res),
	}

	switch endpointURL {
	case "":
	case StdoutEndpoint:
		traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithSyncer(traceExporter))
	default:
		traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpointURL))
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(traceExporter,
			trace.WithBatchTimeout(batchTimeout)))
	}

	return trace.NewTracerProvider(opts...), nil
}
