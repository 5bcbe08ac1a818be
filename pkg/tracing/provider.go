package tracing

import (
	"context"
	"time"

	"github.com/Ramsey-B/clover/pkg/tracing/exporters"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ProviderConfig configures the global tracer provider.
type ProviderConfig struct {
	ServiceName  string
	OTLPEndpoint string
	OTLPProtocol string
	Insecure     bool
}

// NewProvider builds a tracer provider, registers it globally and points the
// package tracer at it. When no endpoint is configured spans go to a no-op
// exporter. The returned shutdown func flushes pending spans.
func NewProvider(ctx context.Context, config ProviderConfig) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	if config.OTLPEndpoint != "" {
		otlpExporter, err := exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: config.OTLPEndpoint,
			Protocol: config.OTLPProtocol,
			Insecure: config.Insecure,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			return nil, err
		}
		exporter = otlpExporter
	} else {
		exporter = &exporters.ConsoleExporter{}
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	SetTracer(provider.Tracer(config.ServiceName))

	return provider.Shutdown, nil
}
