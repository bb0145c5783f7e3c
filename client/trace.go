package client

import (
	"context"
	"time"

	"ctp/config"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var TraceProvider *sdktrace.TracerProvider

// InitTraceProvider wires the OTel SDK to the configured collector endpoint;
// a failure here degrades to no-op tracing rather than blocking startup.
func InitTraceProvider() {
	ctx := context.Background()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(config.GetString("otel.endpoint")),
	)
	if err != nil {
		logrus.Errorf("failed to create OTLP HTTP exporter: %v", err)
		return
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.GetString("name")),
			semconv.ServiceVersion(config.GetString("version")),
		),
	)
	if err != nil {
		logrus.Errorf("failed to create OTLP sdk resource: %v", err)
		return
	}

	TraceProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(TraceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

func ShutdownTraceProvider(ctx context.Context) {
	if TraceProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := TraceProvider.Shutdown(ctx); err != nil {
		logrus.Errorf("failed to shutdown tracer provider: %v", err)
	}
}
