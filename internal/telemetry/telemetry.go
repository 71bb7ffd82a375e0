// Package telemetry installs the global OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type Config struct {
	ServiceName string
	// Endpoint is the OTLP gRPC collector address. Empty disables tracing.
	Endpoint string
	Insecure bool
}

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup exports spans over OTLP gRPC when an endpoint is configured and
// otherwise leaves the no-op global provider in place.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (Shutdown, error) {
	if cfg.Endpoint == "" {
		logger.Debug("tracing disabled, no OTLP endpoint")
		return noop, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return noop, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(cfg.ServiceName)),
	)
	otel.SetTracerProvider(provider)
	logger.Info("tracing enabled", "endpoint", cfg.Endpoint)
	return provider.Shutdown, nil
}

func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = "starterp"
	}
	return resource.NewSchemaless(semconv.ServiceName(serviceName))
}
