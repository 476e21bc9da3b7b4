package core

import (
	"context"

	"api/internal/configuration"
	"api/internal/models"

	"github.com/grafana/pyroscope-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// InitTelemetry starts the OTLP trace pipeline and the continuous profiler
// for deployments that enable them. The returned function flushes pending
// spans and must run before the process exits.
func InitTelemetry(config models.TelemetryConfiguration) func(context.Context) error {
	shutdown := func(context.Context) error { return nil }

	if config.Tracing != nil && config.Tracing.Enabled {
		exporter, err := otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpointURL(config.Tracing.OTLPEndpoint))
		if err != nil {
			zap.L().Fatal("Failed to initialize OTLP trace exporter", zap.Error(err))
		}

		provider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(sdkresource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(configuration.AppName),
			)),
		)

		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

		shutdown = provider.Shutdown
		zap.L().Info("Tracing enabled", zap.String("endpoint", config.Tracing.OTLPEndpoint))
	}

	if config.Profiling != nil && config.Profiling.Enabled {
		_, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: configuration.AppName,
			ServerAddress:   config.Profiling.ServerAddress,
		})
		if err != nil {
			zap.L().Error("Failed to start profiler", zap.Error(err))
		} else {
			zap.L().Info("Profiling enabled", zap.String("server", config.Profiling.ServerAddress))
		}
	}

	return shutdown
}
