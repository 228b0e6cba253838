package platform

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry wires the OTLP exporters and installs them as global providers,
// mirroring common/mopentelemetry's shape but trimmed to trace+metric
// (the engine has no dedicated log exporter; logs flow through Logger).
type Telemetry struct {
	ServiceName     string
	ServiceVersion  string
	DeploymentEnv   string
	CollectorTarget string
	Enabled         bool

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// Start builds the providers and installs them as otel globals. When
// Enabled is false it installs nothing, leaving otel's default no-op
// providers in place so instrumentation calls remain safe in local/dev
// runs without a collector.
func (t *Telemetry) Start(ctx context.Context) error {
	if !t.Enabled {
		return nil
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(t.ServiceName),
			semconv.ServiceVersion(t.ServiceVersion),
			semconv.DeploymentEnvironment(t.DeploymentEnv),
		),
	)
	if err != nil {
		return fmt.Errorf("build otel resource: %w", err)
	}

	traceExp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(t.CollectorTarget), otlptracegrpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("build trace exporter: %w", err)
	}

	metricExp, err := otlpmetricgrpc.New(ctx, otlpmetricgrpc.WithEndpoint(t.CollectorTarget), otlpmetricgrpc.WithInsecure())
	if err != nil {
		return fmt.Errorf("build metric exporter: %w", err)
	}

	t.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	t.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return nil
}

// Shutdown flushes and stops the providers.
func (t *Telemetry) Shutdown(ctx context.Context) {
	if t.tracerProvider != nil {
		_ = t.tracerProvider.Shutdown(ctx)
	}

	if t.meterProvider != nil {
		_ = t.meterProvider.Shutdown(ctx)
	}
}

// Tracer returns a named tracer, for use when a context isn't available.
//
//nolint:ireturn
func (t *Telemetry) Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// HandleSpanError records err on span and sets its status to Error,
// matching the teacher's mopentelemetry.HandleSpanError helper used at
// every repository and service call site.
func HandleSpanError(span *trace.Span, description string, err error) {
	if span == nil || err == nil {
		return
	}

	(*span).RecordError(err)
	(*span).SetStatus(codes.Error, description+": "+err.Error())
}
