// Package telemetry wires OpenTelemetry traces and metrics for fills. It is
// off unless MF_OTEL_ENABLED=true, in which case:
//
//	MF_OTEL_STDOUT=true                  spans and metrics pretty-printed to stdout
//	OTEL_EXPORTER_OTLP_ENDPOINT          metrics pushed over OTLP/HTTP
//	OTEL_EXPORTER_OTLP_METRICS_ENDPOINT  overrides the endpoint for metrics
//
// Spans go to stdout whenever no OTLP endpoint is set.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const defaultScope = "github.com/steveyegge/markform"

const (
	stdoutInterval = 15 * time.Second
	otlpInterval   = 30 * time.Second
)

// settings is the exporter selection read from the environment.
type settings struct {
	enabled      bool
	stdout       bool
	otlpEndpoint string
}

func loadSettings(getenv func(string) string) settings {
	s := settings{
		enabled:      getenv("MF_OTEL_ENABLED") == "true",
		stdout:       getenv("MF_OTEL_STDOUT") == "true",
		otlpEndpoint: getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"),
	}
	if s.otlpEndpoint == "" {
		s.otlpEndpoint = getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	return s
}

// stdoutSpans reports whether spans are exported at all.
func (s settings) stdoutSpans() bool {
	return s.stdout || s.otlpEndpoint == ""
}

var shutdowns []func(context.Context) error

// Enabled reports whether MF_OTEL_ENABLED=true.
func Enabled() bool {
	return loadSettings(os.Getenv).enabled
}

// Init installs the global tracer and meter providers. When telemetry is off
// they are no-ops.
func Init(ctx context.Context, service, version string) error {
	s := loadSettings(os.Getenv)
	if !s.enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(service),
			semconv.ServiceVersionKey.String(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return fmt.Errorf("telemetry: resource: %w", err)
	}

	tracerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if s.stdoutSpans() {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("telemetry: stdout spans: %w", err)
		}
		tracerOpts = append(tracerOpts, sdktrace.WithBatcher(exp))
	}
	tp := sdktrace.NewTracerProvider(tracerOpts...)
	otel.SetTracerProvider(tp)
	shutdowns = append(shutdowns, tp.Shutdown)

	readers, err := metricReaders(ctx, s)
	if err != nil {
		return err
	}
	meterOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, r := range readers {
		meterOpts = append(meterOpts, sdkmetric.WithReader(r))
	}
	mp := sdkmetric.NewMeterProvider(meterOpts...)
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, mp.Shutdown)
	return nil
}

func metricReaders(ctx context.Context, s settings) ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader
	if s.stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout metrics: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(stdoutInterval)))
	}
	if s.otlpEndpoint != "" {
		exp, err := otlpMetricExporter(ctx, s.otlpEndpoint)
		if err != nil {
			return nil, fmt.Errorf("telemetry: otlp metrics: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(otlpInterval)))
	}
	return readers, nil
}

// Tracer returns a tracer for scope, or the module scope when empty.
func Tracer(scope string) trace.Tracer {
	if scope == "" {
		scope = defaultScope
	}
	return otel.Tracer(scope)
}

// Meter returns a meter for scope, or the module scope when empty.
func Meter(scope string) metric.Meter {
	if scope == "" {
		scope = defaultScope
	}
	return otel.Meter(scope)
}

// Shutdown flushes and stops the providers installed by Init.
func Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range shutdowns {
		errs = append(errs, fn(ctx))
	}
	shutdowns = nil
	return errors.Join(errs...)
}
