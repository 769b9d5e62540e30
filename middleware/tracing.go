package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/papayapulse/pulse-api/config"
)

var (
	tracer          trace.Tracer
	tracerProvider  *sdktrace.TracerProvider
	detectedService string
)

// ErrTracingDisabled is returned by InitTracing when TRACING_ENABLED=false.
var ErrTracingDisabled = errors.New("tracing is disabled (TRACING_ENABLED=false)")

// untracedPaths are probes polled by the platform; tracing them only adds noise.
var untracedPaths = map[string]bool{
	"/health":      true,
	"/ready":       true,
	"/metrics":     true,
	"/api/health":  true,
	"/favicon.ico": true,
}

// InitTracing installs the global OTLP/HTTP tracer provider. Spans are
// batched; the sampler follows the parent and otherwise samples
// OTEL_SAMPLE_RATE of new traces.
//
//	_, err := middleware.InitTracing(cfg)
//	defer middleware.Shutdown(ctx)
func InitTracing(cfg *config.Config) (*sdktrace.TracerProvider, error) {
	tc := cfg.Tracing
	switch {
	case !tc.Enabled:
		return nil, ErrTracingDisabled
	case tc.Endpoint == "":
		return nil, errors.New("OTEL_COLLECTOR_ENDPOINT is required when tracing is enabled")
	case tc.SampleRate < 0 || tc.SampleRate > 1:
		return nil, fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got: %.2f", tc.SampleRate)
	}

	exporter, err := newExporter(tc.Endpoint)
	if err != nil {
		return nil, err
	}

	// a partially detected resource is still usable
	res, _ := CreateResource(context.Background(), tc.ServiceName, cfg.Service.Version)
	detectedService = GetServiceName(res)

	batchSize := tc.MaxExportBatchSize
	if batchSize <= 0 {
		batchSize = sdktrace.DefaultMaxExportBatchSize
	}
	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithExportTimeout(30*time.Second),
			sdktrace.WithMaxExportBatchSize(batchSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.SampleRate))),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tracer = otel.Tracer(detectedService)
	return tracerProvider, nil
}

func newExporter(endpoint string) (sdktrace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}
	return exporter, nil
}

// TracingMiddleware wraps otelgin so an incoming traceparent from the mobile
// app is continued. Probe paths are not traced.
func TracingMiddleware() gin.HandlerFunc {
	serviceName := detectedService
	if serviceName == "" {
		serviceName = unknownService
	}
	traced := otelgin.Middleware(serviceName, otelgin.WithTracerProvider(otel.GetTracerProvider()))

	return func(c *gin.Context) {
		if untracedPaths[c.Request.URL.Path] {
			c.Next()
			return
		}
		traced(c)
	}
}

func GetTracer() trace.Tracer {
	if tracer == nil {
		serviceName := detectedService
		if serviceName == "" {
			serviceName = unknownService
		}
		tracer = otel.Tracer(serviceName)
	}
	return tracer
}

// StartSpan starts a child span. The caller ends it.
//
//	ctx, span := middleware.StartSpan(ctx, "prediction.record")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	//nolint:spancheck // span is returned to caller who is responsible for calling span.End()
	return GetTracer().Start(ctx, name, opts...)
}

// Shutdown flushes pending spans and stops the provider. It is a no-op when
// tracing was never initialized.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	if err := tracerProvider.ForceFlush(ctx); err != nil {
		return fmt.Errorf("failed to flush traces: %w", err)
	}
	if err := tracerProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer provider: %w", err)
	}
	return nil
}

// AddSpanAttributes tags the request span, if it is recording.
func AddSpanAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}
