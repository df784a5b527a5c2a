// Package observability initializes OpenTelemetry tracing for the service
// and provides span helpers used around turn and node execution.
package observability

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// DefaultServiceName is used when no service name is configured.
const DefaultServiceName = "voyagent"

var (
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer = otel.GetTracerProvider().Tracer(DefaultServiceName)
)

// Config holds tracing configuration.
type Config struct {
	// ServiceName is the name reported on spans (default "voyagent").
	ServiceName string

	// Enabled controls whether tracing is active.
	Enabled bool

	// ExporterType selects the exporter: "otlp", "stdout", or "none".
	ExporterType string

	// OTLPEndpoint is the OTLP HTTP endpoint URL.
	OTLPEndpoint string

	// OTLPHeaders are additional headers for OTLP requests.
	OTLPHeaders map[string]string
}

// InitFromEnv initializes tracing from standard OpenTelemetry environment
// variables:
//   - OTEL_SERVICE_NAME: service name (default "voyagent")
//   - OTEL_TRACES_EXPORTER: "otlp", "stdout", or "none" (default "none")
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint URL
//   - OTEL_EXPORTER_OTLP_HEADERS: headers as "key1=value1,key2=value2"
func InitFromEnv() error {
	exporterType := getEnv("OTEL_TRACES_EXPORTER", "none")
	return Init(Config{
		ServiceName:  getEnv("OTEL_SERVICE_NAME", DefaultServiceName),
		Enabled:      exporterType != "none",
		ExporterType: exporterType,
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:  parseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
	})
}

// Init initializes tracing with the given configuration.
func Init(config Config) error {
	if config.ServiceName == "" {
		config.ServiceName = DefaultServiceName
	}

	if !config.Enabled || config.ExporterType == "none" {
		tracer = otel.GetTracerProvider().Tracer(config.ServiceName)
		return nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch config.ExporterType {
	case "otlp":
		opts := []otlptracehttp.Option{}
		if config.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpointURL(config.OTLPEndpoint))
		}
		if len(config.OTLPHeaders) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(config.OTLPHeaders))
		}
		exporter, err = otlptracehttp.New(context.Background(), opts...)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.Printf("Tracing initialized with OTLP exporter (endpoint: %s)", config.OTLPEndpoint)

	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		log.Println("Tracing initialized with stdout exporter")

	default:
		return fmt.Errorf("unknown exporter type: %s", config.ExporterType)
	}

	tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tracerProvider)
	tracer = tracerProvider.Tracer(config.ServiceName)

	return nil
}

// StartSpan starts a span using the configured tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, opts...)
}

// Shutdown flushes and stops the tracer provider.
func Shutdown(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return tracerProvider.Shutdown(ctx)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseHeaders parses "key1=value1,key2=value2" into a map.
func parseHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) == 2 && kv[0] != "" {
			headers[kv[0]] = kv[1]
		}
	}
	return headers
}
