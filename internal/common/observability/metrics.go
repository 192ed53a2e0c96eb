package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          otelmetric.Meter
	tracer         trace.Tracer
	jobCounter     otelmetric.Int64Counter
	jobDuration    otelmetric.Float64Histogram
}

// New installs global meter and tracer providers. Spans are exported to
// jaegerEndpoint when it is set and dropped otherwise.
func New(serviceName, jaegerEndpoint string) *Observability {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	tpOpts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if jaegerEndpoint != "" {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(jaegerEndpoint)))
		if err != nil {
			log.Printf("Failed to create Jaeger exporter: %v", err)
		} else {
			tpOpts = append(tpOpts, sdktrace.WithBatcher(exp))
		}
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tracerProvider)

	o := &Observability{
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(serviceName),
	}

	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return o
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)

	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)

	o.meterProvider = provider
	o.meter = meter
	o.jobCounter = jobCounter
	o.jobDuration = jobDuration
	return o
}

// StartSpan starts a span named name under ctx.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, trace.Span) {
	kv := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kv = append(kv, attribute.String(k, v))
	}
	tracer := o.tracer
	if tracer == nil {
		tracer = otel.Tracer("review-workers")
	}
	return tracer.Start(ctx, name, trace.WithAttributes(kv...))
}

func (o *Observability) RecordJobProcessed(ctx context.Context, taskType, status string) {
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) RecordJobDuration(ctx context.Context, taskType string, duration time.Duration, status string) {
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("task_type", taskType),
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
}
