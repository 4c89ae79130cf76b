// Package observability sets up tracing: the OTLP exporter and global
// provider, the GORM plugin, and spans for websocket frames, which otelgin
// cannot see because they arrive after the upgrade.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"google.golang.org/grpc/credentials"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-nailo-backend/internal/config"
	"github.com/tbourn/go-nailo-backend/internal/domain"
)

const frameTracerName = "realtime/Dispatcher"

// Frames that write coordination state. Their spans are always kept so a
// lost request or response can be traced regardless of the sample ratio.
var alwaysSampledFrames = map[string]struct{}{
	"ws request_service": {},
	"ws respond_service": {},
}

// Test seams.
var (
	newOTLPClient = otlptracegrpc.NewClient

	newOTLPExporterFn = func(ctx context.Context, client otlptrace.Client) (*otlptrace.Exporter, error) {
		return otlptrace.New(ctx, client)
	}

	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		return resource.New(ctx,
			resource.WithHost(),
			resource.WithAttributes(
				semconv.ServiceName(serviceName),
				semconv.ServiceVersion(version),
			),
		)
	}
)

// SetupOTel installs the global tracer provider and W3C propagators and
// returns its shutdown. When tracing is disabled nothing is installed and the
// shutdown is a no-op. Globals are untouched on error.
func SetupOTel(ctx context.Context, cfg config.OTELConfig, version string) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newOTLPExporterFn(ctx, newOTLPClient(exporterOptions(cfg)...))
	if err != nil {
		return nil, err
	}
	res, err := newServiceResourceFn(ctx, cfg.ServiceName, version)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

func exporterOptions(cfg config.OTELConfig) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		return append(opts, otlptracegrpc.WithInsecure())
	}
	return append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
}

// newSampler honours the parent's decision; roots are ratio sampled except
// state-changing frames, which are always recorded.
func newSampler(ratio float64) sdktrace.Sampler {
	return sdktrace.ParentBased(frameSampler{ratio: sdktrace.TraceIDRatioBased(ratio)})
}

type frameSampler struct {
	ratio sdktrace.Sampler
}

func (s frameSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if _, ok := alwaysSampledFrames[p.Name]; ok {
		return sdktrace.SamplingResult{
			Decision:   sdktrace.RecordAndSample,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}
	return s.ratio.ShouldSample(p)
}

func (s frameSampler) Description() string {
	return "FrameSampler{" + s.ratio.Description() + "}"
}

// InstrumentDB attaches the GORM tracing plugin so queries run by the
// coordinator appear as child spans of the HTTP request or WebSocket frame
// that issued them. Bound query values are never recorded. It is a no-op
// when tracing is disabled.
func InstrumentDB(db *gorm.DB, cfg config.OTELConfig) error {
	if !cfg.Enabled {
		return nil
	}
	return db.Use(tracing.NewPlugin(
		tracing.WithoutMetrics(),
		tracing.WithoutQueryVariables(),
	))
}

// StartFrameSpan opens a server span for one websocket frame. The session's
// long-lived handshake span is not its parent; each frame is its own trace
// root unless ctx already carries a span.
func StartFrameSpan(ctx context.Context, action string, actor domain.Actor, sessionID string) (context.Context, trace.Span) {
	return otel.Tracer(frameTracerName).Start(ctx, "ws "+action,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ws.action", action),
			attribute.String("ws.session_id", sessionID),
			attribute.String("actor.kind", actor.Kind.String()),
			attribute.String("actor.id", actor.ID),
		),
	)
}

// FailSpan marks span as failed with err. A nil err is ignored.
func FailSpan(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
