package server

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "tsu-payments"

// RequestRecorder receives per-request metrics
type RequestRecorder interface {
	ObserveRequest(route, method string, status int, duration time.Duration)
	SetLimiterClients(n int)
}

type observability struct {
	tracer   trace.Tracer
	recorder RequestRecorder
}

// newObservability falls back to the global tracer provider when tp is nil
func newObservability(tp trace.TracerProvider, recorder RequestRecorder) *observability {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &observability{tracer: tp.Tracer(tracerName), recorder: recorder}
}

func (o *observability) Middleware(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := o.tracer.Start(ctx, route, trace.WithSpanKind(trace.SpanKindServer), trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
			))
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", recorder.status))
			if recorder.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(recorder.status))
			}
			span.End()

			if o.recorder != nil {
				o.recorder.ObserveRequest(route, r.Method, recorder.status, time.Since(start))
			}
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
