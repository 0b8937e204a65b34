package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestTracingTransportPropagatesTraceContext(t *testing.T) {
	SetPropagator()

	var traceparent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceparent = r.Header.Get("Traceparent")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	parent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), parent)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/assets/logo.png", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := WrapHTTPClient(srv.Client()).Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	resp.Body.Close()

	if !strings.Contains(traceparent, traceID.String()) {
		t.Fatalf("expected traceparent to carry %s, got %q", traceID, traceparent)
	}
}

func TestWrapHTTPClientKeepsTimeout(t *testing.T) {
	base := &http.Client{Timeout: 42}
	wrapped := WrapHTTPClient(base)
	if wrapped == base {
		t.Fatal("expected a copy of the client")
	}
	if wrapped.Timeout != base.Timeout {
		t.Fatalf("timeout not preserved: %v", wrapped.Timeout)
	}
	if _, ok := wrapped.Transport.(TracingTransport); !ok {
		t.Fatalf("unexpected transport %T", wrapped.Transport)
	}
	if WrapHTTPClient(nil) == nil {
		t.Fatal("nil client should yield a default client")
	}
}

func TestEndSpanAcceptsErrors(t *testing.T) {
	_, span := StartSpan(context.Background(), "documents.test")
	EndSpan(span, errors.New("boom"))
	if span.IsRecording() {
		t.Fatal("span should not record after End")
	}
}
