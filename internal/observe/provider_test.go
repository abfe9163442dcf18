package observe

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

func TestInitProvider_ServesMetrics(t *testing.T) {
	prevMP, prevTP := otel.GetMeterProvider(), otel.GetTracerProvider()
	t.Cleanup(func() {
		otel.SetMeterProvider(prevMP)
		otel.SetTracerProvider(prevTP)
	})

	tel, err := InitProvider(context.Background(), ProviderConfig{ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("InitProvider: %v", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	}()

	m, err := NewMetrics(otel.GetMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	m.RecordChain(context.Background())

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{"smt_search_chains", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestServiceResource_MatchesSDKSchema(t *testing.T) {
	t.Parallel()

	if got, want := semconv.SchemaURL, resource.Default().SchemaURL(); got != want {
		t.Fatalf("semconv schema %q does not match SDK default resource schema %q", got, want)
	}
	res, err := serviceResource(ProviderConfig{ServiceName: "smt-tools", ServiceVersion: "test"})
	if err != nil {
		t.Fatalf("serviceResource: %v", err)
	}
	var name string
	for _, kv := range res.Attributes() {
		if kv.Key == semconv.ServiceNameKey {
			name = kv.Value.AsString()
		}
	}
	if name != "smt-tools" {
		t.Errorf("service.name = %q, want %q", name, "smt-tools")
	}
}
