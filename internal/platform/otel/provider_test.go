package otel

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("PARTYLINE_OTEL_ENDPOINT", "")
	t.Setenv("PARTYLINE_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_NoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("PARTYLINE_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("PARTYLINE_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	t.Setenv("PARTYLINE_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("PARTYLINE_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "test-service")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_RejectsInvalidSampleRatio(t *testing.T) {
	t.Setenv("PARTYLINE_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("PARTYLINE_OTEL_SAMPLE_RATIO", "often")

	shutdown, err := Setup(context.Background(), "test-service")
	if err == nil {
		t.Fatal("expected sample ratio parse error")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown should not error: %v", err)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{ratio: 1, want: sdktrace.AlwaysSample().Description()},
		{ratio: 2, want: sdktrace.AlwaysSample().Description()},
		{ratio: 0, want: sdktrace.NeverSample().Description()},
		{ratio: 0.5, want: sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5)).Description()},
	}
	for _, tc := range tests {
		if got := samplerFor(tc.ratio).Description(); got != tc.want {
			t.Fatalf("samplerFor(%v) = %q, want %q", tc.ratio, got, tc.want)
		}
	}
}

func TestTracerWithoutSetupIsUsable(t *testing.T) {
	_, span := Tracer("partyline/test").Start(context.Background(), "noop")
	span.End()
}
