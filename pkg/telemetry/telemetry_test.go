package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kernelgate/governor/pkg/kernel"
	"github.com/kernelgate/governor/pkg/policy"
	"github.com/kernelgate/governor/pkg/request"
)

func testKernel(t *testing.T) *kernel.Kernel {
	t.Helper()
	p, err := policy.New(policy.Config{
		AllowedActors:   []string{"alice"},
		AllowedTools:    []string{"search"},
		MaxIntentLength: 200,
		MaxParamsBytes:  1024,
	})
	if err != nil {
		t.Fatal(err)
	}
	k, err := kernel.New("k1", p, policy.VariantPermissive, kernel.MapRegistry{
		"search": func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
			return "ok", nil
		},
	}, kernel.NewVirtualClock(1000))
	if err != nil {
		t.Fatal(err)
	}
	return k
}

// withRecordingProviders installs real SDK tracer/meter providers backed
// by in-memory collectors, so tests can assert that Submit actually
// emits a span and records a metric rather than trusting the no-op
// global default silently.
func withRecordingProviders(t *testing.T) (*tracetest.InMemoryExporter, *sdkmetric.ManualReader) {
	t.Helper()
	spanRecorder := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanRecorder))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	prevTP := otel.GetTracerProvider()
	prevMP := otel.GetMeterProvider()
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})
	return spanRecorder, reader
}

func TestInstrumentedKernelSubmitDelegates(t *testing.T) {
	k := testKernel(t)
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ik := Wrap(k, p)

	r := ik.Submit(context.Background(), request.Request{RequestID: "r1", Actor: "alice", Intent: "hi"})
	if r.Status != request.Accepted {
		t.Fatalf("expected instrumented submit to delegate and succeed, got %+v", r)
	}
	if ik.Unwrap() != k {
		t.Fatal("expected Unwrap to return the original kernel")
	}
}

func TestSubmitRecordsASpan(t *testing.T) {
	spanRecorder, _ := withRecordingProviders(t)
	k := testKernel(t)
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ik := Wrap(k, p)

	ik.Submit(context.Background(), request.Request{RequestID: "r1", Actor: "alice", Intent: "hi"})

	spans := spanRecorder.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected exactly one recorded span, got %d", len(spans))
	}
	if spans[0].Name != "governor.submit" {
		t.Fatalf("expected span name governor.submit, got %s", spans[0].Name)
	}
}

func TestSubmitRecordsSubmitCounter(t *testing.T) {
	_, reader := withRecordingProviders(t)
	k := testKernel(t)
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	ik := Wrap(k, p)

	ik.Submit(context.Background(), request.Request{RequestID: "r1", Actor: "alice", Intent: "hi"})

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "governor.submit.total" {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("expected governor.submit.total to be recorded after Submit")
	}
}

func TestRegisterLedgerSizeGauge(t *testing.T) {
	k := testKernel(t)
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	sizeFn := func() int64 {
		return int64(len(k.ExportEvidence().Entries))
	}
	if err := p.RegisterLedgerSizeGauge("k1", sizeFn); err != nil {
		t.Fatalf("expected gauge registration to succeed against the global no-op provider, got %v", err)
	}
}
