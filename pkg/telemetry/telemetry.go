// Package telemetry wires OpenTelemetry tracing and metrics around
// kernel submissions (SPEC_FULL §2, observability bullet): one span
// per submit, a counter split by decision, and a gauge tracking ledger
// size. It defaults to the no-op global providers so a caller that
// never configures a real SDK exporter pays nothing and sends nothing
// anywhere — the kernel core itself never imports this package, so a
// live collector is never forced on anyone using the bare Kernel.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kernelgate/governor/pkg/kernel"
	"github.com/kernelgate/governor/pkg/request"
)

const instrumentationName = "governor.kernel"

// Provider holds the tracer and metric instruments used to instrument
// a Kernel. The zero value is unusable; construct with New.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	submitCounter   metric.Int64Counter
	durationHist    metric.Float64Histogram
	ledgerSizeGauge metric.Int64ObservableGauge
}

// New builds a Provider against whatever trace/metric providers are
// currently registered globally (otel.SetTracerProvider /
// otel.SetMeterProvider) — no-op implementations if the caller never
// set any up, a real SDK pipeline if they did.
func New() (*Provider, error) {
	p := &Provider{
		tracer: otel.Tracer(instrumentationName),
		meter:  otel.Meter(instrumentationName),
	}

	var err error
	p.submitCounter, err = p.meter.Int64Counter("governor.submit.total",
		metric.WithDescription("Total number of requests submitted to the kernel, by decision"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create submit counter: %w", err)
	}

	p.durationHist, err = p.meter.Float64Histogram("governor.submit.duration",
		metric.WithDescription("Wall-clock duration of Kernel.Submit"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create duration histogram: %w", err)
	}

	return p, nil
}

// RegisterLedgerSizeGauge registers an observable gauge that samples
// sizeFn (typically k.ExportEvidence bundle length, or a cheaper
// ledger.Size accessor) whenever the configured metric reader collects.
func (p *Provider) RegisterLedgerSizeGauge(kernelID string, sizeFn func() int64) error {
	gauge, err := p.meter.Int64ObservableGauge("governor.ledger.size",
		metric.WithDescription("Number of entries committed to the kernel's audit ledger"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return fmt.Errorf("telemetry: create ledger size gauge: %w", err)
	}
	p.ledgerSizeGauge = gauge

	_, err = p.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(gauge, sizeFn(), metric.WithAttributes(attribute.String("kernel_id", kernelID)))
		return nil
	}, gauge)
	if err != nil {
		return fmt.Errorf("telemetry: register ledger size callback: %w", err)
	}
	return nil
}

// InstrumentedKernel wraps a Kernel's Submit with a span and metrics,
// without the kernel package itself depending on otel.
type InstrumentedKernel struct {
	kernel   *kernel.Kernel
	provider *Provider
}

// Wrap decorates k with tracing and metrics from p.
func Wrap(k *kernel.Kernel, p *Provider) *InstrumentedKernel {
	return &InstrumentedKernel{kernel: k, provider: p}
}

// Submit starts a span named "governor.submit", delegates to the
// wrapped Kernel, records the outcome's decision on the span and the
// submit counter, and records the call's duration.
func (ik *InstrumentedKernel) Submit(ctx context.Context, req request.Request) request.Receipt {
	start := time.Now()
	ctx, span := ik.provider.tracer.Start(ctx, "governor.submit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("governor.kernel_id", ik.kernel.KernelID()),
			attribute.String("governor.request_id", req.RequestID),
			attribute.String("governor.actor", req.Actor),
		),
	)
	defer span.End()

	receipt := ik.kernel.Submit(ctx, req)

	attrs := []attribute.KeyValue{
		attribute.String("governor.decision", string(receipt.Decision)),
		attribute.String("governor.status", string(receipt.Status)),
	}
	span.SetAttributes(attrs...)
	ik.provider.submitCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	ik.provider.durationHist.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))

	if receipt.Status == request.Failed || receipt.Status == request.Rejected {
		span.RecordError(fmt.Errorf("governor: submit ended in status %s", receipt.Status))
	}

	return receipt
}

// Unwrap returns the underlying Kernel, e.g. for Halt/ExportEvidence
// calls that don't need instrumentation.
func (ik *InstrumentedKernel) Unwrap() *kernel.Kernel { return ik.kernel }
