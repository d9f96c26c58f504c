package metrics

import (
	"context"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics methods are safe on a nil receiver so components can run without
// instrumentation.
type Metrics struct {
	HTTPRequests      metric.Int64Counter
	HTTPDuration      metric.Float64Histogram
	Operations        metric.Int64Counter
	Failures          metric.Int64Counter
	RewardsPaid       metric.Int64Counter
	VestingReleased   metric.Int64Counter
	SideEffectErrors  metric.Int64Counter
	ActiveConnections metric.Int64UpDownCounter
}

// Setup registers the instruments on a fresh registry and returns the
// handler serving it.
func Setup(serviceName string) (*Metrics, http.Handler, error) {
	reg := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{}

	m.HTTPRequests, err = meter.Int64Counter(
		"ledger_http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPDuration, err = meter.Float64Histogram(
		"ledger_http_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Operations, err = meter.Int64Counter(
		"ledger_operations_total",
		metric.WithDescription("Committed ledger operations by program and op"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.Failures, err = meter.Int64Counter(
		"ledger_operation_failures_total",
		metric.WithDescription("Rejected ledger operations by op and error kind"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RewardsPaid, err = meter.Int64Counter(
		"ledger_rewards_paid_total",
		metric.WithDescription("Reward base units paid out, referral bonuses included"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.VestingReleased, err = meter.Int64Counter(
		"ledger_vesting_released_total",
		metric.WithDescription("Vested base units released"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.SideEffectErrors, err = meter.Int64Counter(
		"ledger_side_effect_errors_total",
		metric.WithDescription("Journal, publish and cache failures after a committed operation"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ActiveConnections, err = meter.Int64UpDownCounter(
		"ledger_websocket_connections",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, nil, err
	}

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	return m, handler, nil
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)

	m.HTTPRequests.Add(ctx, 1, labels)
	m.HTTPDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordOperation(ctx context.Context, program, op string) {
	if m == nil {
		return
	}
	m.Operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("program", program),
		attribute.String("op", op),
	))
}

func (m *Metrics) RecordFailure(ctx context.Context, op, kind string) {
	if m == nil {
		return
	}
	m.Failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("kind", kind),
	))
}

func (m *Metrics) RecordRewardPaid(ctx context.Context, program string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.RewardsPaid.Add(ctx, clamp(amount), metric.WithAttributes(attribute.String("program", program)))
}

func (m *Metrics) RecordVestingReleased(ctx context.Context, program string, amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.VestingReleased.Add(ctx, clamp(amount), metric.WithAttributes(attribute.String("program", program)))
}

func (m *Metrics) RecordSideEffectError(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.SideEffectErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, 1)
}

func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m == nil {
		return
	}
	m.ActiveConnections.Add(ctx, -1)
}

func clamp(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
