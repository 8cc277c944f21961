package client

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsOptions configures NewOTelMetrics.
type OTelMetricsOptions struct {
	MeterProvider          metric.MeterProvider
	Meter                  metric.Meter
	InstrumentationName    string
	InstrumentationVersion string
}

var _ MetricHook = (*OTelMetrics)(nil)

// OTelMetrics implements MetricHook using OpenTelemetry counters.
type OTelMetrics struct {
	meter                   metric.Meter
	dispatcherStarted       metric.Int64Counter
	dispatcherStopped       metric.Int64Counter
	dispatcherProgressError metric.Int64Counter
	submitQueued            metric.Int64Counter
	operationCompleted      metric.Int64Counter
	operationFailed         metric.Int64Counter
}

// NewOTelMetrics constructs a MetricHook that emits OpenTelemetry counter measurements.
func NewOTelMetrics(opts OTelMetricsOptions) (*OTelMetrics, error) {
	meter := opts.Meter
	if meter == nil {
		provider := opts.MeterProvider
		if provider == nil {
			provider = otel.GetMeterProvider()
		}
		name := opts.InstrumentationName
		if name == "" {
			name = "github.com/rdmakit/dct-go/client"
		}
		meter = provider.Meter(name, metric.WithInstrumentationVersion(opts.InstrumentationVersion))
	}

	dispatcherStarted, err := meter.Int64Counter("dct.client.dispatcher.started")
	if err != nil {
		return nil, err
	}
	dispatcherStopped, err := meter.Int64Counter("dct.client.dispatcher.stopped")
	if err != nil {
		return nil, err
	}
	dispatcherProgressError, err := meter.Int64Counter("dct.client.dispatcher.progress_errors")
	if err != nil {
		return nil, err
	}
	submitQueued, err := meter.Int64Counter("dct.client.submit.queued")
	if err != nil {
		return nil, err
	}
	operationCompleted, err := meter.Int64Counter("dct.client.operations.completed")
	if err != nil {
		return nil, err
	}
	operationFailed, err := meter.Int64Counter("dct.client.operations.failed")
	if err != nil {
		return nil, err
	}

	return &OTelMetrics{
		meter:                   meter,
		dispatcherStarted:       dispatcherStarted,
		dispatcherStopped:       dispatcherStopped,
		dispatcherProgressError: dispatcherProgressError,
		submitQueued:            submitQueued,
		operationCompleted:      operationCompleted,
		operationFailed:         operationFailed,
	}, nil
}

// DispatcherStarted records that the dispatcher loop has started executing.
func (o *OTelMetrics) DispatcherStarted(attrs map[string]string) {
	o.dispatcherStarted.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// DispatcherStopped records that the dispatcher loop has exited.
func (o *OTelMetrics) DispatcherStopped(attrs map[string]string) {
	o.dispatcherStopped.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// DispatcherProgressError counts progress errors observed by the dispatcher.
func (o *OTelMetrics) DispatcherProgressError(kind string, _ error, attrs map[string]string) {
	attributes := append(otelAttrs(attrs), attribute.String(labelKind, kind))
	o.dispatcherProgressError.Add(context.Background(), 1, metric.WithAttributes(attributes...))
}

// SubmitQueued records a submission deferred for lack of initiator budget.
func (o *OTelMetrics) SubmitQueued(attrs map[string]string) {
	o.submitQueued.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// OperationCompleted records a successful operation completion.
func (o *OTelMetrics) OperationCompleted(attrs map[string]string) {
	o.operationCompleted.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

// OperationFailed records a failed operation completion.
func (o *OTelMetrics) OperationFailed(_ error, attrs map[string]string) {
	o.operationFailed.Add(context.Background(), 1, metric.WithAttributes(otelAttrs(attrs)...))
}

func otelAttrs(attrs map[string]string) []attribute.KeyValue {
	kvs := []attribute.KeyValue{
		attribute.String(labelPolicy, attrs[labelPolicy]),
	}
	if v := attrs[labelStatus]; v != "" {
		kvs = append(kvs, attribute.String(labelStatus, v))
	}
	if v := attrs[labelOperation]; v != "" {
		kvs = append(kvs, attribute.String(labelOperation, v))
	}
	return kvs
}
