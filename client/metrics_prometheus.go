package client

import "github.com/prometheus/client_golang/prometheus"

// PrometheusMetricsOptions configures NewPrometheusMetrics.
type PrometheusMetricsOptions struct {
	Registerer  prometheus.Registerer
	Namespace   string
	Subsystem   string
	ConstLabels prometheus.Labels
}

var _ MetricHook = (*PrometheusMetrics)(nil)

// PrometheusMetrics implements MetricHook using Prometheus counters.
type PrometheusMetrics struct {
	dispatcherStarted       *prometheus.CounterVec
	dispatcherStopped       *prometheus.CounterVec
	dispatcherProgressError *prometheus.CounterVec
	submitQueued            *prometheus.CounterVec
	operationCompleted      *prometheus.CounterVec
	operationFailed         *prometheus.CounterVec
}

// NewPrometheusMetrics constructs a MetricHook backed by Prometheus counters.
func NewPrometheusMetrics(opts PrometheusMetricsOptions) (*PrometheusMetrics, error) {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &PrometheusMetrics{
		dispatcherStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_dispatcher_started_total",
			Help:        "Number of times the dispatcher loop started",
			ConstLabels: opts.ConstLabels,
		}, dispatcherLabelKeys),
		dispatcherStopped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_dispatcher_stopped_total",
			Help:        "Number of times the dispatcher loop stopped",
			ConstLabels: opts.ConstLabels,
		}, dispatcherLabelKeys),
		dispatcherProgressError: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_dispatcher_progress_errors_total",
			Help:        "Number of progress errors surfaced by the dispatcher",
			ConstLabels: opts.ConstLabels,
		}, progressErrorLabelKeys),
		submitQueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_submit_queued_total",
			Help:        "Number of submissions deferred for lack of initiator budget",
			ConstLabels: opts.ConstLabels,
		}, dispatcherLabelKeys),
		operationCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_operations_completed_total",
			Help:        "Number of successful operation completions",
			ConstLabels: opts.ConstLabels,
		}, dispatcherLabelKeys),
		operationFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   opts.Namespace,
			Subsystem:   opts.Subsystem,
			Name:        "dct_client_operations_failed_total",
			Help:        "Number of errored operation completions",
			ConstLabels: opts.ConstLabels,
		}, dispatcherLabelKeys),
	}

	var err error
	if p.dispatcherStarted, err = registerCounterVec(reg, p.dispatcherStarted); err != nil {
		return nil, err
	}
	if p.dispatcherStopped, err = registerCounterVec(reg, p.dispatcherStopped); err != nil {
		return nil, err
	}
	if p.dispatcherProgressError, err = registerCounterVec(reg, p.dispatcherProgressError); err != nil {
		return nil, err
	}
	if p.submitQueued, err = registerCounterVec(reg, p.submitQueued); err != nil {
		return nil, err
	}
	if p.operationCompleted, err = registerCounterVec(reg, p.operationCompleted); err != nil {
		return nil, err
	}
	if p.operationFailed, err = registerCounterVec(reg, p.operationFailed); err != nil {
		return nil, err
	}

	return p, nil
}

var (
	dispatcherLabelKeys    = []string{labelPolicy}
	progressErrorLabelKeys = []string{labelPolicy, labelKind}
)

func (p *PrometheusMetrics) DispatcherStarted(attrs map[string]string) {
	p.dispatcherStarted.With(labels(attrs, dispatcherLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) DispatcherStopped(attrs map[string]string) {
	p.dispatcherStopped.With(labels(attrs, dispatcherLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) DispatcherProgressError(kind string, _ error, attrs map[string]string) {
	labs := labels(attrs, progressErrorLabelKeys...)
	labs[labelKind] = kind
	p.dispatcherProgressError.With(labs).Inc()
}

func (p *PrometheusMetrics) SubmitQueued(attrs map[string]string) {
	p.submitQueued.With(labels(attrs, dispatcherLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) OperationCompleted(attrs map[string]string) {
	p.operationCompleted.With(labels(attrs, dispatcherLabelKeys...)).Inc()
}

func (p *PrometheusMetrics) OperationFailed(_ error, attrs map[string]string) {
	p.operationFailed.With(labels(attrs, dispatcherLabelKeys...)).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func labels(attrs map[string]string, keys ...string) prometheus.Labels {
	labs := make(prometheus.Labels, len(keys))
	for _, key := range keys {
		labs[key] = attrs[key]
	}
	return labs
}
