package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus implements ports.Metrics over a fixed set of registered vectors.
// Unknown metric names are dropped rather than registered on the fly.
type Prometheus struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
	labels     map[string][]string
}

// NewPrometheus creates and registers all gateway metrics. A nil registry
// uses the default registerer.
func NewPrometheus(registry prometheus.Registerer) *Prometheus {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	p := &Prometheus{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		labels:     make(map[string][]string),
	}

	counter := func(name, help string, labels ...string) {
		p.counters[name] = factory.NewCounterVec(
			prometheus.CounterOpts{Name: name, Help: help}, labels)
		p.labels[name] = labels
	}
	histogram := func(name, help string, buckets []float64, labels ...string) {
		p.histograms[name] = factory.NewHistogramVec(
			prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
		p.labels[name] = labels
	}
	gauge := func(name, help string, labels ...string) {
		p.gauges[name] = factory.NewGaugeVec(
			prometheus.GaugeOpts{Name: name, Help: help}, labels)
		p.labels[name] = labels
	}

	counter(PaymentInitTotal, "Payment initialization requests", "result")
	counter(PaymentInitAmountTotal, "Initialized payment amount in minor units", "currency")
	counter(PaymentConfirmTotal, "Payment confirm requests", "result")
	counter(PaymentCancelTotal, "Payment cancel requests", "result", "operation")
	counter(PaymentCheckTotal, "Status query requests", "source")
	counter(AuthFailuresTotal, "Authentication failures", "reason")
	counter(RateLimitHitsTotal, "Requests rejected by rate limiting", "route")
	counter(ExpirySweepTransitionsTotal, "Payments transitioned by the expiry sweeper", "status")
	counter(BankRequestsTotal, "Bank adapter calls", "op", "result")
	histogram(BankRequestDurationSeconds, "Bank adapter call duration",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}, "op")
	gauge(PaymentsInFlight, "Payments currently between init and a final status")

	return p
}

func (p *Prometheus) values(name string, labels map[string]string) []string {
	keys := p.labels[name]
	vals := make([]string, len(keys))
	for i, k := range keys {
		vals[i] = labels[k]
	}
	return vals
}

func (p *Prometheus) IncCounter(name string, labels map[string]string) {
	p.AddCounter(name, 1, labels)
}

func (p *Prometheus) AddCounter(name string, value float64, labels map[string]string) {
	if vec, ok := p.counters[name]; ok {
		vec.WithLabelValues(p.values(name, labels)...).Add(value)
	}
}

func (p *Prometheus) ObserveHistogram(name string, value float64, labels map[string]string) {
	if vec, ok := p.histograms[name]; ok {
		vec.WithLabelValues(p.values(name, labels)...).Observe(value)
	}
}

func (p *Prometheus) AddGauge(name string, delta float64, labels map[string]string) {
	if vec, ok := p.gauges[name]; ok {
		vec.WithLabelValues(p.values(name, labels)...).Add(delta)
	}
}
