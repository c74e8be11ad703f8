package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "exclusive_content"

// Decrypt result label values
const (
	ResultSuccess   = "success"
	ResultMismatch  = "verifier_mismatch"
	ResultMalformed = "malformed"
	ResultError     = "error"
)

// Metrics holds the service collectors
type Metrics struct {
	Generations *prometheus.CounterVec
	Decrypts    *prometheus.CounterVec
	Stored      prometheus.GaugeFunc
}

// New creates the collectors and registers them with reg. stored is sampled on
// every scrape for the number of live generated results.
func New(reg prometheus.Registerer, stored func() float64) *Metrics {
	m := &Metrics{
		Generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Number of exclusive content generations, by outcome.",
		}, []string{"outcome"}),
		Decrypts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypts_total",
			Help:      "Number of decrypt checks, by result.",
		}, []string{"result"}),
		Stored: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stored_items",
			Help:      "Number of unexpired generated results held in memory.",
		}, stored),
	}
	reg.MustRegister(m.Generations, m.Decrypts, m.Stored)
	return m
}

// RecordGeneration counts one generation attempt
func (m *Metrics) RecordGeneration(err error) {
	outcome := ResultSuccess
	if err != nil {
		outcome = ResultError
	}
	m.Generations.WithLabelValues(outcome).Inc()
}

// RecordDecrypt counts one decrypt attempt with the given result label
func (m *Metrics) RecordDecrypt(result string) {
	m.Decrypts.WithLabelValues(result).Inc()
}
