// Package metrics counts the outcome of every crm operation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/acksell/crm/crmerr"
)

const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Operation names.
const (
	CreateCustomer    = "CreateCustomer"
	GetCustomer       = "GetCustomer"
	ListCustomers     = "ListCustomers"
	DeleteCustomer    = "DeleteCustomer"
	CreateNote        = "CreateNote"
	ListNotes         = "ListNotes"
	GetNote           = "GetNote"
	UpdateNote        = "UpdateNote"
	DeleteNote        = "DeleteNote"
	GetAttachmentURL  = "GetAttachmentUrl"
	PublishEvent      = "PublishEvent"
	CascadeNoteDelete = "CascadeNoteDelete"
)

// Recorder is safe for concurrent use. The zero value is not usable, use New.
type Recorder struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// New creates a Recorder with its own registry, also carrying the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Name:      "operation_total",
			Help:      "Number of crm operations by outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crm",
			Name:      "operation_duration_seconds",
			Help:      "Duration of crm operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	r.registry.MustRegister(
		r.operations,
		r.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe records the outcome of op. A nil Recorder is a no-op.
func (r *Recorder) Observe(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, Outcome(err)).Inc()
	r.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// Count increments the counter for op without timing it.
func (r *Recorder) Count(op, outcome string) {
	if r == nil {
		return
	}
	r.operations.WithLabelValues(op, outcome).Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case crmerr.IsValidation(err):
		return OutcomeInvalid
	case crmerr.IsNotFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
