package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/fulfilment/internal/core/domain"
)

// Prometheus implements port.Metrics with two counter vectors: committed
// operations and rejected operations labelled by error kind.
type Prometheus struct {
	succeeded *prometheus.CounterVec
	failed    *prometheus.CounterVec
}

func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		succeeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfilment",
			Name:      "operations_total",
			Help:      "Committed operations by name.",
		}, []string{"operation"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fulfilment",
			Name:      "operation_failures_total",
			Help:      "Failed operations by name and error kind.",
		}, []string{"operation", "kind"}),
	}
	registerer.MustRegister(p.succeeded, p.failed)
	return p
}

func (p *Prometheus) RecordSuccess(operation string) {
	p.succeeded.WithLabelValues(operation).Inc()
}

func (p *Prometheus) RecordFailure(operation string, err error) {
	p.failed.WithLabelValues(operation, KindLabel(err)).Inc()
}

// KindLabel turns an error into a bounded label value: the snake-cased error
// kind, or "internal" for anything that is not a domain error.
func KindLabel(err error) string {
	kind := domain.KindOf(err)
	if kind == nil {
		return "internal"
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}
