package publisher

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"submission_service/internal/domain"
)

type Metrics struct {
	published *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_events_published_total",
			Help: "Submission events handed to the event channel, by routing key and result.",
		}, []string{"routing_key", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.published)
	}
	return m
}

type instrumented struct {
	next    Publisher
	metrics *Metrics
	keyFn   func(domain.EventKind) string
}

// Instrument counts publish outcomes per routing key. keyFn selects the
// key space of the wrapped channel.
func Instrument(next Publisher, metrics *Metrics, keyFn func(domain.EventKind) string) Publisher {
	return &instrumented{next: next, metrics: metrics, keyFn: keyFn}
}

func (p *instrumented) Publish(ctx context.Context, event domain.Event) error {
	err := p.next.Publish(ctx, event)
	result := "success"
	if err != nil {
		result = "error"
	}
	p.metrics.published.WithLabelValues(p.keyFn(event.Kind()), result).Inc()
	return err
}
