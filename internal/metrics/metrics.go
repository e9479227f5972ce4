// metrics считает вызовы удалённого шлюза (таблицы и бакет) и отправляет
// их в Pushgateway при завершении команды.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/pribylovaa/go-forum/internal/storage"
)

// Исходы вызова шлюза (значение метки outcome).
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics — собственный registry клиента и коллекторы вызовов шлюза.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New регистрирует коллекторы в новом registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "forum",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Gateway calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "forum",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Gateway call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	m.registry.MustRegister(m.calls, m.duration)

	return m
}

// Registry отдаёт registry (для тестов и Push).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// observe фиксирует длительность и исход одного вызова.
func (m *Metrics) observe(op string, start time.Time, err error) {
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.calls.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, storage.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, storage.ErrConflict):
		return OutcomeConflict
	default:
		return OutcomeError
	}
}

// Push отправляет текущие значения в Pushgateway по адресу url под именем job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	const op = "metrics/Push"

	if url == "" {
		return nil
	}

	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
