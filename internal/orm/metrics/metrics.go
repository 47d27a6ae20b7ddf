// Package metrics exports statement counts as prometheus metrics.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conduit-lang/entityorm/internal/orm/database"
)

const (
	namespace = "entityorm"
	kindLabel = "kind"
)

// QueryCounter counts executed statements by kind, implementing
// database.Counter
type QueryCounter struct {
	queries *prometheus.CounterVec
}

var _ database.Counter = (*QueryCounter)(nil)

// NewQueryCounter creates a query counter registered with registerer, a nil
// registerer leaving the counter unregistered
func NewQueryCounter(registerer prometheus.Registerer) (*QueryCounter, error) {
	counter := &QueryCounter{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Number of executed statements by kind.",
		}, []string{kindLabel}),
	}
	if registerer == nil {
		return counter, nil
	}
	if err := registerer.Register(counter.queries); err != nil {
		return nil, fmt.Errorf("failed to register query counter: %w", err)
	}
	return counter, nil
}

// Count increments the counter of kind
func (c *QueryCounter) Count(kind database.QueryKind) {
	c.queries.WithLabelValues(kind.String()).Inc()
}

// Collector returns the underlying counter vector
func (c *QueryCounter) Collector() prometheus.Collector {
	return c.queries
}
