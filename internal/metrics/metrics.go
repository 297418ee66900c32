// Package metrics exposes the planner's Prometheus collectors.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agenda"

var (
	once sync.Once

	suggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suggestions_total",
			Help:      "Count of suggestion requests by result (found, none, error).",
		},
		[]string{"result"},
	)

	eventsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_created_total",
			Help:      "Count of events created by kind.",
		},
		[]string{"kind"},
	)

	remindersSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Count of occurrence reminders sent.",
		},
	)

	expandedOccurrences = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expanded_occurrences",
			Help:      "Number of occurrences produced per calendar expansion.",
			Buckets:   []float64{0, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(suggestions, eventsCreated, remindersSent, expandedOccurrences)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func IncSuggestion(result string) {
	suggestions.WithLabelValues(result).Inc()
}

func IncEventCreated(kind string) {
	eventsCreated.WithLabelValues(kind).Inc()
}

func IncReminderSent() {
	remindersSent.Inc()
}

func ObserveExpansion(n int) {
	expandedOccurrences.Observe(float64(n))
}
