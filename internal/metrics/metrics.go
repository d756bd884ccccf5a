// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "searchai"

var (
	SearchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_submitted_total",
		Help:      "Search jobs accepted by the API.",
	})

	SearchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_finished_total",
		Help:      "Search jobs that reached a terminal status.",
	}, []string{"status"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_duration_seconds",
		Help:      "Time from submission to terminal status.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
	})

	PagesScraped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pages_scraped_total",
		Help:      "Scraped pages by outcome (usable, short, error).",
	}, []string{"outcome"})

	ContextAnswers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "context_answers_total",
		Help:      "Contextual answers by response type.",
	}, []string{"type"})

	ResultsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "results_swept_total",
		Help:      "Stored results removed by the retention sweeper.",
	})
)

// Handler serves the default registry through fiber
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
