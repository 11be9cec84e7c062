// Package metrics holds the Prometheus collectors of the scraper. They are
// registered with the default registry on import and served by GET /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "track17"

// Scrape outcomes used as the "outcome" label.
const (
	OutcomeSuccess           = "success"
	OutcomeLaunchFailure     = "launch_failure"
	OutcomeNavigationTimeout = "navigation_timeout"
	OutcomeNavigationFailure = "navigation_failure"
	OutcomeContentNotFound   = "content_not_found"
	OutcomeUnavailable       = "unavailable"
	OutcomeError             = "error"
)

// ScrapesTotal counts finished scrapes.
// Labels:
//   - outcome: one of the Outcome* constants
var ScrapesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scrapes_total",
		Help:      "Total number of tracking scrapes by outcome.",
	},
	[]string{"outcome"},
)

// ScrapeDuration measures a scrape from gate entry to teardown.
var ScrapeDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scrape_duration_seconds",
		Help:      "Duration of tracking scrapes by outcome.",
		Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120},
	},
	[]string{"outcome"},
)

// ActiveSessions is the number of browser sessions currently alive.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "browser_sessions_active",
		Help:      "Number of headless browser sessions currently running.",
	},
)

// ObserveScrape records one finished scrape.
func ObserveScrape(outcome string, elapsed time.Duration) {
	ScrapesTotal.WithLabelValues(outcome).Inc()
	ScrapeDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}
