package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Item sources for generated study material.
const (
	SourceRemote  = "remote"
	SourceLocal   = "local"
	SourceDefault = "default"
)

var (
	itemsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsprint",
			Name:      "items_generated_total",
			Help:      "Generated study items by kind (question, flashcard) and source (remote, local, default)",
		},
		[]string{"kind", "source"},
	)

	slidesSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsprint",
			Name:      "slides_skipped_total",
			Help:      "Slides that produced no item, by kind and reason",
		},
		[]string{"kind", "reason"},
	)

	remoteReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsprint",
			Name:      "remote_requests_total",
			Help:      "Language model requests by operation, model and result",
		},
		[]string{"operation", "model", "result"},
	)

	remoteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "skillsprint",
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of language model requests by operation and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "model"},
	)

	documentsParsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "skillsprint",
			Name:      "documents_parsed_total",
			Help:      "Parsed uploads by result (ok, placeholder)",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(itemsGenerated, slidesSkipped, remoteReqs, remoteLatency, documentsParsed)
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func IncGenerated(kind, source string, n int) {
	if n <= 0 {
		return
	}
	itemsGenerated.WithLabelValues(kind, source).Add(float64(n))
}

func IncSkipped(kind, reason string) {
	slidesSkipped.WithLabelValues(kind, reason).Inc()
}

func ObserveRemote(operation, model, result string, d time.Duration) {
	remoteReqs.WithLabelValues(operation, model, result).Inc()
	remoteLatency.WithLabelValues(operation, model).Observe(d.Seconds())
}

func IncParsed(result string) {
	documentsParsed.WithLabelValues(result).Inc()
}
