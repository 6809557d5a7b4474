package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
	"sync"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	IngestionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "jobfeed_ingestion_duration_seconds",
			Help:    "Duration of each ingestion cycle in seconds.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)
	SourceFetchDuration = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "jobfeed_source_fetch_duration_seconds",
			Help:       "Duration of a single source fetch.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"module"},
	)
	PostingsAddedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_postings_added_total",
			Help: "Total number of postings stored for the first time.",
		},
		[]string{"module"},
	)
	PostingsResurfacedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_postings_resurfaced_total",
			Help: "Total number of already known postings seen again.",
		},
		[]string{"module"},
	)
	SourceFailuresCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_source_failures_total",
			Help: "Total number of failed source fetches.",
		},
		[]string{"module"},
	)
	DiagnosesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobfeed_diagnoses_total",
			Help: "Diagnosis attempts for failed sources by result.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// Register adds all collectors to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ErrorsCounter)
		prometheus.MustRegister(IngestionDuration)
		prometheus.MustRegister(SourceFetchDuration)
		prometheus.MustRegister(PostingsAddedCounter)
		prometheus.MustRegister(PostingsResurfacedCounter)
		prometheus.MustRegister(SourceFailuresCounter)
		prometheus.MustRegister(DiagnosesCounter)
	})
}

func StartMetricsServer(address string) {

	Register()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(address, mux))
	}()
	log.Infof("metrics server listening on %s", address)
}
