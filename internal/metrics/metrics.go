// Package metrics contains prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// nolint:gochecknoglobals
var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_http_requests_total",
		Help: "Total HTTP requests by route and status code",
	}, []string{"route", "code"})
	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agora_http_request_duration_seconds",
		Help:    "HTTP request duration seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	Mutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_mutations_total",
		Help: "Total mutations by kind and result",
	}, []string{"kind", "result"})
	UploadedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_uploaded_bytes_total",
		Help: "Total bytes written to blob storage by folder",
	}, []string{"folder"})
	Subscriptions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "agora_subscriptions",
		Help: "Active collection subscriptions",
	}, []string{"collection"})
	Snapshots = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agora_snapshots_total",
		Help: "Total snapshot loads by collection and result",
	}, []string{"collection", "result"})
)

func init() { // nolint:gochecknoinits
	prometheus.MustRegister(HTTPRequests, HTTPDuration, Mutations, UploadedBytes, Subscriptions, Snapshots)
}

// ObserveMutation increments mutation counter with result derived from err.
func ObserveMutation(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}

	Mutations.WithLabelValues(kind, result).Inc()
}
