// Package metrics holds the Prometheus collectors of the deployment server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DeploysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devver_deploys_total",
		Help: "Deploy requests by outcome (success, or the failure kind)",
	}, []string{"result"})

	DeployDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "devver_deploy_duration_seconds",
		Help:    "End-to-end duration of deploy requests",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"project"})

	FilesReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devver_files_received_total",
		Help: "Files received in deploy requests",
	})

	BlobsStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "devver_blobs_stored_total",
		Help: "New blobs written to the content-addressed store",
	})

	DeploymentSeedsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devver_deployment_seeds_total",
		Help: "How new deployment directories were seeded",
	}, []string{"source"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "devver_http_requests_total",
		Help: "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})
)
