package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	elementsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_server_elements_processed_total",
		Help: "Input elements run through served primitives",
	}, []string{"operation"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnnl_server_request_duration_seconds",
		Help:    "Time spent processing execute requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_server_requests_total",
		Help: "Execute requests by endpoint and response code",
	}, []string{"endpoint", "code"})

	inflightBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnnl_server_inflight_bytes",
		Help: "Input bytes admitted and not yet released",
	})
)
