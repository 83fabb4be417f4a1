package dnnl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	nativeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_native_errors_total",
		Help: "Total number of failed native calls by error kind",
	}, []string{"kind"})

	primitivesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_primitives_created_total",
		Help: "Total number of primitives created",
	}, []string{"op"})

	primitiveExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_primitive_executions_total",
		Help: "Total number of primitive submissions",
	}, []string{"op"})

	streamWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dnnl_stream_wait_seconds",
		Help:    "Time spent blocked in stream wait",
		Buckets: prometheus.DefBuckets,
	})

	liveObjects = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dnnl_live_objects",
		Help: "Native objects currently owned by the safety layer",
	}, []string{"type"})

	bufferBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnnl_library_buffer_bytes",
		Help: "Bytes held by aligned buffers",
	})
)
