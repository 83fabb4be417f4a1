package ref

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnnl_ref_primitive_cache_hits_total",
		Help: "Total number of primitive creations served from the primitive cache",
	})

	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnnl_ref_primitive_cache_misses_total",
		Help: "Total number of primitive creations that compiled a new program",
	})

	cacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dnnl_ref_primitive_cache_evictions_total",
		Help: "Total number of programs evicted from the primitive cache",
	})

	libraryBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dnnl_ref_library_buffer_bytes",
		Help: "Current total size of library-owned memory buffers in bytes",
	})

	kernelSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dnnl_ref_kernel_seconds",
		Help:    "Reference kernel execution time",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{"op"})
)
