package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recordsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_sink_records_sent_total",
		Help: "Tensor records delivered to the Flight sink",
	}, []string{"dataset"})

	sendFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dnnl_sink_send_failures_total",
		Help: "Failed or skipped Flight sink deliveries",
	}, []string{"dataset", "reason"})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dnnl_sink_breaker_state",
		Help: "Circuit breaker state (0 closed, 1 open, 2 half-open)",
	}, []string{"breaker"})
)
