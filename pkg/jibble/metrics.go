package jibble

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "jibble_request_duration_seconds",
	Help:    "Latency of Jibble API requests, by endpoint and final HTTP status.",
	Buckets: prometheus.DefBuckets,
}, []string{"endpoint", "status"})
