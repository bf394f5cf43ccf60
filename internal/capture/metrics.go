package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "capture",
		Name:      "frames_decoded_total",
		Help:      "Frames decoded from the source stream",
	})

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "capture",
		Name:      "frames_dropped_total",
		Help:      "Decoded frames overwritten before they were pulled",
	})

	framesCorrupt = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "capture",
		Name:      "frames_corrupt_total",
		Help:      "Stream parts skipped because they did not decode as JPEG",
	})

	reconnects = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "capture",
		Name:      "reconnects_total",
		Help:      "Source stream reconnect attempts",
	})

	streamUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptzbridge",
		Subsystem: "capture",
		Name:      "stream_up",
		Help:      "1 while the source stream is connected",
	})
)
