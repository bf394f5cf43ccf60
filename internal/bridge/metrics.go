package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "bridge",
		Name:      "frames_captured_total",
		Help:      "Frames stored in the frame cache",
	})

	pullTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "bridge",
		Name:      "pull_timeouts_total",
		Help:      "Frame pulls that timed out",
	})

	lastFrameTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptzbridge",
		Subsystem: "bridge",
		Name:      "last_frame_timestamp_seconds",
		Help:      "Unix time of the last captured frame",
	})

	stalled = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptzbridge",
		Subsystem: "bridge",
		Name:      "stalled",
		Help:      "1 while the capture source is not delivering frames",
	})

	samplesProduced = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "bridge",
		Name:      "samples_produced_total",
		Help:      "Samples handed to consumers",
	}, []string{"kind"})
)
