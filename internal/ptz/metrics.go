package ptz

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "ptz",
		Name:      "commands_total",
		Help:      "Dispatched PTZ commands by outcome",
	}, []string{"command", "result"})

	commandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ptzbridge",
		Subsystem: "ptz",
		Name:      "command_duration_seconds",
		Help:      "Time spent sending a command to the device",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
	}, []string{"command"})
)
