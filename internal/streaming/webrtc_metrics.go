package streaming

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	packetsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "packets_sent_total",
		Help:      "RTP packets written to consumers",
	})

	bytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "bytes_sent_total",
		Help:      "RTP payload bytes written to consumers",
	})

	framesEncoded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "frames_encoded_total",
		Help:      "Video frames encoded for consumers",
	})

	encodeErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "encode_errors_total",
		Help:      "Encoder failures that ended a consumer",
	})

	rtcpPackets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "rtcp_packets_total",
		Help:      "RTCP packets received from consumers",
	})

	nacksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "nacks_received_total",
		Help:      "Packets reported lost by consumers",
	})

	plisReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "plis_received_total",
		Help:      "Picture Loss Indications received",
	})

	firsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "firs_received_total",
		Help:      "Full Intra Requests received",
	})

	activePeers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ptzbridge",
		Subsystem: "webrtc",
		Name:      "active_peers",
		Help:      "Connected WebRTC consumers",
	})
)
