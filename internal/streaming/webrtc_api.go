package streaming

import (
	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
	"github.com/pion/interceptor/pkg/stats"
	"github.com/pion/interceptor/pkg/twcc"
	"github.com/pion/rtcp"
	pion "github.com/pion/webrtc/v4"
)

// NACKBufferSize is the number of sent packets kept for retransmission.
const NACKBufferSize = 2048

// SRTPReplayProtectionWindow must be at least NACKBufferSize.
const SRTPReplayProtectionWindow = 4096

// VP8PayloadType is the dynamic payload type offered for VP8.
const VP8PayloadType = 96

// NewWebRTCAPI builds a pion API that only offers VP8 video. Keyframe
// requests from the browser are delivered to onKeyFrame.
func NewWebRTCAPI(onKeyFrame func()) (*pion.API, error) {
	m := &pion.MediaEngine{}
	if err := registerCodecs(m); err != nil {
		return nil, err
	}

	i := &interceptor.Registry{}
	if err := configureInterceptors(m, i); err != nil {
		return nil, err
	}
	i.Add(&rtcpMonitorFactory{onKeyFrame: onKeyFrame})

	s := pion.SettingEngine{}
	s.SetSRTPReplayProtectionWindow(SRTPReplayProtectionWindow)

	return pion.NewAPI(
		pion.WithMediaEngine(m),
		pion.WithInterceptorRegistry(i),
		pion.WithSettingEngine(s),
	), nil
}

func registerCodecs(m *pion.MediaEngine) error {
	return m.RegisterCodec(pion.RTPCodecParameters{
		RTPCodecCapability: pion.RTPCodecCapability{
			MimeType:  pion.MimeTypeVP8,
			ClockRate: 90000,
			RTCPFeedback: []pion.RTCPFeedback{
				{Type: "goog-remb"},
				{Type: "ccm", Parameter: "fir"},
				{Type: "nack"},
				{Type: "nack", Parameter: "pli"},
			},
		},
		PayloadType: VP8PayloadType,
	}, pion.RTPCodecTypeVideo)
}

// configureInterceptors installs NACK, RTCP reports, stats and TWCC.
func configureInterceptors(m *pion.MediaEngine, i *interceptor.Registry) error {
	generator, err := nack.NewGeneratorInterceptor()
	if err != nil {
		return err
	}
	responder, err := nack.NewResponderInterceptor(nack.ResponderSize(NACKBufferSize))
	if err != nil {
		return err
	}
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack"}, pion.RTPCodecTypeVideo)
	m.RegisterFeedback(pion.RTCPFeedback{Type: "nack", Parameter: "pli"}, pion.RTPCodecTypeVideo)
	i.Add(responder)
	i.Add(generator)

	receiver, err := report.NewReceiverInterceptor()
	if err != nil {
		return err
	}
	sender, err := report.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(receiver)
	i.Add(sender)

	statsInterceptor, err := stats.NewInterceptor()
	if err != nil {
		return err
	}
	i.Add(statsInterceptor)

	m.RegisterFeedback(pion.RTCPFeedback{Type: pion.TypeRTCPFBTransportCC}, pion.RTPCodecTypeVideo)
	twccSender, err := twcc.NewSenderInterceptor()
	if err != nil {
		return err
	}
	i.Add(twccSender)

	return nil
}

// rtcpMonitorFactory counts inbound RTCP and forwards keyframe requests.
type rtcpMonitorFactory struct {
	onKeyFrame func()
}

func (f *rtcpMonitorFactory) NewInterceptor(_ string) (interceptor.Interceptor, error) {
	return &rtcpMonitor{onKeyFrame: f.onKeyFrame}, nil
}

type rtcpMonitor struct {
	interceptor.NoOp
	onKeyFrame func()
}

func (r *rtcpMonitor) BindRTCPReader(reader interceptor.RTCPReader) interceptor.RTCPReader {
	return interceptor.RTCPReaderFunc(func(b []byte, a interceptor.Attributes) (int, interceptor.Attributes, error) {
		n, attr, err := reader.Read(b, a)
		if err != nil {
			return n, attr, err
		}
		packets, perr := rtcp.Unmarshal(b[:n])
		if perr != nil {
			return n, attr, err
		}
		r.observe(packets)
		return n, attr, err
	})
}

func (r *rtcpMonitor) observe(packets []rtcp.Packet) {
	for _, pkt := range packets {
		rtcpPackets.Inc()
		switch p := pkt.(type) {
		case *rtcp.TransportLayerNack:
			count := 0
			for _, n := range p.Nacks {
				count += len(n.PacketList())
			}
			nacksReceived.Add(float64(count))
		case *rtcp.PictureLossIndication:
			plisReceived.Inc()
			r.keyFrame()
		case *rtcp.FullIntraRequest:
			firsReceived.Inc()
			r.keyFrame()
		}
	}
}

func (r *rtcpMonitor) keyFrame() {
	if r.onKeyFrame != nil {
		r.onKeyFrame()
	}
}
