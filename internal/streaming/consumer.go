package streaming

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/smazurov/ptzbridge/internal/bridge"
)

// rtpMTU leaves room for SRTP and TURN overhead.
const rtpMTU = 1200

// Encoder turns frames read from a video.Reader into compressed frames.
// A mediadevices codec.ReadCloser satisfies it.
type Encoder interface {
	Read() ([]byte, func(), error)
	Close() error
}

// EncoderFactory builds an encoder reading from r.
type EncoderFactory func(r video.Reader, p prop.Media) (Encoder, error)

// keyFrameForcer is implemented by encoders that can emit an intra frame
// on demand.
type keyFrameForcer interface {
	ForceKeyFrame() error
}

// VideoConfig describes the outbound stream.
type VideoConfig struct {
	Width  int
	Height int
	FPS    int
}

// rtpWriter is the subset of a local track the pump needs.
type rtpWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// pump drives one consumer: at the consumer's own frame rate it takes a
// sample from the adapter, encodes it and writes it as RTP stamped with
// the sample's PTS.
type pump struct {
	id       string
	adapter  *bridge.TrackAdapter
	newEnc   EncoderFactory
	video    VideoConfig
	out      rtpWriter
	keyFrame <-chan struct{}
	logger   *slog.Logger
}

func (p *pump) run(ctx context.Context) error {
	var pts int64
	reader := video.ReaderFunc(func() (image.Image, func(), error) {
		s := p.adapter.Produce()
		pts = s.PTS
		return s.Frame.Scaled(p.video.Width, p.video.Height), func() {}, nil
	})

	enc, err := p.newEnc(reader, prop.Media{
		Video: prop.Video{
			Width:     p.video.Width,
			Height:    p.video.Height,
			FrameRate: float32(p.video.FPS),
		},
	})
	if err != nil {
		encodeErrors.Inc()
		return fmt.Errorf("create encoder: %w", err)
	}
	defer enc.Close()

	packetizer := rtp.NewPacketizer(rtpMTU, VP8PayloadType, 0, &codecs.VP8Payloader{}, rtp.NewRandomSequencer(), bridge.ClockRate)

	fps := p.video.FPS
	if fps <= 0 {
		fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	p.logger.Debug("Consumer pump started", "peer_id", p.id, "fps", fps)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.keyFrame:
			if kf, ok := enc.(keyFrameForcer); ok {
				if err := kf.ForceKeyFrame(); err != nil {
					p.logger.Debug("Keyframe request failed", "peer_id", p.id, "error", err)
				}
			}
		case <-ticker.C:
			if err := p.step(enc, packetizer, &pts); err != nil {
				return err
			}
		}
	}
}

func (p *pump) step(enc Encoder, packetizer rtp.Packetizer, pts *int64) error {
	data, release, err := enc.Read()
	if err != nil {
		encodeErrors.Inc()
		return fmt.Errorf("encode: %w", err)
	}
	defer release()
	if len(data) == 0 {
		return nil
	}
	framesEncoded.Inc()

	ts := uint32(*pts)
	for _, pkt := range packetizer.Packetize(data, 0) {
		pkt.Timestamp = ts
		if err := p.out.WriteRTP(pkt); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("write rtp: %w", err)
		}
		packetsSent.Inc()
		bytesSent.Add(float64(len(pkt.Payload)))
	}
	return nil
}
