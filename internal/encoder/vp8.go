// Package encoder builds the VP8 encoders that feed WebRTC consumers.
package encoder

import (
	"errors"
	"fmt"

	"github.com/pion/mediadevices/pkg/codec"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/smazurov/ptzbridge/internal/streaming"
)

// Defaults for a LAN PTZ view.
const (
	DefaultBitrate          = 2_000_000
	DefaultKeyFrameInterval = 60
)

// ErrKeyFrameUnsupported is returned when the codec cannot force an intra frame.
var ErrKeyFrameUnsupported = errors.New("encoder cannot force keyframes")

// VP8Config tunes the libvpx encoder.
type VP8Config struct {
	Bitrate          int
	KeyFrameInterval int
}

// NewVP8Factory returns a factory that builds one libvpx VP8 encoder per
// consumer.
func NewVP8Factory(cfg VP8Config) streaming.EncoderFactory {
	if cfg.Bitrate <= 0 {
		cfg.Bitrate = DefaultBitrate
	}
	if cfg.KeyFrameInterval <= 0 {
		cfg.KeyFrameInterval = DefaultKeyFrameInterval
	}

	return func(r video.Reader, p prop.Media) (streaming.Encoder, error) {
		params, err := vpx.NewVP8Params()
		if err != nil {
			return nil, fmt.Errorf("vp8 params: %w", err)
		}
		params.BitRate = cfg.Bitrate
		params.KeyFrameInterval = cfg.KeyFrameInterval

		rc, err := params.BuildVideoEncoder(r, p)
		if err != nil {
			return nil, fmt.Errorf("build vp8 encoder: %w", err)
		}
		return &vp8Encoder{ReadCloser: rc}, nil
	}
}

type vp8Encoder struct {
	codec.ReadCloser
}

func (e *vp8Encoder) ForceKeyFrame() error {
	if kf, ok := e.Controller().(codec.KeyFrameController); ok {
		return kf.ForceKeyFrame()
	}
	return ErrKeyFrameUnsupported
}
