package visca

import (
	"fmt"
	"math"

	"github.com/smazurov/ptzbridge/internal/ptz"
)

// Speed and position limits of the Sony VISCA command set.
const (
	MaxPanSpeed  = 0x18
	MaxTiltSpeed = 0x14
	MaxZoomSpeed = 0x07

	FocusInfinity = 0x1000
	FocusNear     = 0xF000
)

const (
	camera = 0x81
	term   = 0xFF

	dirUp    = 0x01
	dirDown  = 0x02
	dirLeft  = 0x01
	dirRight = 0x02
	dirStop  = 0x03
)

// Encode maps a command to the VISCA payloads that implement it, in
// send order.
func Encode(cmd ptz.Command) ([][]byte, error) {
	switch cmd.Kind {
	case ptz.PanTiltSpeed:
		pan, panDir := axis(cmd.Pan, MaxPanSpeed, dirLeft, dirRight)
		tilt, tiltDir := axis(cmd.Tilt, MaxTiltSpeed, dirUp, dirDown)
		return [][]byte{{camera, 0x01, 0x06, 0x01, pan, tilt, panDir, tiltDir, term}}, nil

	case ptz.ZoomSpeed:
		var b byte
		switch p := scale(cmd.Zoom, MaxZoomSpeed, 0); {
		case cmd.Zoom > 0:
			b = 0x20 | p
		case cmd.Zoom < 0:
			b = 0x30 | p
		}
		return [][]byte{{camera, 0x01, 0x04, 0x07, b, term}}, nil

	case ptz.Home:
		return [][]byte{{camera, 0x01, 0x06, 0x04, term}}, nil

	case ptz.AutoFocus:
		return [][]byte{{camera, 0x01, 0x04, 0x38, 0x02, term}}, nil

	case ptz.RecallPreset:
		return [][]byte{{camera, 0x01, 0x04, 0x3F, 0x02, byte(cmd.Preset), term}}, nil

	case ptz.StorePreset:
		return [][]byte{{camera, 0x01, 0x04, 0x3F, 0x01, byte(cmd.Preset), term}}, nil

	case ptz.Focus:
		pos := FocusInfinity + int(math.Round(cmd.Distance*(FocusNear-FocusInfinity)))
		return [][]byte{
			{camera, 0x01, 0x04, 0x38, 0x03, term},
			{camera, 0x01, 0x04, 0x48, nibble(pos, 12), nibble(pos, 8), nibble(pos, 4), nibble(pos, 0), term},
		}, nil

	default:
		return nil, fmt.Errorf("%w: no VISCA mapping for %q", ptz.ErrMalformedCommand, cmd.Kind)
	}
}

// axis returns the drive speed and direction byte for a signed speed.
func axis(v float64, limit, positive, negative byte) (speed, dir byte) {
	switch {
	case v > 0:
		return scale(v, limit, 1), positive
	case v < 0:
		return scale(v, limit, 1), negative
	default:
		return 1, dirStop
	}
}

// scale maps |v| in [0, 1] onto [floor, limit], clamping larger values.
func scale(v float64, limit, floor byte) byte {
	s := math.Round(math.Min(math.Abs(v), 1) * float64(limit))
	if s < float64(floor) {
		return floor
	}
	return byte(s)
}

func nibble(v, shift int) byte {
	return byte(v>>shift) & 0x0F
}
