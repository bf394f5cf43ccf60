// Package ptz parses, validates and dispatches pan/tilt/zoom/focus
// commands to a capture device.
package ptz

import (
	"encoding/json"
	"fmt"
	"math"
)

// Kind names a command on the wire.
type Kind string

// Supported commands.
const (
	PanTiltSpeed Kind = "pan_tilt_speed"
	ZoomSpeed    Kind = "zoom_speed"
	Home         Kind = "home"
	AutoFocus    Kind = "auto_focus"
	RecallPreset Kind = "recall_preset"
	StorePreset  Kind = "store_preset"
	Focus        Kind = "focus"
)

// Kinds lists every command in wire order.
var Kinds = []Kind{PanTiltSpeed, ZoomSpeed, Home, AutoFocus, RecallPreset, StorePreset, Focus}

// Value limits.
const (
	MaxPreset          = 255
	DefaultRecallSpeed = 0.5
)

// Command is a validated device command. Only the fields relevant to
// Kind are meaningful.
type Command struct {
	Kind Kind
	// Pan and Tilt are speeds; positive pans left and tilts up.
	Pan  float64
	Tilt float64
	// Zoom is a speed in [-1, 1]; positive zooms in.
	Zoom float64
	// Distance is a focus position in [0, 1]: 0 is infinity, 1 the
	// closest focus the lens supports.
	Distance float64
	Preset   int
	// Speed applies to RecallPreset, in (0, 1].
	Speed float64
}

func (c Command) String() string {
	switch c.Kind {
	case PanTiltSpeed:
		return fmt.Sprintf("%s(pan=%g, tilt=%g)", c.Kind, c.Pan, c.Tilt)
	case ZoomSpeed:
		return fmt.Sprintf("%s(zoom=%g)", c.Kind, c.Zoom)
	case Focus:
		return fmt.Sprintf("%s(distance=%g)", c.Kind, c.Distance)
	case RecallPreset:
		return fmt.Sprintf("%s(preset=%d, speed=%g)", c.Kind, c.Preset, c.Speed)
	case StorePreset:
		return fmt.Sprintf("%s(preset=%d)", c.Kind, c.Preset)
	default:
		return string(c.Kind)
	}
}

// Request is the inbound control payload: a command tag plus a mapping
// of its numeric fields.
type Request struct {
	Command string         `json:"command,omitempty" example:"zoom_speed" doc:"Command name"`
	Value   map[string]any `json:"value,omitempty" doc:"Command fields, e.g. {\"zoom\": 0.5}"`
}

// Parse turns a request into a command. Missing or non-numeric fields
// and unknown commands wrap ErrMalformedCommand; values outside their
// declared range wrap ErrOutOfRange.
func Parse(req Request) (Command, error) {
	if req.Command == "" {
		return Command{}, malformed("missing command")
	}
	if req.Value == nil {
		return Command{}, malformed("%s: missing value", req.Command)
	}

	kind := Kind(req.Command)
	if kind == "auto" {
		kind = AutoFocus
	}
	cmd := Command{Kind: kind}
	v := values(req.Value)

	var err error
	switch kind {
	case PanTiltSpeed:
		if cmd.Pan, err = v.number(kind, "pan"); err != nil {
			return Command{}, err
		}
		if cmd.Tilt, err = v.number(kind, "tilt"); err != nil {
			return Command{}, err
		}
	case ZoomSpeed:
		if cmd.Zoom, err = v.number(kind, "zoom"); err != nil {
			return Command{}, err
		}
		if cmd.Zoom < -1 || cmd.Zoom > 1 {
			return Command{}, outOfRange("zoom %g outside [-1, 1]", cmd.Zoom)
		}
	case Focus:
		if cmd.Distance, err = v.number(kind, "distance"); err != nil {
			return Command{}, err
		}
		if cmd.Distance < 0 || cmd.Distance > 1 {
			return Command{}, outOfRange("distance %g outside [0, 1]", cmd.Distance)
		}
	case RecallPreset, StorePreset:
		if cmd.Preset, err = v.preset(kind); err != nil {
			return Command{}, err
		}
		if kind == RecallPreset {
			cmd.Speed = DefaultRecallSpeed
			if _, ok := req.Value["speed"]; ok {
				if cmd.Speed, err = v.number(kind, "speed"); err != nil {
					return Command{}, err
				}
				if cmd.Speed <= 0 || cmd.Speed > 1 {
					return Command{}, outOfRange("speed %g outside (0, 1]", cmd.Speed)
				}
			}
		}
	case Home, AutoFocus:
	default:
		return Command{}, malformed("unknown command %q", req.Command)
	}
	return cmd, nil
}

type values map[string]any

func (v values) number(kind Kind, key string) (float64, error) {
	raw, ok := v[key]
	if !ok || raw == nil {
		return 0, malformed("%s: missing %s", kind, key)
	}
	var f float64
	switch x := raw.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		var err error
		if f, err = x.Float64(); err != nil {
			return 0, malformed("%s: %s is not a number", kind, key)
		}
	default:
		return 0, malformed("%s: %s is not a number", kind, key)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, malformed("%s: %s is not finite", kind, key)
	}
	return f, nil
}

// preset reads the preset index from "preset", or "index" as an alias.
func (v values) preset(kind Kind) (int, error) {
	key := "preset"
	if _, ok := v[key]; !ok {
		if _, ok := v["index"]; ok {
			key = "index"
		}
	}
	f, err := v.number(kind, key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, malformed("%s: %s must be an integer", kind, key)
	}
	if f < 0 || f > MaxPreset {
		return 0, outOfRange("%s %g outside [0, %d]", key, f, MaxPreset)
	}
	return int(f), nil
}
