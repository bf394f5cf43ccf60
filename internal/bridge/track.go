package bridge

import (
	"sync"

	"github.com/smazurov/ptzbridge/internal/capture"
)

// Sample is one frame handed to a consumer.
type Sample struct {
	Frame *capture.Frame
	// PTS is the presentation time in 90 kHz ticks since the clock origin.
	// RTP carries it truncated to 32 bits.
	PTS         int64
	Placeholder bool
	// Seq is the cache sequence number, zero for the placeholder.
	Seq uint64
}

// TrackAdapter serves samples to one consumer. Produce never touches the
// device; it only reads the cache and the clock.
type TrackAdapter struct {
	cache *Cache
	clock *Clock

	mu   sync.Mutex
	last int64
}

// NewTrackAdapter creates an adapter over a shared cache and clock.
func NewTrackAdapter(cache *Cache, clock *Clock) *TrackAdapter {
	return &TrackAdapter{cache: cache, clock: clock, last: -1}
}

// Produce returns the newest cached frame, or the black placeholder
// before the first capture, stamped with a non-decreasing PTS.
func (a *TrackAdapter) Produce() Sample {
	s := Sample{PTS: Ticks(a.clock.Since())}

	if c := a.cache.Load(); c != nil {
		s.Frame = c.Frame
		s.Seq = c.Seq
		samplesProduced.WithLabelValues("frame").Inc()
	} else {
		s.Frame = capture.Placeholder()
		s.Placeholder = true
		samplesProduced.WithLabelValues("placeholder").Inc()
	}

	a.mu.Lock()
	if s.PTS < a.last {
		s.PTS = a.last
	}
	a.last = s.PTS
	a.mu.Unlock()

	return s
}
