// Package bridge decouples the blocking capture source from the WebRTC
// consumers. One Loop keeps the newest frame in a Cache; any number of
// TrackAdapters read it and stamp it against a shared Clock.
package bridge

import "time"

// ClockRate is the RTP video clock in ticks per second.
const ClockRate = 90000

// Clock measures elapsed time from the session origin. It is set once
// when the capture connection is established and never reset.
type Clock struct {
	origin time.Time
	now    func() time.Time
}

// NewClock returns a clock whose origin is now.
func NewClock() *Clock {
	return NewClockAt(time.Now(), time.Now)
}

// NewClockAt returns a clock with an explicit origin and time source.
func NewClockAt(origin time.Time, now func() time.Time) *Clock {
	return &Clock{origin: origin, now: now}
}

// Origin returns the instant the clock started.
func (c *Clock) Origin() time.Time {
	return c.origin
}

// Since returns the time elapsed since the origin. Backed by the
// monotonic clock, so it never decreases under wall clock changes.
func (c *Clock) Since() time.Duration {
	return c.now().Sub(c.origin)
}

// Ticks converts d to 90 kHz clock ticks without intermediate overflow.
func Ticks(d time.Duration) int64 {
	sec := int64(d / time.Second)
	rem := int64(d % time.Second)
	return sec*ClockRate + rem*ClockRate/int64(time.Second)
}
