package bridge

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/smazurov/ptzbridge/internal/capture"
	"github.com/smazurov/ptzbridge/internal/events"
)

// DefaultPullTimeout bounds each blocking pull from the source.
const DefaultPullTimeout = 5000 * time.Millisecond

// Puller is a blocking frame source.
type Puller interface {
	PullFrame(ctx context.Context, timeout time.Duration) (*capture.Frame, bool)
}

// Stats is a point-in-time view of the loop.
type Stats struct {
	Frames    uint64
	Timeouts  uint64
	Stalled   bool
	LastFrame time.Duration
}

// Loop pulls frames from the source into the cache.
type Loop struct {
	src     Puller
	cache   *Cache
	clock   *Clock
	timeout time.Duration
	bus     *events.Bus
	logger  *slog.Logger

	frames    atomic.Uint64
	timeouts  atomic.Uint64
	isStalled atomic.Bool
	running   atomic.Bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPullTimeout overrides DefaultPullTimeout.
func WithPullTimeout(d time.Duration) LoopOption {
	return func(l *Loop) { l.timeout = d }
}

// WithEventBus publishes capture state changes on bus.
func WithEventBus(bus *events.Bus) LoopOption {
	return func(l *Loop) { l.bus = bus }
}

// WithLogger sets the loop's logger.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) { l.logger = logger }
}

// NewLoop creates a loop feeding cache from src.
func NewLoop(src Puller, cache *Cache, clock *Clock, opts ...LoopOption) *Loop {
	l := &Loop{
		src:     src,
		cache:   cache,
		clock:   clock,
		timeout: DefaultPullTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run pulls until ctx is cancelled. A timed-out pull leaves the cache as
// it was. Run always returns nil.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	defer l.running.Store(false)
	l.logger.Info("Bridge loop started", "pull_timeout", l.timeout)
	defer l.logger.Info("Bridge loop stopped", "frames", l.frames.Load(), "timeouts", l.timeouts.Load())

	consecutive := 0
	for ctx.Err() == nil {
		frame, ok := l.src.PullFrame(ctx, l.timeout)
		if ctx.Err() != nil {
			return nil
		}

		if !ok {
			consecutive++
			l.timeouts.Add(1)
			pullTimeouts.Inc()
			if l.frames.Load() > 0 && !l.isStalled.Load() {
				l.setStalled(true, consecutive)
			}
			l.logger.Debug("Frame pull timed out", "consecutive", consecutive)
			continue
		}

		seq := l.frames.Add(1)
		l.cache.Store(&Captured{Frame: frame, At: l.clock.Since(), Seq: seq})
		framesCaptured.Inc()
		lastFrameTimestamp.SetToCurrentTime()

		if seq == 1 {
			l.logger.Info("First frame captured", "width", frame.Width, "height", frame.Height)
		}
		if l.isStalled.Load() {
			l.setStalled(false, consecutive)
		}
		consecutive = 0
	}
	return nil
}

// Running reports whether Run is executing. A stalled source does not
// stop the loop.
func (l *Loop) Running() bool {
	return l.running.Load()
}

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	s := Stats{
		Frames:   l.frames.Load(),
		Timeouts: l.timeouts.Load(),
		Stalled:  l.isStalled.Load(),
	}
	if c := l.cache.Load(); c != nil {
		s.LastFrame = c.At
	}
	return s
}

func (l *Loop) setStalled(v bool, timeouts int) {
	l.isStalled.Store(v)
	state := events.CaptureLive
	if v {
		state = events.CaptureStalled
		stalled.Set(1)
		l.logger.Warn("Capture source stalled, serving last frame", "timeouts", timeouts)
	} else {
		stalled.Set(0)
		l.logger.Info("Capture source recovered", "timeouts", timeouts)
	}
	l.bus.Publish(events.CaptureStateEvent{State: state, Timeouts: timeouts, Timestamp: events.Now()})
}
