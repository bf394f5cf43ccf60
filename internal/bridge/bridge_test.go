package bridge

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/ptzbridge/internal/capture"
	"github.com/smazurov/ptzbridge/internal/events"
	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() (*fakeClock, *Clock) {
	fc := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return fc, NewClockAt(fc.now, fc.Now)
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// scriptedPuller returns its script in order, a nil entry meaning a
// timeout, then blocks until the context ends.
type scriptedPuller struct {
	mu     sync.Mutex
	script []*capture.Frame
}

func (p *scriptedPuller) PullFrame(ctx context.Context, _ time.Duration) (*capture.Frame, bool) {
	p.mu.Lock()
	if len(p.script) > 0 {
		f := p.script[0]
		p.script = p.script[1:]
		p.mu.Unlock()
		return f, f != nil
	}
	p.mu.Unlock()
	<-ctx.Done()
	return nil, false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFrame() *capture.Frame {
	return &capture.Frame{Width: 2, Height: 2, Pix: make([]byte, 12)}
}

func runLoop(t *testing.T, l *Loop) (stop func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := l.Run(ctx); err != nil {
			t.Errorf("Run returned %v", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestProducePlaceholderBeforeFirstFrame(t *testing.T) {
	_, clock := newFakeClock()
	a := NewTrackAdapter(&Cache{}, clock)

	s := a.Produce()
	if !s.Placeholder {
		t.Error("Placeholder = false before any capture")
	}
	if s.Frame.Width != 640 || s.Frame.Height != 480 {
		t.Errorf("placeholder is %dx%d, want 640x480", s.Frame.Width, s.Frame.Height)
	}
	for _, b := range s.Frame.Pix {
		if b != 0 {
			t.Fatal("placeholder is not black")
		}
	}
}

func TestProduceRepeatsLastFrameAcrossTimeouts(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fc, clock := newFakeClock()
	frame := testFrame()
	script := []*capture.Frame{frame}
	for i := 0; i < 10; i++ {
		script = append(script, nil)
	}

	cache := &Cache{}
	loop := NewLoop(&scriptedPuller{script: script}, cache, clock, WithLogger(quietLogger()))
	stop := runLoop(t, loop)
	defer stop()

	waitFor(t, func() bool { return loop.Stats().Timeouts == 10 })

	a := NewTrackAdapter(cache, clock)
	var prev int64 = -1
	for i := 0; i < 10; i++ {
		fc.Advance(33 * time.Millisecond)
		s := a.Produce()
		if s.Frame != frame {
			t.Fatalf("sample %d: got a different frame buffer", i)
		}
		if s.Placeholder {
			t.Fatalf("sample %d: placeholder after a capture", i)
		}
		if s.PTS <= prev {
			t.Fatalf("sample %d: PTS %d not greater than %d", i, s.PTS, prev)
		}
		prev = s.PTS
	}

	if st := loop.Stats(); st.Frames != 1 || !st.Stalled {
		t.Errorf("stats = %+v, want 1 frame and stalled", st)
	}
}

func TestPTSTracksElapsedTime(t *testing.T) {
	fc, clock := newFakeClock()
	a := NewTrackAdapter(&Cache{}, clock)

	first := a.Produce().PTS
	fc.Advance(time.Second)
	second := a.Produce().PTS
	fc.Advance(500 * time.Millisecond)
	third := a.Produce().PTS

	if second-first != 90000 {
		t.Errorf("1s spacing = %d ticks, want 90000", second-first)
	}
	if third-second != 45000 {
		t.Errorf("500ms spacing = %d ticks, want 45000", third-second)
	}
}

func TestPTSNeverDecreases(t *testing.T) {
	fc, clock := newFakeClock()
	a := NewTrackAdapter(&Cache{}, clock)

	fc.Advance(time.Second)
	before := a.Produce().PTS
	fc.Advance(-200 * time.Millisecond)
	after := a.Produce().PTS

	if after < before {
		t.Errorf("PTS went from %d to %d", before, after)
	}
}

func TestAdaptersShareCacheIndependently(t *testing.T) {
	fc, clock := newFakeClock()
	cache := &Cache{}
	frame := testFrame()
	cache.Store(&Captured{Frame: frame, Seq: 1})

	a, b := NewTrackAdapter(cache, clock), NewTrackAdapter(cache, clock)

	var wg sync.WaitGroup
	for _, ad := range []*TrackAdapter{a, b} {
		ad := ad
		wg.Add(1)
		go func() {
			defer wg.Done()
			var prev int64 = -1
			for i := 0; i < 200; i++ {
				s := ad.Produce()
				if s.Frame != frame {
					t.Error("adapter saw a different frame")
					return
				}
				if s.PTS < prev {
					t.Error("PTS decreased")
					return
				}
				prev = s.PTS
			}
		}()
	}
	for i := 0; i < 100; i++ {
		fc.Advance(time.Millisecond)
	}
	wg.Wait()

	if got := cache.Load(); got.Frame != frame {
		t.Error("consumers mutated the cache")
	}
}

func TestLoopPublishesStallAndRecovery(t *testing.T) {
	bus := events.New()
	states := make(chan events.CaptureStateEvent, 4)
	defer bus.Subscribe(func(e events.CaptureStateEvent) { states <- e })()

	_, clock := newFakeClock()
	script := []*capture.Frame{testFrame(), nil, nil, testFrame()}
	loop := NewLoop(&scriptedPuller{script: script}, &Cache{}, clock,
		WithEventBus(bus), WithLogger(quietLogger()))
	stop := runLoop(t, loop)
	defer stop()

	want := []string{events.CaptureStalled, events.CaptureLive}
	for _, w := range want {
		select {
		case e := <-states:
			if e.State != w {
				t.Errorf("state = %q, want %q", e.State, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %q", w)
		}
	}
}

func TestLoopTimeoutsBeforeFirstFrameAreNotAStall(t *testing.T) {
	_, clock := newFakeClock()
	cache := &Cache{}
	loop := NewLoop(&scriptedPuller{script: []*capture.Frame{nil, nil}}, cache, clock, WithLogger(quietLogger()))
	stop := runLoop(t, loop)
	defer stop()

	waitFor(t, func() bool { return loop.Stats().Timeouts == 2 })
	if loop.Stats().Stalled {
		t.Error("stalled before any frame was captured")
	}
	if cache.Load() != nil {
		t.Error("cache populated by timeouts")
	}
}

func TestLoopKeepsRunningWhileStalled(t *testing.T) {
	_, clock := newFakeClock()
	loop := NewLoop(&scriptedPuller{script: []*capture.Frame{testFrame(), nil, nil, nil}}, &Cache{}, clock,
		WithLogger(quietLogger()))
	if loop.Running() {
		t.Fatal("Running before Run")
	}
	stop := runLoop(t, loop)

	waitFor(t, func() bool { return loop.Stats().Timeouts == 3 })
	if !loop.Stats().Stalled || !loop.Running() {
		t.Errorf("stalled = %v, running = %v, want both true", loop.Stats().Stalled, loop.Running())
	}

	stop()
	if loop.Running() {
		t.Error("Running after Run returned")
	}
}

func TestLoopStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	_, clock := newFakeClock()
	loop := NewLoop(&scriptedPuller{}, &Cache{}, clock, WithLogger(quietLogger()))
	stop := runLoop(t, loop)
	stop()
}

func TestTicks(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want int64
	}{
		{0, 0},
		{time.Second, 90000},
		{time.Millisecond, 90},
		{30 * 24 * time.Hour, 30 * 24 * 3600 * 90000},
	}
	for _, tt := range tests {
		if got := Ticks(tt.d); got != tt.want {
			t.Errorf("Ticks(%v) = %d, want %d", tt.d, got, tt.want)
		}
	}
}
