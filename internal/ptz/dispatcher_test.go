package ptz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/ptzbridge/internal/events"
)

type recordingSender struct {
	mu    sync.Mutex
	calls []Command
	fn    func(Command) error
}

func (s *recordingSender) SendCommand(_ context.Context, cmd Command) error {
	s.mu.Lock()
	s.calls = append(s.calls, cmd)
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		return fn(cmd)
	}
	return nil
}

func (s *recordingSender) Calls() []Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Command(nil), s.calls...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchOutOfRangeNeverReachesDevice(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, nil, quietLogger())

	r := d.Dispatch(context.Background(), Request{Command: "zoom_speed", Value: map[string]any{"zoom": 1.5}})

	if r.OK() {
		t.Error("out-of-range zoom reported success")
	}
	if !errors.Is(r.Err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", r.Err)
	}
	if n := len(s.Calls()); n != 0 {
		t.Errorf("device called %d times, want 0", n)
	}
}

func TestDispatchMissingValueIsClientError(t *testing.T) {
	s := &recordingSender{}
	d := NewDispatcher(s, nil, quietLogger())

	r := d.Dispatch(context.Background(), Request{Command: "recall_preset"})

	if r.State != StateRejected || !errors.Is(r.Err, ErrMalformedCommand) {
		t.Errorf("result = %+v, want rejected malformed", r)
	}
	if n := len(s.Calls()); n != 0 {
		t.Errorf("device called %d times, want 0", n)
	}
}

func TestDispatchConcurrentPresetsAreIndependent(t *testing.T) {
	s := &recordingSender{fn: func(cmd Command) error {
		time.Sleep(10 * time.Millisecond)
		if cmd.Kind == StorePreset {
			return fmt.Errorf("store: %w", ErrCommandRejected)
		}
		return nil
	}}
	d := NewDispatcher(s, events.New(), quietLogger())

	var recall, store Result
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		recall = d.Dispatch(context.Background(), Request{Command: "recall_preset", Value: map[string]any{"preset": 1.0}})
	}()
	go func() {
		defer wg.Done()
		store = d.Dispatch(context.Background(), Request{Command: "store_preset", Value: map[string]any{"preset": 2.0}})
	}()
	wg.Wait()

	if !recall.OK() || recall.Command.Preset != 1 {
		t.Errorf("recall = %+v, want acknowledged preset 1", recall)
	}
	if store.OK() || !errors.Is(store.Err, ErrCommandRejected) || store.Command.Preset != 2 {
		t.Errorf("store = %+v, want rejected preset 2", store)
	}
	if n := len(s.Calls()); n != 2 {
		t.Errorf("device called %d times, want 2", n)
	}
}

func TestDispatchContainsSenderPanic(t *testing.T) {
	s := &recordingSender{fn: func(Command) error { panic("socket exploded") }}
	d := NewDispatcher(s, nil, quietLogger())

	r := d.Dispatch(context.Background(), Request{Command: "home", Value: map[string]any{}})
	if r.OK() || !errors.Is(r.Err, ErrDeviceUnreachable) {
		t.Errorf("result = %+v, want unreachable failure", r)
	}

	s.fn = nil
	if r := d.Dispatch(context.Background(), Request{Command: "home", Value: map[string]any{}}); !r.OK() {
		t.Errorf("dispatcher unusable after panic: %+v", r)
	}
}

func TestDispatchReportsTargetNotSet(t *testing.T) {
	s := &recordingSender{fn: func(Command) error { return ErrTargetNotSet }}
	d := NewDispatcher(s, nil, quietLogger())

	r := d.Dispatch(context.Background(), Request{Command: "auto", Value: map[string]any{}})
	if r.OK() || Code(r.Err) != ErrCodeNoTarget {
		t.Errorf("result = %+v, want target-not-set failure", r)
	}
	if calls := s.Calls(); len(calls) != 1 || calls[0].Kind != AutoFocus {
		t.Errorf("calls = %+v", calls)
	}
}

func TestDispatchPublishesEvent(t *testing.T) {
	bus := events.New()
	got := make(chan events.PTZCommandEvent, 1)
	defer bus.Subscribe(func(e events.PTZCommandEvent) { got <- e })()

	d := NewDispatcher(&recordingSender{}, bus, quietLogger())
	d.Dispatch(context.Background(), Request{Command: "focus", Value: map[string]any{"distance": 0.3}})

	select {
	case e := <-got:
		if e.Command != "focus" || e.State != string(StateAcknowledged) {
			t.Errorf("event = %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no PTZ event published")
	}
}
