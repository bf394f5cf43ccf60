// Package session owns everything bound at connect time: the chosen
// source, its frame receiver, the device control link, the device target
// and the clock origin. Nothing here is process-global.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/ptzbridge/internal/bridge"
	"github.com/smazurov/ptzbridge/internal/capture"
	"github.com/smazurov/ptzbridge/internal/discovery"
	"github.com/smazurov/ptzbridge/internal/events"
	"github.com/smazurov/ptzbridge/internal/ptz"
	"github.com/smazurov/ptzbridge/internal/visca"
)

// DefaultSettle is how long Connect waits for the source to start
// delivering before the clock origin is taken.
const DefaultSettle = 2 * time.Second

// Receiver is the frame side of a connected source.
type Receiver interface {
	bridge.Puller
	Close() error
}

// Controller is the command side of a connected device.
type Controller interface {
	Do(ctx context.Context, cmd ptz.Command) error
	Close() error
}

// Options configures Connect.
type Options struct {
	Finder        discovery.Finder
	PreferredName string
	PollInterval  time.Duration
	Settle        time.Duration

	ViscaPort    int
	ReplyTimeout time.Duration
	RateLimit    float64
	RateBurst    int

	Bus    *events.Bus
	Logger *slog.Logger

	// OpenReceiver and DialController default to the MJPEG receiver and
	// the VISCA link.
	OpenReceiver   func(src discovery.Source) Receiver
	DialController func(ctx context.Context, address string) (Controller, error)
}

// Session is a connected source. Source, Target and Clock never change
// after Connect returns.
type Session struct {
	source   discovery.Source
	target   string
	fallback bool
	clock    *bridge.Clock
	receiver Receiver
	control  Controller
	logger   *slog.Logger
}

// Connect discovers sources, binds to one and opens its frame and control
// channels. It waits for sources indefinitely; only cancellation or a
// discovery failure ends the wait.
func Connect(ctx context.Context, opts Options) (*Session, error) {
	opts = withDefaults(opts)
	logger := opts.Logger

	sources, err := discovery.WaitForSources(ctx, opts.Finder, opts.PollInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}

	src, fallback := discovery.Select(sources, opts.PreferredName, logger)
	target := discovery.TargetHost(src.Address)
	logger.Info("Connecting to source", "name", src.Name, "url", src.URL(), "target", target)

	s := &Session{
		source:   src,
		target:   target,
		fallback: fallback,
		logger:   logger,
	}
	s.receiver = opts.OpenReceiver(src)

	if target != "" {
		ctrl, err := opts.DialController(ctx, visca.Address(target, opts.ViscaPort))
		if err != nil {
			logger.Warn("Device control unavailable", "target", target, "error", err)
		} else {
			s.control = ctrl
		}
	}

	select {
	case <-time.After(opts.Settle):
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	s.clock = bridge.NewClock()
	opts.Bus.Publish(events.SourceSelectedEvent{
		Name:      src.Name,
		Address:   src.Address,
		Target:    target,
		Fallback:  fallback,
		Timestamp: events.Now(),
	})
	logger.Info("Connected to source", "name", src.Name, "target", target)
	return s, nil
}

func withDefaults(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Settle < 0 {
		opts.Settle = 0
	}
	if opts.ViscaPort == 0 {
		opts.ViscaPort = visca.DefaultPort
	}
	if opts.ReplyTimeout == 0 {
		opts.ReplyTimeout = visca.DefaultReplyTimeout
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = visca.DefaultRateLimit
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = visca.DefaultBurst
	}
	logger := opts.Logger
	if opts.OpenReceiver == nil {
		opts.OpenReceiver = func(src discovery.Source) Receiver {
			return capture.OpenMJPEG(src.URL(), capture.WithLogger(logger))
		}
	}
	if opts.DialController == nil {
		replyTimeout, rateLimit, burst := opts.ReplyTimeout, opts.RateLimit, opts.RateBurst
		opts.DialController = func(ctx context.Context, address string) (Controller, error) {
			return visca.Dial(ctx, address,
				visca.WithReplyTimeout(replyTimeout),
				visca.WithRateLimit(rateLimit, burst),
				visca.WithLogger(logger))
		}
	}
	return opts
}

// Source returns the bound source.
func (s *Session) Source() discovery.Source { return s.source }

// Fallback reports whether the preferred source was missing at connect.
func (s *Session) Fallback() bool { return s.fallback }

// Target returns the device host commands are sent to.
func (s *Session) Target() string { return s.target }

// Clock returns the session clock, started at connect.
func (s *Session) Clock() *bridge.Clock { return s.clock }

// PullFrame blocks up to timeout for the next frame from the source.
func (s *Session) PullFrame(ctx context.Context, timeout time.Duration) (*capture.Frame, bool) {
	return s.receiver.PullFrame(ctx, timeout)
}

// SendCommand forwards cmd to the device. Without a target it fails with
// ptz.ErrTargetNotSet. Panics in the control link are recovered and
// reported as ptz.ErrDeviceUnreachable.
func (s *Session) SendCommand(ctx context.Context, cmd ptz.Command) (err error) {
	if s.target == "" {
		return ptz.ErrTargetNotSet
	}
	if s.control == nil {
		return fmt.Errorf("%w: no control link to %s", ptz.ErrDeviceUnreachable, s.target)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Device control panicked", "command", cmd.String(), "panic", r)
			err = fmt.Errorf("%w: %v", ptz.ErrDeviceUnreachable, r)
		}
	}()
	return s.control.Do(ctx, cmd)
}

// Close releases the receiver and the control link.
func (s *Session) Close() error {
	var errs []error
	if s.receiver != nil {
		errs = append(errs, s.receiver.Close())
	}
	if s.control != nil {
		errs = append(errs, s.control.Close())
	}
	return errors.Join(errs...)
}
