package ptz

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/smazurov/ptzbridge/internal/events"
)

// State is a step in a command's lifecycle.
type State string

// Command lifecycle: Received -> Validated -> Sent -> Acknowledged | Rejected.
const (
	StateReceived     State = "received"
	StateValidated    State = "validated"
	StateSent         State = "sent"
	StateAcknowledged State = "acknowledged"
	StateRejected     State = "rejected"
)

// Sender delivers a validated command to the device. Implementations must
// be safe for concurrent use.
type Sender interface {
	SendCommand(ctx context.Context, cmd Command) error
}

// Result is the outcome of one dispatch.
type Result struct {
	Command Command
	State   State
	Err     error
}

// OK reports whether the device accepted the command.
func (r Result) OK() bool {
	return r.State == StateAcknowledged
}

// Dispatcher validates requests and forwards them to a Sender. Each call
// is independent; a failing or panicking send only affects its own Result.
type Dispatcher struct {
	sender Sender
	bus    *events.Bus
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. bus may be nil.
func NewDispatcher(sender Sender, bus *events.Bus, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, bus: bus, logger: logger}
}

// Dispatch parses req and sends it. Malformed or out-of-range requests
// are rejected without reaching the device.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	cmd, err := Parse(req)
	if err != nil {
		label := req.Command
		if _, known := kindSet[Kind(label)]; !known {
			label = "invalid"
		}
		d.logger.Warn("PTZ command rejected", "command", req.Command, "error", err)
		return d.finish(Result{Command: Command{Kind: Kind(req.Command)}, State: StateRejected, Err: err}, label)
	}
	return d.Send(ctx, cmd)
}

// Send forwards an already validated command.
func (d *Dispatcher) Send(ctx context.Context, cmd Command) Result {
	start := time.Now()
	err := d.safeSend(ctx, cmd)
	commandDuration.WithLabelValues(string(cmd.Kind)).Observe(time.Since(start).Seconds())

	if err != nil {
		d.logger.Error("Failed to execute PTZ command", "command", cmd.String(), "error", err)
		return d.finish(Result{Command: cmd, State: StateRejected, Err: err}, string(cmd.Kind))
	}

	d.logger.Info("PTZ command executed", "command", cmd.String(), "duration", time.Since(start))
	return d.finish(Result{Command: cmd, State: StateAcknowledged}, string(cmd.Kind))
}

// safeSend contains panics raised by the sender.
func (d *Dispatcher) safeSend(ctx context.Context, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("PTZ sender panicked", "command", cmd.String(), "panic", r)
			err = &CommandError{Code: ErrCodeUnreachable, Message: fmt.Sprintf("send panicked: %v", r), Cause: ErrDeviceUnreachable}
		}
	}()
	return d.sender.SendCommand(ctx, cmd)
}

func (d *Dispatcher) finish(r Result, label string) Result {
	outcome := "success"
	errText := ""
	if r.Err != nil {
		outcome = resultLabel(r.Err)
		errText = r.Err.Error()
	}
	commandsTotal.WithLabelValues(label, outcome).Inc()
	d.bus.Publish(events.PTZCommandEvent{
		Command:   string(r.Command.Kind),
		State:     string(r.State),
		Error:     errText,
		Timestamp: events.Now(),
	})
	return r
}

var kindSet = func() map[Kind]struct{} {
	m := make(map[Kind]struct{}, len(Kinds))
	for _, k := range Kinds {
		m[k] = struct{}{}
	}
	m["auto"] = struct{}{}
	return m
}()

func resultLabel(err error) string {
	switch Code(err) {
	case ErrCodeMalformed:
		return "malformed"
	case ErrCodeOutOfRange:
		return "out_of_range"
	case ErrCodeNoTarget:
		return "no_target"
	case ErrCodeUnreachable:
		return "unreachable"
	case ErrCodeRejected:
		return "rejected"
	default:
		return "error"
	}
}
