// Package visca drives a camera over VISCA-over-IP (Sony's UDP framing
// of the VISCA serial protocol).
package visca

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/smazurov/ptzbridge/internal/ptz"
	"golang.org/x/time/rate"
)

// DefaultPort is the standard VISCA-over-IP UDP port.
const DefaultPort = 52381

// Defaults for Conn options.
const (
	DefaultReplyTimeout = time.Second
	DefaultRateLimit    = 20
	DefaultBurst        = 5
)

// Payload types in the 8-byte VISCA-over-IP header.
const (
	typeCommand      = 0x0100
	typeReply        = 0x0111
	typeControl      = 0x0200
	typeControlReply = 0x0201

	headerLen  = 8
	maxPayload = 16
)

// DeviceError is an error reply from the camera.
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("visca error 0x%02x (%s)", e.Code, e.reason())
}

func (e *DeviceError) reason() string {
	switch e.Code {
	case 0x01:
		return "message length"
	case 0x02:
		return "syntax"
	case 0x03:
		return "command buffer full"
	case 0x04:
		return "command cancelled"
	case 0x05:
		return "no socket"
	case 0x41:
		return "command not executable"
	default:
		return "unknown"
	}
}

// Unwrap classifies every device error as a rejected command.
func (e *DeviceError) Unwrap() error {
	return ptz.ErrCommandRejected
}

// Conn is a VISCA-over-IP link to one camera. Exchanges are serialized:
// a command is written and its replies collected before the next starts.
type Conn struct {
	conn         net.Conn
	replyTimeout time.Duration
	limiter      *rate.Limiter
	logger       *slog.Logger

	mu  sync.Mutex
	seq uint32
	buf [64]byte
}

// Option configures a Conn.
type Option func(*Conn)

// WithReplyTimeout bounds how long Send waits for the camera.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *Conn) { c.replyTimeout = d }
}

// WithRateLimit paces commands to perSecond with the given burst.
// Non-positive values keep DefaultRateLimit and DefaultBurst.
func WithRateLimit(perSecond float64, burst int) Option {
	if perSecond <= 0 {
		perSecond = DefaultRateLimit
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return func(c *Conn) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithLogger sets the link's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Conn) { c.logger = l }
}

// Address joins host and the VISCA port.
func Address(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// Dial opens a link to address and resets the camera's sequence counter.
// A camera that does not answer the reset is logged but not fatal; UDP
// gives no connection to fail.
func Dial(ctx context.Context, address string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w: %w", address, ptz.ErrDeviceUnreachable, err)
	}

	c := &Conn{
		conn:         nc,
		replyTimeout: DefaultReplyTimeout,
		limiter:      rate.NewLimiter(DefaultRateLimit, DefaultBurst),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.reset(ctx); err != nil {
		c.logger.Warn("VISCA sequence reset unanswered", "address", address, "error", err)
	} else {
		c.logger.Info("VISCA link ready", "address", address)
	}
	return c, nil
}

// RemoteAddr returns the camera address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Do encodes cmd and sends each resulting payload.
func (c *Conn) Do(ctx context.Context, cmd ptz.Command) error {
	payloads, err := Encode(cmd)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := c.Send(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", cmd.Kind, err)
		}
	}
	return nil
}

// Send writes one VISCA command and waits for its completion. An ACK
// without a completion inside the reply timeout counts as accepted.
// Error replies return *DeviceError; silence or network failures wrap
// ptz.ErrDeviceUnreachable.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	if len(payload) == 0 || len(payload) > maxPayload {
		return fmt.Errorf("%w: payload length %d", ptz.ErrMalformedCommand, len(payload))
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ptz.ErrDeviceUnreachable, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seq, err := c.write(typeCommand, payload)
	if err != nil {
		return err
	}

	acked := false
	deadline := c.deadline(ctx)
	for {
		reply, err := c.read(seq, deadline)
		if err != nil {
			var ne net.Error
			if acked && errors.As(err, &ne) && ne.Timeout() {
				c.logger.Debug("VISCA completion not seen, treating ACK as success", "seq", seq)
				return nil
			}
			return err
		}
		if len(reply) < 3 {
			continue
		}
		switch reply[1] & 0xF0 {
		case 0x40:
			acked = true
		case 0x50:
			return nil
		case 0x60:
			return &DeviceError{Code: reply[2]}
		}
	}
}

// Close closes the link.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq = 0
	seq, err := c.write(typeControl, []byte{0x01})
	if err != nil {
		return err
	}
	_, err = c.read(seq, c.deadline(ctx))
	c.seq = 0
	return err
}

// write frames payload with the next sequence number. Caller holds mu.
func (c *Conn) write(payloadType uint16, payload []byte) (uint32, error) {
	seq := c.seq
	c.seq++

	msg := make([]byte, headerLen+len(payload))
	binary.BigEndian.PutUint16(msg[0:2], payloadType)
	binary.BigEndian.PutUint16(msg[2:4], uint16(len(payload)))
	binary.BigEndian.PutUint32(msg[4:8], seq)
	copy(msg[headerLen:], payload)

	if _, err := c.conn.Write(msg); err != nil {
		return 0, fmt.Errorf("%w: write: %w", ptz.ErrDeviceUnreachable, err)
	}
	return seq, nil
}

// read returns the payload of the next reply for seq. Replies to other
// sequence numbers are stale and skipped. Caller holds mu.
func (c *Conn) read(seq uint32, deadline time.Time) ([]byte, error) {
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: %w", ptz.ErrDeviceUnreachable, err)
	}
	for {
		n, err := c.conn.Read(c.buf[:])
		if err != nil {
			return nil, fmt.Errorf("%w: read: %w", ptz.ErrDeviceUnreachable, err)
		}
		if n < headerLen {
			continue
		}
		typ := binary.BigEndian.Uint16(c.buf[0:2])
		if typ != typeReply && typ != typeControlReply {
			continue
		}
		if binary.BigEndian.Uint32(c.buf[4:8]) != seq {
			continue
		}
		length := int(binary.BigEndian.Uint16(c.buf[2:4]))
		if headerLen+length > n {
			length = n - headerLen
		}
		return append([]byte(nil), c.buf[headerLen:headerLen+length]...), nil
	}
}

func (c *Conn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.replyTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
