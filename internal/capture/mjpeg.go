package capture

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mattn/go-mjpeg"
	"github.com/smazurov/ptzbridge/internal/version"
)

// Backoff bounds for reconnecting to a dropped stream.
const (
	DefaultRetryDelay    = time.Second
	DefaultMaxRetryDelay = 30 * time.Second
)

// ReceiverOption configures an MJPEGReceiver.
type ReceiverOption func(*MJPEGReceiver)

// WithHTTPClient sets the client used to open the stream.
func WithHTTPClient(c *http.Client) ReceiverOption {
	return func(r *MJPEGReceiver) { r.client = c }
}

// WithBackoff sets the initial and maximum reconnect delay.
func WithBackoff(initial, limit time.Duration) ReceiverOption {
	return func(r *MJPEGReceiver) {
		r.retryDelay = initial
		r.maxRetryDelay = limit
	}
}

// WithLogger sets the receiver's logger.
func WithLogger(l *slog.Logger) ReceiverOption {
	return func(r *MJPEGReceiver) { r.logger = l }
}

// MJPEGReceiver decodes an MJPEG-over-HTTP stream in the background and
// keeps only the newest frame. A frame is handed out at most once.
type MJPEGReceiver struct {
	url           string
	client        *http.Client
	logger        *slog.Logger
	retryDelay    time.Duration
	maxRetryDelay time.Duration

	mu     sync.Mutex
	latest *Frame
	notify chan struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenMJPEG starts receiving from url. It never fails: connection errors
// are retried in the background until Close.
func OpenMJPEG(url string, opts ...ReceiverOption) *MJPEGReceiver {
	r := &MJPEGReceiver{
		url:           url,
		client:        http.DefaultClient,
		logger:        slog.Default(),
		retryDelay:    DefaultRetryDelay,
		maxRetryDelay: DefaultMaxRetryDelay,
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	go r.run(ctx)
	return r
}

// PullFrame returns the next frame, waiting at most timeout. A timeout
// returns (nil, false) and is not an error.
func (r *MJPEGReceiver) PullFrame(ctx context.Context, timeout time.Duration) (*Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		if f := r.take(); f != nil {
			return f, true
		}
		select {
		case <-r.notify:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		case <-r.done:
			return nil, false
		}
	}
}

// Close stops the receiver and waits for its goroutine to exit.
func (r *MJPEGReceiver) Close() error {
	r.cancel()
	<-r.done
	return nil
}

func (r *MJPEGReceiver) take() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.latest
	r.latest = nil
	return f
}

func (r *MJPEGReceiver) publish(f *Frame) {
	r.mu.Lock()
	if r.latest != nil {
		framesDropped.Inc()
	}
	r.latest = f
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *MJPEGReceiver) run(ctx context.Context) {
	defer close(r.done)

	attempt := 0
	for {
		decoded, err := r.stream(ctx)
		streamUp.Set(0)
		if ctx.Err() != nil {
			return
		}
		if decoded > 0 {
			attempt = 0
		}
		attempt++
		reconnects.Inc()

		delay := backoff(attempt, r.retryDelay, r.maxRetryDelay)
		r.logger.Warn("Source stream lost, reconnecting", "url", r.url, "error", err, "attempt", attempt, "delay", delay)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// stream decodes frames until the connection or multipart framing fails.
// Parts that are not valid JPEG are skipped. It returns how many frames
// were decoded.
func (r *MJPEGReceiver) stream(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %s", res.Status)
	}

	dec, err := mjpeg.NewDecoderFromResponse(res)
	if err != nil {
		return 0, fmt.Errorf("open decoder: %w", err)
	}

	r.logger.Info("Source stream connected", "url", r.url)
	streamUp.Set(1)

	n := 0
	for {
		part, err := dec.DecodeRaw()
		if err != nil {
			return n, fmt.Errorf("read part: %w", err)
		}
		img, err := jpeg.Decode(bytes.NewReader(part))
		if err != nil {
			framesCorrupt.Inc()
			r.logger.Debug("Skipping undecodable frame", "url", r.url, "bytes", len(part), "error", err)
			continue
		}
		r.publish(FromImage(img))
		framesDecoded.Inc()
		n++
	}
}

// backoff returns initial * 2^(attempt-1), capped at limit.
func backoff(attempt int, initial, limit time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		return limit
	}
	d := initial << uint(attempt-1)
	if d > limit || d <= 0 {
		return limit
	}
	return d
}
