package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func verifyNoLeaks(t *testing.T) {
	t.Helper()
	goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

func jpegFrame(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for i := range img.Pix {
		img.Pix[i] = shade
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// mjpegServer writes frames as multipart/x-mixed-replace parts, pausing
// between parts, then holds the connection open until the client leaves.
func mjpegServer(t *testing.T, frames [][]byte, gap time.Duration) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)

		for _, f := range frames {
			part, err := mw.CreatePart(textproto.MIMEHeader{
				"Content-Type":   {"image/jpeg"},
				"Content-Length": {fmt.Sprint(len(f))},
			})
			if err != nil {
				return
			}
			if _, err := part.Write(f); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(gap)
		}
		<-r.Context().Done()
	}))
}

func TestMJPEGReceiverPullsFrames(t *testing.T) {
	defer verifyNoLeaks(t)

	srv := mjpegServer(t, [][]byte{jpegFrame(t, 200)}, 0)
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()))
	defer r.Close()

	f, ok := r.PullFrame(context.Background(), 2*time.Second)
	if !ok {
		t.Fatal("PullFrame timed out")
	}
	if f.Width != 16 || f.Height != 8 {
		t.Errorf("frame size = %dx%d, want 16x8", f.Width, f.Height)
	}
	if len(f.Pix) != 16*8*3 {
		t.Errorf("len(Pix) = %d, want RGB24", len(f.Pix))
	}
	if d := int(f.Pix[0]) - 200; d < -8 || d > 8 {
		t.Errorf("decoded shade %d, want about 200", f.Pix[0])
	}
}

func TestMJPEGReceiverTimeoutIsNotAnError(t *testing.T) {
	defer verifyNoLeaks(t)

	srv := mjpegServer(t, [][]byte{jpegFrame(t, 10)}, 0)
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()))
	defer r.Close()

	if _, ok := r.PullFrame(context.Background(), 2*time.Second); !ok {
		t.Fatal("first PullFrame timed out")
	}

	start := time.Now()
	f, ok := r.PullFrame(context.Background(), 100*time.Millisecond)
	if ok || f != nil {
		t.Fatalf("PullFrame = (%v, %v), want (nil, false) when source is idle", f, ok)
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("returned after %v, want to wait for the timeout", elapsed)
	}
}

func TestMJPEGReceiverKeepsNewestFrame(t *testing.T) {
	defer verifyNoLeaks(t)

	frames := [][]byte{jpegFrame(t, 20), jpegFrame(t, 120), jpegFrame(t, 240)}
	srv := mjpegServer(t, frames, 20*time.Millisecond)
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()))
	defer r.Close()

	time.Sleep(300 * time.Millisecond)

	f, ok := r.PullFrame(context.Background(), time.Second)
	if !ok {
		t.Fatal("PullFrame timed out")
	}
	if f.Pix[0] < 200 {
		t.Errorf("got shade %d, want the newest frame", f.Pix[0])
	}
}

func TestMJPEGReceiverReconnects(t *testing.T) {
	defer verifyNoLeaks(t)

	var hits atomic.Int32
	frame := jpegFrame(t, 90)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		part, _ := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
		_, _ = part.Write(frame)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()), WithBackoff(10*time.Millisecond, 50*time.Millisecond))
	defer r.Close()

	if _, ok := r.PullFrame(context.Background(), 2*time.Second); !ok {
		t.Fatal("PullFrame timed out after reconnect")
	}
	if hits.Load() < 2 {
		t.Errorf("server saw %d requests, want a retry", hits.Load())
	}
}

func TestMJPEGReceiverSkipsCorruptPart(t *testing.T) {
	defer verifyNoLeaks(t)

	var hits atomic.Int32
	frames := [][]byte{jpegFrame(t, 30), []byte("not a jpeg"), jpegFrame(t, 230)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		w.WriteHeader(http.StatusOK)
		for _, f := range frames {
			part, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"image/jpeg"}})
			if err != nil {
				return
			}
			_, _ = part.Write(f)
			w.(http.Flusher).Flush()
			time.Sleep(20 * time.Millisecond)
		}
		<-r.Context().Done()
	}))
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()), WithBackoff(time.Minute, time.Minute))
	defer r.Close()

	sawLast := false
	for deadline := time.Now().Add(2 * time.Second); !sawLast && time.Now().Before(deadline); {
		f, ok := r.PullFrame(context.Background(), 500*time.Millisecond)
		if !ok {
			t.Fatal("no frame after the corrupt part")
		}
		sawLast = f.Pix[0] > 200
	}
	if !sawLast {
		t.Fatal("frame after the corrupt part never arrived")
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("server saw %d requests, want the stream kept open", got)
	}
}

func TestPullFrameHonoursContext(t *testing.T) {
	defer verifyNoLeaks(t)

	srv := mjpegServer(t, nil, 0)
	defer srv.Close()

	r := OpenMJPEG(srv.URL, WithLogger(quietLogger()))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := r.PullFrame(ctx, time.Minute); ok {
		t.Error("PullFrame succeeded on a cancelled context")
	}
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{6, 30 * time.Second},
		{100, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.attempt, time.Second, 30*time.Second); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

