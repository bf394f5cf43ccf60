package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSources(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// closedAddr returns a loopback address nothing listens on.
func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func openAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	return ln.Addr().String()
}

func TestLoadSourcesFile(t *testing.T) {
	path := writeSources(t, `
[[source]]
name = "Cam-A"
address = "192.168.1.50:80"

[[source]]
name = "Cam-B"
address = "192.168.1.51:80"
stream_url = "http://192.168.1.51/video.mjpg"
`)
	sources, err := LoadSourcesFile(path)
	if err != nil {
		t.Fatalf("LoadSourcesFile: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sources))
	}
	if sources[1].StreamURL != "http://192.168.1.51/video.mjpg" {
		t.Errorf("stream_url = %q", sources[1].StreamURL)
	}
}

func TestLoadSourcesFileErrors(t *testing.T) {
	tests := map[string]string{
		"missing file":  "",
		"bad toml":      "[[source]\nname=",
		"missing field": "[[source]]\nname = \"Cam-A\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "absent.toml")
			if content != "" {
				path = writeSources(t, content)
			}
			_, err := LoadSourcesFile(path)
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Errorf("err = %v, want ErrSourceUnavailable", err)
			}
		})
	}
}

func TestFileFinderReportsReachableSources(t *testing.T) {
	up := openAddr(t)
	down := closedAddr(t)
	path := writeSources(t, fmt.Sprintf(`
[[source]]
name = "Down"
address = %q

[[source]]
name = "Up"
address = %q
`, down, up))

	f, err := NewFileFinder(path, WithProbeTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	sources, err := f.FindSources(context.Background())
	if err != nil {
		t.Fatalf("FindSources: %v", err)
	}
	if len(sources) != 1 || sources[0].Name != "Up" {
		t.Errorf("sources = %+v, want only Up", sources)
	}
	if len(f.Configured()) != 2 {
		t.Errorf("Configured() = %d sources, want 2", len(f.Configured()))
	}
}

func TestFileFinderNoneVisible(t *testing.T) {
	path := writeSources(t, fmt.Sprintf("[[source]]\nname = \"Down\"\naddress = %q\n", closedAddr(t)))

	f, err := NewFileFinder(path, WithProbeTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.FindSources(context.Background()); !errors.Is(err, ErrNoSourceFound) {
		t.Errorf("err = %v, want ErrNoSourceFound", err)
	}
}

func TestFileFinderSetSourcesWakesWaiter(t *testing.T) {
	path := writeSources(t, fmt.Sprintf("[[source]]\nname = \"Down\"\naddress = %q\n", closedAddr(t)))
	f, err := NewFileFinder(path, WithProbeTimeout(200*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}

	up := openAddr(t)
	go func() {
		time.Sleep(50 * time.Millisecond)
		f.SetSources([]Source{{Name: "Cam-A", Address: up}})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sources, err := WaitForSources(ctx, f, time.Hour, quietLogger())
	if err != nil {
		t.Fatalf("WaitForSources: %v", err)
	}
	if sources[0].Name != "Cam-A" {
		t.Errorf("sources = %+v", sources)
	}
}
