package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readInt(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[int]) *Watcher[int] {
	t.Helper()
	opts = append([]WatcherOption[int]{WithDebounce[int](30 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, readInt, quietLogger(), opts...)
	return w
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path)
	got := make(chan int, 4)
	w.OnReload(func(v int) { got <- v })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(path, []byte("42"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != 42 {
			t.Errorf("reloaded %d, want 42", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload")
	}
}

func TestWatcherReloadsOnRenameReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "value")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path)
	got := make(chan int, 4)
	w.OnReload(func(v int) { got <- v })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	tmp := filepath.Join(dir, "value.tmp")
	if err := os.WriteFile(tmp, []byte("7"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		if v != 7 {
			t.Errorf("reloaded %d, want 7", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for reload after rename")
	}
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "value")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := startWatcher(t, path)
	got := make(chan int, 4)
	w.OnReload(func(v int) { got <- v })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(filepath.Join(dir, "other"), []byte("9"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-got:
		t.Errorf("unexpected reload with %d", v)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherErrorHandlerAndUnsubscribe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 4)
	w := startWatcher(t, path, WithErrorHandler[int](func(err error) { errs <- err }))
	got := make(chan int, 4)
	unsubscribe := w.OnReload(func(v int) { got <- v })
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = w.Stop() })

	if err := os.WriteFile(path, []byte("not a number"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-errs:
		var numErr *strconv.NumError
		if !errors.As(err, &numErr) {
			t.Errorf("error = %v, want *strconv.NumError", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error callback")
	}

	unsubscribe()
	if err := os.WriteFile(path, []byte("5"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case v := <-got:
		t.Errorf("unsubscribed handler received %d", v)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := startWatcher(t, path)
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("first Stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}
