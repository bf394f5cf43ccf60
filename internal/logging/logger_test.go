package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	modules = make(map[string]*moduleLogger)
	globalConfig = Config{Level: "info", Format: "text"}
	isInitialized = false
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"visca":  "debug",
			"bridge": "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"visca", true, true, true},
		{"bridge", false, false, true},
		{"other", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			h := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := h.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := h.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Info enabled = %v, want %v", got, tt.wantInfo)
			}
			if got := h.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Warn enabled = %v, want %v", got, tt.wantWarn)
			}
		})
	}
}

func TestLoggerCreatedBeforeInitialize(t *testing.T) {
	resetState()

	early := GetLogger("ptz")
	if early.Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled before Initialize")
	}

	Initialize(Config{Level: "info", Modules: map[string]string{"ptz": "debug"}})

	if !GetLogger("ptz").Handler().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled after Initialize applied module override")
	}
}

func TestSetModuleLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info"})

	logger := GetLogger("capture")
	if !SetModuleLevel("capture", "error") {
		t.Fatal("SetModuleLevel rejected a valid level")
	}
	if logger.Handler().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled after raising level to error")
	}
	if SetModuleLevel("capture", "loud") {
		t.Error("SetModuleLevel accepted an invalid level")
	}
	if got := ModuleLevels()["capture"]; got != "error" {
		t.Errorf("ModuleLevels()[capture] = %q, want error", got)
	}
}

func TestBufferRecordsEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	GetLogger("discovery").Info("Source selected",
		"name", "Cam-A",
		"elapsed", 2*time.Second,
		"error", errors.New("boom"),
		slog.Group("device", "host", "192.168.1.50"))

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("buffer holds %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Module != "discovery" || e.Message != "Source selected" || e.Level != "info" {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.Attributes["name"] != "Cam-A" {
		t.Errorf("name attr = %v", e.Attributes["name"])
	}
	if e.Attributes["elapsed"] != "2s" {
		t.Errorf("elapsed attr = %v", e.Attributes["elapsed"])
	}
	if e.Attributes["error"] != "boom" {
		t.Errorf("error attr = %v", e.Attributes["error"])
	}
	if e.Attributes["device.host"] != "192.168.1.50" {
		t.Errorf("grouped attr = %v", e.Attributes["device.host"])
	}
	if len(got) != 1 || got[0].Seq != e.Seq {
		t.Errorf("callback saw %+v, want seq %d", got, e.Seq)
	}
}

func TestRingBufferWraps(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i))})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	want := []string{"c", "d", "e"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, e.Message, want[i])
		}
		if e.Seq != uint64(i+3) {
			t.Errorf("entries[%d].Seq = %d, want %d", i, e.Seq, i+3)
		}
	}
}
