package led

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func fakeLED(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, f := range []string{"trigger", "brightness"} {
		if err := os.WriteFile(filepath.Join(dir, f), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimSpace(string(data))
}

func TestSysfsSet(t *testing.T) {
	tests := []struct {
		pattern        string
		wantTrigger    string
		wantBrightness string
	}{
		{PatternSolid, "none", "1"},
		{PatternBlink, "heartbeat", ""},
		{PatternOff, "none", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			root := t.TempDir()
			dir := fakeLED(t, root, "sys_led")
			ctrl := newSysfs(root, map[string]string{RoleStatus: "sys_led"})

			if err := ctrl.Set(RoleStatus, tt.pattern); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if got := readFile(t, filepath.Join(dir, "trigger")); got != tt.wantTrigger {
				t.Errorf("trigger = %q, want %q", got, tt.wantTrigger)
			}
			if got := readFile(t, filepath.Join(dir, "brightness")); got != tt.wantBrightness {
				t.Errorf("brightness = %q, want %q", got, tt.wantBrightness)
			}
		})
	}
}

func TestSysfsErrors(t *testing.T) {
	root := t.TempDir()
	fakeLED(t, root, "sys_led")
	ctrl := newSysfs(root, map[string]string{RoleStatus: "sys_led", RoleActivity: "missing"})

	if err := ctrl.Set("power", PatternSolid); err == nil {
		t.Error("expected error for unmapped role")
	}
	if err := ctrl.Set(RoleActivity, PatternSolid); err == nil {
		t.Error("expected error for missing LED directory")
	}
	if err := ctrl.Set(RoleStatus, "strobe"); err == nil {
		t.Error("expected error for unknown pattern")
	}
}

func TestNewForModel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		model     string
		wantRoles int
	}{
		{"FriendlyElec NanoPC-T6", 2},
		{"Xunlong Orange Pi 5 Plus", 2},
		{"Raspberry Pi 4 Model B Rev 1.4", 2},
		{"unknown", 0},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			ctrl := newForModel(tt.model, t.TempDir(), logger)
			if got := len(ctrl.Roles()); got != tt.wantRoles {
				t.Errorf("Roles() = %d entries, want %d", got, tt.wantRoles)
			}
			if err := ctrl.Set(RoleStatus, PatternSolid); tt.wantRoles == 0 && err != nil {
				t.Errorf("noop Set() error = %v", err)
			}
		})
	}
}
