package led

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Roles the bridge drives. Boards map each role to a physical LED.
const (
	RoleStatus   = "status"
	RoleActivity = "activity"
)

// Patterns understood by every Controller.
const (
	PatternSolid = "solid"
	PatternBlink = "blink"
	PatternOff   = "off"
)

// Controller drives indicator LEDs by role.
type Controller interface {
	Set(role, pattern string) error
	Roles() []string
}

const sysfsLEDPath = "/sys/class/leds"

type sysfs struct {
	root  string
	roles map[string]string
}

func newSysfs(root string, roles map[string]string) *sysfs {
	return &sysfs{root: root, roles: roles}
}

func (s *sysfs) Set(role, pattern string) error {
	name, ok := s.roles[role]
	if !ok {
		return fmt.Errorf("no LED mapped to role %q", role)
	}
	dir := filepath.Join(s.root, name)
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("LED %q: %w", name, err)
	}

	trigger, brightness := "none", "0"
	switch pattern {
	case PatternSolid:
		brightness = "1"
	case PatternBlink:
		trigger = "heartbeat"
	case PatternOff:
	default:
		return fmt.Errorf("unknown LED pattern %q", pattern)
	}

	if err := os.WriteFile(filepath.Join(dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("failed to set LED trigger: %w", err)
	}
	if trigger != "none" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("failed to set LED brightness: %w", err)
	}
	return nil
}

func (s *sysfs) Roles() []string {
	roles := make([]string, 0, len(s.roles))
	for role := range s.roles {
		roles = append(roles, role)
	}
	return roles
}

// noop is used on hosts without controllable LEDs.
type noop struct {
	logger *slog.Logger
}

func (n *noop) Set(role, pattern string) error {
	n.logger.Debug("LED control unavailable", "role", role, "pattern", pattern)
	return nil
}

func (n *noop) Roles() []string { return []string{} }
