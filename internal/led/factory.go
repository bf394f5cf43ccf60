package led

import (
	"log/slog"
	"os"
	"strings"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// boardLEDs maps device tree model substrings to role assignments.
var boardLEDs = []struct {
	model string
	roles map[string]string
}{
	{"NanoPC-T6", map[string]string{RoleStatus: "sys_led", RoleActivity: "usr_led"}},
	{"Orange Pi", map[string]string{RoleStatus: "green_led", RoleActivity: "blue_led"}},
	{"Raspberry Pi", map[string]string{RoleStatus: "ACT", RoleActivity: "PWR"}},
}

// New returns a controller for the detected board, or a no-op controller
// when the board has no known LEDs.
func New(logger *slog.Logger) Controller {
	return newForModel(detectBoard(), sysfsLEDPath, logger)
}

func newForModel(model, root string, logger *slog.Logger) Controller {
	for _, b := range boardLEDs {
		if strings.Contains(model, b.model) {
			logger.Info("Using sysfs LED controller", "board_model", model)
			return newSysfs(root, b.roles)
		}
	}
	logger.Info("No LED support detected", "board_model", model)
	return &noop{logger: logger}
}

func detectBoard() string {
	data, err := os.ReadFile(deviceTreeModelPath)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}
