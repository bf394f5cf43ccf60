// Package systemd reports service readiness and liveness to the service
// manager over the sd_notify socket. All calls are no-ops when the process
// is not running under systemd.
package systemd

import (
	"context"
	"log/slog"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready signals that the bridge has selected a source and is serving.
func (n *Notifier) Ready(status string) {
	n.notify(daemon.SdNotifyReady + "\nSTATUS=" + status)
}

// Stopping signals the start of a graceful shutdown.
func (n *Notifier) Stopping() {
	n.notify(daemon.SdNotifyStopping)
}

// Status updates the free-form status line shown by systemctl.
func (n *Notifier) Status(status string) {
	n.notify("STATUS=" + status)
}

// RunWatchdog pings the watchdog at half the configured interval while
// alive reports true. It returns immediately when no watchdog is set.
func (n *Notifier) RunWatchdog(ctx context.Context, alive func() bool) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Failed to read watchdog settings", "error", err)
		return
	}
	if interval == 0 {
		return
	}

	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if alive() {
				n.notify(daemon.SdNotifyWatchdog)
			}
		}
	}
}

func (n *Notifier) notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "error", err)
		return
	}
	if sent {
		n.logger.Debug("sd_notify sent", "state", state)
	}
}
