// Package discovery finds capture sources on the network and picks the
// one a session binds to.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"
)

var (
	// ErrSourceUnavailable means discovery itself cannot run.
	ErrSourceUnavailable = errors.New("source discovery unavailable")
	// ErrNoSourceFound means discovery ran but nothing is visible yet.
	ErrNoSourceFound = errors.New("no source found")
)

// DefaultPollInterval bounds each wait between discovery attempts.
const DefaultPollInterval = 5 * time.Second

// Source is a capture device visible on the network.
type Source struct {
	Name      string `toml:"name" json:"name" example:"Cam-A" doc:"Source name"`
	Address   string `toml:"address" json:"address" example:"192.168.1.50:80" doc:"Device host:port"`
	StreamURL string `toml:"stream_url" json:"stream_url" example:"http://192.168.1.50/mjpeg" doc:"MJPEG stream URL"`
}

// URL returns the stream URL, defaulting to /mjpeg on the source address.
func (s Source) URL() string {
	if s.StreamURL != "" {
		return s.StreamURL
	}
	return "http://" + s.Address + "/mjpeg"
}

// Finder lists the sources currently visible.
type Finder interface {
	FindSources(ctx context.Context) ([]Source, error)
}

// notifier is implemented by finders that can report configuration changes.
type notifier interface {
	Changed() <-chan struct{}
}

// WaitForSources polls finder until at least one source is visible.
// ErrNoSourceFound is retried forever; any other error is returned.
// Finders that report changes cut the wait short.
func WaitForSources(ctx context.Context, finder Finder, interval time.Duration, logger *slog.Logger) ([]Source, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	var changed <-chan struct{}
	if n, ok := finder.(notifier); ok {
		changed = n.Changed()
	}

	for {
		sources, err := finder.FindSources(ctx)
		if err == nil && len(sources) > 0 {
			return sources, nil
		}
		if err != nil && !errors.Is(err, ErrNoSourceFound) {
			return nil, err
		}

		logger.Info("Looking for sources", "retry_in", interval)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-changed:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// Select returns the source named preferred, or the first source when it
// is missing. fallback reports whether the preferred name was not found.
// sources must be non-empty.
func Select(sources []Source, preferred string, logger *slog.Logger) (src Source, fallback bool) {
	for _, s := range sources {
		logger.Info("Available source", "name", s.Name, "address", s.Address)
	}

	if preferred != "" {
		for _, s := range sources {
			if s.Name == preferred {
				return s, false
			}
		}
		logger.Warn("Preferred source not found, using first available",
			"preferred", preferred, "selected", sources[0].Name)
		return sources[0], true
	}
	return sources[0], false
}

// TargetHost extracts the device host from a host:port address. Bare
// hosts and bracketed IPv6 literals are accepted.
func TargetHost(address string) string {
	address = strings.TrimSpace(address)
	if host, _, err := net.SplitHostPort(address); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
}
