package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProbeTimeout = time.Second
	maxParallelProbes   = 8
)

type sourcesFile struct {
	Sources []Source `toml:"source"`
}

// LoadSourcesFile parses a TOML file of [[source]] tables.
// Any read or parse failure wraps ErrSourceUnavailable.
func LoadSourcesFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	var file sourcesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", ErrSourceUnavailable, path, err)
	}
	for i, s := range file.Sources {
		if s.Name == "" || s.Address == "" {
			return nil, fmt.Errorf("%w: source %d needs name and address", ErrSourceUnavailable, i+1)
		}
	}
	return file.Sources, nil
}

// FileFinder reports configured sources whose address accepts a TCP
// connection.
type FileFinder struct {
	probeTimeout time.Duration
	dialer       func(ctx context.Context, network, address string) (net.Conn, error)

	mu      sync.RWMutex
	sources []Source
	changed chan struct{}
}

// FileFinderOption configures a FileFinder.
type FileFinderOption func(*FileFinder)

// WithProbeTimeout bounds each reachability probe.
func WithProbeTimeout(d time.Duration) FileFinderOption {
	return func(f *FileFinder) { f.probeTimeout = d }
}

// NewFileFinder loads path and returns a finder over its sources.
func NewFileFinder(path string, opts ...FileFinderOption) (*FileFinder, error) {
	sources, err := LoadSourcesFile(path)
	if err != nil {
		return nil, err
	}
	f := &FileFinder{
		probeTimeout: defaultProbeTimeout,
		sources:      sources,
		changed:      make(chan struct{}, 1),
	}
	var d net.Dialer
	f.dialer = d.DialContext
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// SetSources replaces the configured sources and wakes any waiter.
func (f *FileFinder) SetSources(sources []Source) {
	f.mu.Lock()
	f.sources = slices.Clone(sources)
	f.mu.Unlock()

	select {
	case f.changed <- struct{}{}:
	default:
	}
}

// Changed signals after SetSources.
func (f *FileFinder) Changed() <-chan struct{} {
	return f.changed
}

// Configured returns the sources from the file, reachable or not.
func (f *FileFinder) Configured() []Source {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.sources)
}

// FindSources probes every configured source and returns the reachable
// ones in file order. An empty result is ErrNoSourceFound.
func (f *FileFinder) FindSources(ctx context.Context) ([]Source, error) {
	sources := f.Configured()
	visible := make([]bool, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelProbes)
	for i, s := range sources {
		i, s := i, s
		g.Go(func() error {
			visible[i] = f.probe(gctx, s.Address)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []Source
	for i, s := range sources {
		if visible[i] {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoSourceFound
	}
	return out, nil
}

func (f *FileFinder) probe(ctx context.Context, address string) bool {
	ctx, cancel := context.WithTimeout(ctx, f.probeTimeout)
	defer cancel()

	conn, err := f.dialer(ctx, "tcp", address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
