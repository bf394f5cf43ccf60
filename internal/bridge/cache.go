package bridge

import (
	"sync/atomic"
	"time"

	"github.com/smazurov/ptzbridge/internal/capture"
)

// Captured is a frame paired with the moment it was pulled, relative to
// the session clock. Seq counts frames from 1.
type Captured struct {
	Frame *capture.Frame
	At    time.Duration
	Seq   uint64
}

// Cache holds the most recently captured frame. It starts empty and,
// once populated, is never cleared.
type Cache struct {
	p atomic.Pointer[Captured]
}

// Store replaces the cached frame.
func (c *Cache) Store(f *Captured) {
	c.p.Store(f)
}

// Load returns the cached frame, or nil if nothing was captured yet.
func (c *Cache) Load() *Captured {
	return c.p.Load()
}
