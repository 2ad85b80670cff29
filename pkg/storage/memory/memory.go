// Package memory implements the storage engine in process memory. Data is
// lost on restart. Useful for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/taransay/taransayd/pkg/series"
	"github.com/taransay/taransayd/pkg/storage"
)

// Engine keeps one time-ordered sample slice per (group, device) pair.
type Engine struct {
	devices map[string][]series.Sample
	mu      sync.RWMutex
}

// New creates an in-memory storage engine.
func New() *Engine {
	return &Engine{devices: make(map[string][]series.Sample)}
}

func deviceKey(group, device string) string {
	return group + "/" + device
}

// Reader acquires a read handle for a device.
func (e *Engine) Reader(group, device string) (storage.Reader, error) {
	return &reader{engine: e, key: deviceKey(group, device)}, nil
}

// Writer acquires a write handle for a device.
func (e *Engine) Writer(group, device string) (storage.Writer, error) {
	return &writer{engine: e, key: deviceKey(group, device)}, nil
}

// Close is a no-op for the in-memory engine.
func (e *Engine) Close() error { return nil }

// Samples returns a copy of everything stored for a device, for tests.
func (e *Engine) Samples(group, device string) []series.Sample {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stored := e.devices[deviceKey(group, device)]
	out := make([]series.Sample, len(stored))
	copy(out, stored)
	return out
}

type reader struct {
	engine *Engine
	key    string
}

func (r *reader) QueryInterval(ctx context.Context, start, stop time.Time, step int) (series.Iterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.engine.mu.RLock()
	stored := r.engine.devices[r.key]

	// Half-open interval [start, stop).
	lo := sort.Search(len(stored), func(i int) bool { return !stored[i].Time.Before(start) })
	hi := sort.Search(len(stored), func(i int) bool { return !stored[i].Time.Before(stop) })

	window := make([]series.Sample, hi-lo)
	copy(window, stored[lo:hi])
	r.engine.mu.RUnlock()

	return series.Decimate(series.NewSliceIterator(window), step), nil
}

func (r *reader) Close() error { return nil }

type writer struct {
	engine  *Engine
	key     string
	pending []series.Sample
	last    time.Time
}

func (w *writer) Append(t time.Time, values []float64) error {
	if len(w.pending) > 0 && t.Before(w.last) {
		return fmt.Errorf("append out of order: %s before %s", t, w.last)
	}
	w.last = t

	vals := make([]float64, len(values))
	copy(vals, values)
	w.pending = append(w.pending, series.Sample{Time: t, Values: vals})
	return nil
}

// Close merges the handle's appends into the device's sorted slice. Samples
// sharing a timestamp with an existing one replace it.
func (w *writer) Close() error {
	if len(w.pending) == 0 {
		return nil
	}

	w.engine.mu.Lock()
	defer w.engine.mu.Unlock()

	stored := w.engine.devices[w.key]
	for _, s := range w.pending {
		i := sort.Search(len(stored), func(i int) bool { return !stored[i].Time.Before(s.Time) })
		if i < len(stored) && stored[i].Time.Equal(s.Time) {
			stored[i] = s
			continue
		}
		stored = append(stored, series.Sample{})
		copy(stored[i+1:], stored[i:])
		stored[i] = s
	}
	w.engine.devices[w.key] = stored
	w.pending = nil
	return nil
}
