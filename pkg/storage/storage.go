// Package storage defines the capability interfaces through which the HTTP
// facade talks to the time-series storage engine. The engine owns durable
// persistence; this layer only requires scoped read and write handles per
// device.
//
// Implementations: badger (production), memory (testing and development).
package storage

import (
	"context"
	"time"

	"github.com/taransay/taransayd/pkg/series"
)

// Engine hands out scoped read and write capabilities for a device,
// identified by its (group, device) pair.
type Engine interface {
	// Reader acquires a read handle for a device.
	Reader(group, device string) (Reader, error)

	// Writer acquires a write handle for a device.
	Writer(group, device string) (Writer, error)

	// Close shuts the engine down.
	Close() error
}

// Reader is a scoped query capability. Close releases it; iterators it
// produced must not be used afterwards.
type Reader interface {
	// QueryInterval yields samples with start <= t < stop in ascending
	// timestamp order. A step greater than one keeps every step-th sample.
	// The returned iterator must be closed on every exit path.
	QueryInterval(ctx context.Context, start, stop time.Time, step int) (series.Iterator, error)

	Close() error
}

// Writer is a scoped append capability. Append must be called in
// non-decreasing timestamp order; the engine assumes monotonic input.
// Close commits the handle's appends.
type Writer interface {
	Append(t time.Time, values []float64) error
	Close() error
}
