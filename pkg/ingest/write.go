package ingest

import (
	"fmt"

	"github.com/taransay/taransayd/pkg/series"
	"github.com/taransay/taransayd/pkg/storage"
)

// WriteDevice commits a device's points through the storage engine. Points
// are re-sorted into ascending timestamp order first; the engine's append
// path assumes monotonic input and out-of-order appends must not corrupt
// the underlying log.
//
// The committed samples are returned in append order so callers can fan
// them out (e.g. to live subscribers).
func WriteDevice(engine storage.Engine, group, device string, points []Point) ([]series.Sample, error) {
	samples := make([]series.Sample, len(points))
	for i, p := range points {
		samples[i] = series.Sample{Time: p.Time, Values: p.Values}
	}
	series.SortByTime(samples)

	w, err := engine.Writer(group, device)
	if err != nil {
		return nil, fmt.Errorf("acquiring writer for %s/%s: %w", group, device, err)
	}

	for _, s := range samples {
		if err := w.Append(s.Time, s.Values); err != nil {
			w.Close()
			return nil, fmt.Errorf("appending to %s/%s: %w", group, device, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("committing %s/%s: %w", group, device, err)
	}
	return samples, nil
}
