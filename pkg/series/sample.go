// Package series defines the sample types shared by the storage engines,
// the ingest path and the streaming encoder.
package series

import (
	"sort"
	"time"
)

// Sample is a single observation for a device: a timestamp plus one value
// per declared channel, in channel declaration order.
type Sample struct {
	Time   time.Time
	Values []float64
}

// SortByTime sorts samples into ascending timestamp order in place.
// The write path relies on this before appending: the storage engine
// assumes monotonically non-decreasing input.
func SortByTime(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].Time.Before(samples[j].Time)
	})
}
