package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taransay/taransayd/pkg/series"
)

func ts(sec int) time.Time {
	return time.Date(2021, 1, 1, 0, 0, sec, 0, time.UTC)
}

func write(t *testing.T, e *Engine, group, device string, samples ...series.Sample) {
	t.Helper()
	w, err := e.Writer(group, device)
	require.NoError(t, err)
	for _, s := range samples {
		require.NoError(t, w.Append(s.Time, s.Values))
	}
	require.NoError(t, w.Close())
}

func collect(t *testing.T, it series.Iterator) []series.Sample {
	t.Helper()
	defer it.Close()

	var out []series.Sample
	for it.Next() {
		out = append(out, it.Sample())
	}
	require.NoError(t, it.Err())
	return out
}

func TestQueryIntervalBounds(t *testing.T) {
	e := New()
	write(t, e, "g1", "d1",
		series.Sample{Time: ts(10), Values: []float64{1}},
		series.Sample{Time: ts(20), Values: []float64{2}},
		series.Sample{Time: ts(30), Values: []float64{3}},
	)

	r, err := e.Reader("g1", "d1")
	require.NoError(t, err)
	defer r.Close()

	// Half-open: stop is excluded, start is included.
	it, err := r.QueryInterval(context.Background(), ts(10), ts(30), 0)
	require.NoError(t, err)

	got := collect(t, it)
	require.Len(t, got, 2)
	require.Equal(t, ts(10), got[0].Time)
	require.Equal(t, ts(20), got[1].Time)
}

func TestQueryIntervalOrdering(t *testing.T) {
	e := New()
	// Two separate write handles with interleaving intervals.
	write(t, e, "g1", "d1",
		series.Sample{Time: ts(20), Values: []float64{2}},
		series.Sample{Time: ts(40), Values: []float64{4}},
	)
	write(t, e, "g1", "d1",
		series.Sample{Time: ts(10), Values: []float64{1}},
		series.Sample{Time: ts(30), Values: []float64{3}},
	)

	r, err := e.Reader("g1", "d1")
	require.NoError(t, err)
	defer r.Close()

	it, err := r.QueryInterval(context.Background(), ts(0), ts(60), 0)
	require.NoError(t, err)

	got := collect(t, it)
	require.Len(t, got, 4)
	for i := 1; i < len(got); i++ {
		require.True(t, got[i-1].Time.Before(got[i].Time))
	}
}

func TestQueryIntervalStep(t *testing.T) {
	e := New()
	var samples []series.Sample
	for i := 0; i < 6; i++ {
		samples = append(samples, series.Sample{Time: ts(i), Values: []float64{float64(i)}})
	}
	write(t, e, "g1", "d1", samples...)

	r, err := e.Reader("g1", "d1")
	require.NoError(t, err)
	defer r.Close()

	it, err := r.QueryInterval(context.Background(), ts(0), ts(10), 2)
	require.NoError(t, err)

	got := collect(t, it)
	require.Len(t, got, 3)
	require.Equal(t, []float64{0}, got[0].Values)
	require.Equal(t, []float64{2}, got[1].Values)
	require.Equal(t, []float64{4}, got[2].Values)
}

func TestAppendOutOfOrderRejected(t *testing.T) {
	e := New()
	w, err := e.Writer("g1", "d1")
	require.NoError(t, err)

	require.NoError(t, w.Append(ts(20), []float64{2}))
	require.Error(t, w.Append(ts(10), []float64{1}))
}

func TestDevicesAreIsolated(t *testing.T) {
	e := New()
	write(t, e, "g1", "d1", series.Sample{Time: ts(1), Values: []float64{1}})
	write(t, e, "g1", "d2", series.Sample{Time: ts(2), Values: []float64{2}})

	r, err := e.Reader("g1", "d1")
	require.NoError(t, err)
	defer r.Close()

	it, err := r.QueryInterval(context.Background(), ts(0), ts(60), 0)
	require.NoError(t, err)

	got := collect(t, it)
	require.Len(t, got, 1)
	require.Equal(t, []float64{1}, got[0].Values)
}

func TestEqualTimestampReplaces(t *testing.T) {
	e := New()
	write(t, e, "g1", "d1", series.Sample{Time: ts(1), Values: []float64{1}})
	write(t, e, "g1", "d1", series.Sample{Time: ts(1), Values: []float64{9}})

	samples := e.Samples("g1", "d1")
	require.Len(t, samples, 1)
	require.Equal(t, []float64{9}, samples[0].Values)
}
