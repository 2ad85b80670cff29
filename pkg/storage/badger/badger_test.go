package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/taransay/taransayd/pkg/series"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

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

func query(t *testing.T, e *Engine, group, device string, start, stop time.Time, step int) []series.Sample {
	t.Helper()
	r, err := e.Reader(group, device)
	require.NoError(t, err)
	defer r.Close()

	it, err := r.QueryInterval(context.Background(), start, stop, step)
	require.NoError(t, err)
	defer it.Close()

	var out []series.Sample
	for it.Next() {
		out = append(out, it.Sample())
	}
	require.NoError(t, it.Err())
	return out
}

func TestRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	write(t, e, "g1", "d1",
		series.Sample{Time: ts(10), Values: []float64{1.5, 2.5}},
		series.Sample{Time: ts(20), Values: []float64{3.5, 4.5}},
	)

	got := query(t, e, "g1", "d1", ts(0), ts(60), 0)
	require.Len(t, got, 2)
	require.Equal(t, ts(10), got[0].Time)
	require.Equal(t, []float64{1.5, 2.5}, got[0].Values)
	require.Equal(t, ts(20), got[1].Time)
	require.Equal(t, []float64{3.5, 4.5}, got[1].Values)
}

func TestIntervalIsHalfOpen(t *testing.T) {
	e := newTestEngine(t)
	write(t, e, "g1", "d1",
		series.Sample{Time: ts(10), Values: []float64{1}},
		series.Sample{Time: ts(20), Values: []float64{2}},
		series.Sample{Time: ts(30), Values: []float64{3}},
	)

	got := query(t, e, "g1", "d1", ts(10), ts(30), 0)
	require.Len(t, got, 2)
	require.Equal(t, ts(10), got[0].Time)
	require.Equal(t, ts(20), got[1].Time)
}

func TestStepDecimation(t *testing.T) {
	e := newTestEngine(t)
	var samples []series.Sample
	for i := 0; i < 10; i++ {
		samples = append(samples, series.Sample{Time: ts(i), Values: []float64{float64(i)}})
	}
	write(t, e, "g1", "d1", samples...)

	got := query(t, e, "g1", "d1", ts(0), ts(10), 5)
	require.Len(t, got, 2)
	require.Equal(t, []float64{0}, got[0].Values)
	require.Equal(t, []float64{5}, got[1].Values)
}

func TestDevicesAreIsolated(t *testing.T) {
	e := newTestEngine(t)
	write(t, e, "g1", "d1", series.Sample{Time: ts(1), Values: []float64{1}})
	write(t, e, "g1", "d2", series.Sample{Time: ts(1), Values: []float64{2}})
	write(t, e, "g2", "d1", series.Sample{Time: ts(1), Values: []float64{3}})

	got := query(t, e, "g1", "d1", ts(0), ts(60), 0)
	require.Len(t, got, 1)
	require.Equal(t, []float64{1}, got[0].Values)
}

func TestAppendOutOfOrderRejected(t *testing.T) {
	e := newTestEngine(t)
	w, err := e.Writer("g1", "d1")
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(ts(20), []float64{2}))
	require.Error(t, w.Append(ts(10), []float64{1}))
}

func TestEmptyInterval(t *testing.T) {
	e := newTestEngine(t)
	write(t, e, "g1", "d1", series.Sample{Time: ts(10), Values: []float64{1}})

	got := query(t, e, "g1", "d1", ts(40), ts(50), 0)
	require.Empty(t, got)
}

func TestValueCodec(t *testing.T) {
	in := []float64{0, -1.25, 3e300}
	out, err := decodeValues(encodeValues(in))
	require.NoError(t, err)
	require.Equal(t, in, out)

	_, err = decodeValues([]byte{0, 0})
	require.Error(t, err)
}
