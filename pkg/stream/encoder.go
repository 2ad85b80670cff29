// Package stream serializes a lazy sample stream as a JSON array without
// materializing it. Memory use is bounded to a single pending sample no
// matter how long the stream is.
package stream

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/taransay/taransayd/pkg/series"
)

// FullVector selects no channel projection: the whole value vector is
// emitted for each sample.
const FullVector = -1

// EncodeArray writes the stream as a JSON array of {"x": timestamp, "y":
// value} objects, in input order. When channel is non-negative, y is the
// single value at that index of each sample's vector; otherwise y is the
// vector itself.
//
// JSON arrays forbid trailing commas, so the encoder holds exactly one
// pending sample: the separator after it is only written once the next
// sample's availability is confirmed. An empty stream produces exactly [].
func EncodeArray(w io.Writer, it series.Iterator, channel int) error {
	if !it.Next() {
		if err := it.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, "[]")
		return err
	}
	pending := it.Sample()

	if _, err := io.WriteString(w, "[\n"); err != nil {
		return err
	}

	for it.Next() {
		if err := writeItem(w, pending, channel, true); err != nil {
			return err
		}
		pending = it.Sample()
	}
	if err := it.Err(); err != nil {
		return err
	}

	if err := writeItem(w, pending, channel, false); err != nil {
		return err
	}
	_, err := io.WriteString(w, "]")
	return err
}

func writeItem(w io.Writer, s series.Sample, channel int, more bool) error {
	buf := make([]byte, 0, 64)
	buf = append(buf, "\t{\"x\": \""...)
	buf = s.Time.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, "\", \"y\": "...)

	if channel >= 0 {
		if channel >= len(s.Values) {
			return fmt.Errorf("channel index %d out of range for %d-value sample at %s",
				channel, len(s.Values), s.Time.Format(time.RFC3339Nano))
		}
		buf = appendValue(buf, s.Values[channel])
	} else {
		buf = append(buf, '[')
		for i, v := range s.Values {
			if i > 0 {
				buf = append(buf, ", "...)
			}
			buf = appendValue(buf, v)
		}
		buf = append(buf, ']')
	}

	buf = append(buf, '}')
	if more {
		buf = append(buf, ',')
	}
	buf = append(buf, '\n')

	_, err := w.Write(buf)
	return err
}

// appendValue formats one float as a JSON number. NaN and infinities have
// no JSON representation and are emitted as null.
func appendValue(buf []byte, v float64) []byte {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return append(buf, "null"...)
	}
	return strconv.AppendFloat(buf, v, 'g', -1, 64)
}
