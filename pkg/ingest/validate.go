// Package ingest validates and commits incoming sample payloads: the
// single-device form {"sent": ts, "data": [[ts, [v, ...]], ...]} and the
// bulk form nesting the same tuples under group and device keys.
package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ValidationError carries per-field messages for a rejected payload. The
// API layer surfaces it as a 422 with the field map as the error
// description.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// NewValidationError returns an empty ValidationError to accumulate field
// messages into. Use Empty to check whether anything was recorded.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// FieldError builds a single-field ValidationError.
func FieldError(field, format string, args ...interface{}) *ValidationError {
	ve := NewValidationError()
	ve.Add(field, format, args...)
	return ve
}

// Add records a message against a field.
func (e *ValidationError) Add(field, format string, args ...interface{}) {
	e.Fields[field] = append(e.Fields[field], fmt.Sprintf(format, args...))
}

// Empty reports whether no field messages were recorded.
func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

// orNil collapses an empty accumulator to a nil error.
func (e *ValidationError) orNil() error {
	if e.Empty() {
		return nil
	}
	return e
}

// timestampLayouts are the accepted ISO-8601 shapes. Layouts without a zone
// are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601 timestamp string.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a valid datetime: %q", s)
}

// Point is one (timestamp, value-vector) tuple from a write payload. The
// wire form is a two-element array: ["<timestamp>", [v, ...]].
type Point struct {
	Time   time.Time
	Values []float64
}

func (p *Point) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("not a [timestamp, values] pair")
	}
	if len(raw) != 2 {
		return fmt.Errorf("expected 2 elements, got %d", len(raw))
	}

	var ts string
	if err := json.Unmarshal(raw[0], &ts); err != nil {
		return fmt.Errorf("timestamp is not a string")
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return err
	}

	var values []float64
	if err := json.Unmarshal(raw[1], &values); err != nil {
		return fmt.Errorf("values are not a list of numbers")
	}

	p.Time = t
	p.Values = values
	return nil
}

// SinglePayload is the body of a single-device write. Sent is a
// submission-time audit stamp; it is not stored with the samples.
type SinglePayload struct {
	Sent time.Time
	Data []Point
}

// BulkPayload is the body of a bulk write: points grouped by group then
// device.
type BulkPayload struct {
	Sent time.Time
	Data map[string]map[string][]Point
}

// rawEnvelope splits a payload into its two top-level fields before the
// shape-specific data decoding.
type rawEnvelope struct {
	Sent *string         `json:"sent"`
	Data json.RawMessage `json:"data"`
}

func decodeEnvelope(body []byte, ve *ValidationError) rawEnvelope {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		ve.Add("json", "invalid JSON body")
		return env
	}
	return env
}

func parseSent(env rawEnvelope, ve *ValidationError) time.Time {
	if env.Sent == nil {
		ve.Add("sent", "missing required field")
		return time.Time{}
	}
	t, err := ParseTimestamp(*env.Sent)
	if err != nil {
		ve.Add("sent", "%v", err)
	}
	return t
}

// ParseSinglePayload validates and decodes a single-device write body. On
// failure the returned error is a *ValidationError with per-field messages.
func ParseSinglePayload(body []byte) (*SinglePayload, error) {
	ve := NewValidationError()

	env := decodeEnvelope(body, ve)
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	payload := &SinglePayload{Sent: parseSent(env, ve)}

	if len(env.Data) > 0 {
		payload.Data = parsePoints(env.Data, "data", ve)
	}

	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return payload, nil
}

// ParseBulkPayload validates and decodes a bulk write body.
func ParseBulkPayload(body []byte) (*BulkPayload, error) {
	ve := NewValidationError()

	env := decodeEnvelope(body, ve)
	if err := ve.orNil(); err != nil {
		return nil, err
	}

	payload := &BulkPayload{Sent: parseSent(env, ve)}

	if len(env.Data) == 0 {
		ve.Add("data", "missing required field")
		return nil, ve
	}

	var groups map[string]map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &groups); err != nil {
		ve.Add("data", "not a mapping of groups to devices")
		return nil, ve
	}

	payload.Data = make(map[string]map[string][]Point, len(groups))
	for group, devices := range groups {
		payload.Data[group] = make(map[string][]Point, len(devices))
		for device, raw := range devices {
			field := fmt.Sprintf("data.%s.%s", group, device)
			payload.Data[group][device] = parsePoints(raw, field, ve)
		}
	}

	if err := ve.orNil(); err != nil {
		return nil, err
	}
	return payload, nil
}

func parsePoints(raw json.RawMessage, field string, ve *ValidationError) []Point {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		ve.Add(field, "not a list of [timestamp, values] pairs")
		return nil
	}

	points := make([]Point, 0, len(elems))
	for i, elem := range elems {
		var p Point
		if err := p.UnmarshalJSON(elem); err != nil {
			ve.Add(field, "element %d: %v", i, err)
			continue
		}
		points = append(points, p)
	}
	return points
}

// CheckVectorLengths verifies that every point carries one value per
// declared channel. A mismatch would silently misalign stored vectors
// against the channel layout, so it is rejected up front.
func CheckVectorLengths(points []Point, channels int, field string) error {
	ve := NewValidationError()
	for i, p := range points {
		if len(p.Values) != channels {
			ve.Add(field, "element %d: expected %d values, got %d", i, channels, len(p.Values))
		}
	}
	return ve.orNil()
}
