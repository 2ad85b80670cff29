package api

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"

	"github.com/taransay/taransayd/pkg/httpx"
	"github.com/taransay/taransayd/pkg/ingest"
	"github.com/taransay/taransayd/pkg/stream"
)

// queryParams are the validated query-string arguments of a data read.
type queryParams struct {
	start time.Time
	stop  time.Time
	step  int
}

// parseQueryParams validates start/stop/step. start is required; stop
// defaults to the current time, taken at the request, not cached.
func parseQueryParams(r *http.Request) (queryParams, error) {
	ve := ingest.NewValidationError()
	params := queryParams{stop: time.Now()}

	q := r.URL.Query()

	if raw := q.Get("start"); raw == "" {
		ve.Add("start", "missing required query parameter")
	} else if t, err := ingest.ParseTimestamp(raw); err != nil {
		ve.Add("start", "%v", err)
	} else {
		params.start = t
	}

	if raw := q.Get("stop"); raw != "" {
		if t, err := ingest.ParseTimestamp(raw); err != nil {
			ve.Add("stop", "%v", err)
		} else {
			params.stop = t
		}
	}

	if raw := q.Get("step"); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil {
			ve.Add("step", "not a valid integer: %q", raw)
		} else {
			params.step = n
		}
	}

	if !ve.Empty() {
		return queryParams{}, ve
	}
	return params, nil
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, device := vars["group"], vars["device"]

	params, err := parseQueryParams(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.resolver.DeviceExists(group, device); err != nil {
		respondError(w, err)
		return
	}

	// Resolve the channel projection before touching the engine so slug
	// errors surface as clean client errors.
	channel := stream.FullVector
	if slug, ok := vars["channel"]; ok {
		channel, err = h.resolver.ChannelIndex(group, device, slug)
		if err != nil {
			respondError(w, err)
			return
		}
	}

	reader, err := h.engine.Reader(group, device)
	if err != nil {
		respondError(w, err)
		return
	}
	defer reader.Close()

	it, err := reader.QueryInterval(r.Context(), params.start, params.stop, params.step)
	if err != nil {
		respondError(w, err)
		return
	}
	defer it.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// The status line is already on the wire; a mid-stream failure can only
	// be logged and the stream cut short.
	if err := stream.EncodeArray(flushWriter{w}, it, channel); err != nil {
		log.Printf("streaming %s/%s: %v", group, device, err)
	}
}

// flushWriter pushes each encoded chunk to the client immediately so long
// queries stream instead of sitting in the response buffer.
type flushWriter struct {
	w http.ResponseWriter
}

func (fw flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if f, ok := fw.w.(http.Flusher); ok {
		f.Flush()
	}
	return n, err
}

// readBody drains the request body, transparently gunzipping it when the
// request says so. Decompression runs before any schema parsing; a body
// that fails to inflate is a validation failure in its own right.
func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, ingest.FieldError("json", "unable to read request body")
	}

	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, ingest.FieldError("json", "invalid gzip-compressed body")
		}
		defer zr.Close()

		inflated, err := io.ReadAll(zr)
		if err != nil {
			return nil, ingest.FieldError("json", "invalid gzip-compressed body")
		}
		return inflated, nil
	}
	return body, nil
}

func (h *Handler) handleWrite(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	group, device := vars["group"], vars["device"]

	body, err := readBody(r)
	if err != nil {
		respondError(w, err)
		return
	}

	payload, err := ingest.ParseSinglePayload(body)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := h.writeDevice(group, device, payload.Data, "data"); err != nil {
		respondError(w, err)
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, map[string]string{"message": "created"})
}

func (h *Handler) handleBulkWrite(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, err)
		return
	}

	payload, err := ingest.ParseBulkPayload(body)
	if err != nil {
		respondError(w, err)
		return
	}

	// Per-device writes are independent: a failure aborts the remaining
	// loop but leaves earlier commits in place. Keys are walked in sorted
	// order so the first failure is deterministic.
	for _, group := range sortedKeys(payload.Data) {
		devices := payload.Data[group]
		for _, device := range sortedKeys(devices) {
			field := "data." + group + "." + device
			if err := h.writeDevice(group, device, devices[device], field); err != nil {
				respondError(w, err)
				return
			}
		}
	}

	httpx.RespondJSON(w, http.StatusCreated, map[string]string{"message": "created"})
}

// writeDevice validates a device's points against its channel layout and
// commits them, fanning the committed samples out to live subscribers.
func (h *Handler) writeDevice(group, device string, points []ingest.Point, field string) error {
	if err := h.resolver.DeviceExists(group, device); err != nil {
		return err
	}

	channels, err := h.resolver.Channels(group, device)
	if err != nil {
		return err
	}
	if err := ingest.CheckVectorLengths(points, len(channels), field); err != nil {
		return err
	}

	committed, err := ingest.WriteDevice(h.engine, group, device, points)
	if err != nil {
		return err
	}

	h.hub.Publish(group, device, committed)
	return nil
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
