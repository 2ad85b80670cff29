package api

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"

	"github.com/taransay/taransayd/pkg/httpx"
)

var startTime = time.Now()

// baseURL reconstructs the external base URL of the request so that info
// responses can carry absolute self-referential links.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func (h *Handler) handleDirectory(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"directory": map[string]string{
			"tags":    base + "/v1/info/tags",
			"devices": base + "/v1/info/groups",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"version": Version,
		"uptime":  time.Since(startTime).String(),
	})
}

func (h *Handler) handleChart(w http.ResponseWriter, r *http.Request) {
	if info, err := os.Stat(h.chartFile); err != nil || info.IsDir() {
		httpx.RespondEnvelope(w, http.StatusNotFound, "chart page not available")
		return
	}
	http.ServeFile(w, r, h.chartFile)
}

func (h *Handler) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.resolver.Tags()
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, tags)
}

func (h *Handler) handleGroups(w http.ResponseWriter, r *http.Request) {
	names, err := h.resolver.Groups()
	if err != nil {
		respondError(w, err)
		return
	}

	groups := make([]map[string]interface{}, 0, len(names))
	for _, group := range names {
		info, err := h.groupInfo(r, group)
		if err != nil {
			respondError(w, err)
			return
		}
		groups = append(groups, info)
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"groups": groups})
}

func (h *Handler) handleGroupDevices(w http.ResponseWriter, r *http.Request) {
	group := mux.Vars(r)["group"]

	infos, err := h.deviceInfos(r, group)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, infos)
}

func (h *Handler) handleDeviceInfo(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	info, err := h.deviceInfo(r, vars["group"], vars["device"])
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.RespondJSON(w, http.StatusOK, info)
}

// groupInfo augments the group document with its device records and a
// self-referential URL. The URL uses the group's slug when it declares one.
func (h *Handler) groupInfo(r *http.Request, group string) (map[string]interface{}, error) {
	info, err := h.resolver.GroupConfig(group)
	if err != nil {
		return nil, err
	}

	devices, err := h.deviceInfos(r, group)
	if err != nil {
		return nil, err
	}
	info["devices"] = devices

	slug := group
	if s, ok := info["slug"].(string); ok && s != "" {
		slug = s
	}
	info["url"] = fmt.Sprintf("%s/v1/info/groups/%s/", baseURL(r), slug)

	return info, nil
}

func (h *Handler) deviceInfos(r *http.Request, group string) ([]map[string]interface{}, error) {
	names, err := h.resolver.Devices(group)
	if err != nil {
		return nil, err
	}

	infos := make([]map[string]interface{}, 0, len(names))
	for _, device := range names {
		info, err := h.deviceInfo(r, group, device)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// deviceInfo augments the device document: every channel is annotated with
// its owning group and device, and the record gains absolute URLs for the
// info and query endpoints.
func (h *Handler) deviceInfo(r *http.Request, group, device string) (map[string]interface{}, error) {
	info, err := h.resolver.DeviceConfig(group, device)
	if err != nil {
		return nil, err
	}

	if channels, ok := info["channels"].([]interface{}); ok {
		for _, entry := range channels {
			if channel, ok := entry.(map[string]interface{}); ok {
				channel["group"] = group
				channel["device"] = device
			}
		}
	}

	base := baseURL(r)
	info["url"] = fmt.Sprintf("%s/v1/info/devices/%s/%s", base, group, device)
	info["data_url"] = fmt.Sprintf("%s/v1/data/%s/%s", base, group, device)

	return info, nil
}
