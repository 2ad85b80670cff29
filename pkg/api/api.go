// Package api wires the HTTP surface: route table, request decoding
// (including gzip-compressed bodies), and the single boundary that
// translates domain errors into the JSON error envelope.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taransay/taransayd/pkg/httpx"
	"github.com/taransay/taransayd/pkg/live"
	"github.com/taransay/taransayd/pkg/meta"
	"github.com/taransay/taransayd/pkg/storage"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// Handler holds the collaborators every endpoint dispatches to. Requests
// are independent; the handler carries no per-request state.
type Handler struct {
	resolver  *meta.Resolver
	engine    storage.Engine
	hub       *live.Hub
	chartFile string
}

// New creates the API handler.
func New(resolver *meta.Resolver, engine storage.Engine, hub *live.Hub, chartFile string) *Handler {
	return &Handler{
		resolver:  resolver,
		engine:    engine,
		hub:       hub,
		chartFile: chartFile,
	}
}

// Router builds the full route table.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	// Framework fallbacks also answer in the JSON envelope, never HTML.
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondEnvelope(w, http.StatusNotFound, "the requested URL was not found on the server")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondEnvelope(w, http.StatusMethodNotAllowed, "the method is not allowed for the requested URL")
	})

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/v1", http.StatusFound)
	}).Methods("GET")
	router.HandleFunc("/chart", h.handleChart).Methods("GET")

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("", h.handleDirectory).Methods("GET")
	v1.HandleFunc("/", h.handleDirectory).Methods("GET")
	v1.HandleFunc("/health", h.handleHealth).Methods("GET")

	v1.HandleFunc("/info/tags", h.handleTags).Methods("GET")
	v1.HandleFunc("/info/groups", h.handleGroups).Methods("GET")
	v1.HandleFunc("/info/groups/{group}/", h.handleGroupDevices).Methods("GET")
	v1.HandleFunc("/info/devices/{group}/{device}", h.handleDeviceInfo).Methods("GET")

	v1.HandleFunc("/data/{group}/{device}", h.handleQuery).Methods("GET")
	v1.HandleFunc("/data/{group}/{device}/{channel}", h.handleQuery).Methods("GET")
	v1.HandleFunc("/data/{group}/{device}", h.handleWrite).Methods("POST")
	v1.HandleFunc("/data", h.handleBulkWrite).Methods("POST")

	v1.HandleFunc("/live/{group}/{device}", h.handleLive).Methods("GET")

	return router
}

// corsMiddleware allows cross-origin access to the API; the facade is
// consumed by browser dashboards served from elsewhere.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
