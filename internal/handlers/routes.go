package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes adds every API route to router.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/thumbnail", h.GetThumbnail).Methods(http.MethodGet).Name("thumbnail")
	router.HandleFunc("/api/thumbnails", h.GenerateThumbnails).Methods(http.MethodPost).Name("generate")
	router.HandleFunc("/api/thumbnails", h.CancelThumbnails).Methods(http.MethodDelete).Name("cancel")

	router.HandleFunc("/api/cache", h.RemoveVideoCache).Methods(http.MethodDelete).Name("cache-remove")
	router.HandleFunc("/api/cache/all", h.ClearCache).Methods(http.MethodDelete).Name("cache-clear")
	router.HandleFunc("/api/cache/stats", h.GetCacheStats).Methods(http.MethodGet).Name("cache-stats")
	router.HandleFunc("/api/cache/sweep", h.SweepCache).Methods(http.MethodPost).Name("cache-sweep")
	router.HandleFunc("/api/memory-pressure", h.SimulateMemoryPressure).Methods(http.MethodPost).Name("memory-pressure")
	router.HandleFunc("/api/version", h.GetVersion).Methods(http.MethodGet).Name("version-api")

	router.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet, http.MethodHead).Name("health")
	router.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead).Name("live")
	router.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet).Name("version")
}
