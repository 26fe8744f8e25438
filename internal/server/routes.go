package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Souhar-dya/Cohesion/internal/execute"
	"github.com/Souhar-dya/Cohesion/internal/relay"
)

// New assembles the HTTP surface: the websocket upgrade, health and
// stats probes, Prometheus metrics, and the execution proxy.
func New(hub *relay.Hub, exec *execute.Client) http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)

	r.Get("/health", healthHandler)
	r.Get("/api/stats", statsHandler(hub))
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/execute", execute.Handler(exec))
	r.Get("/ws", func(w http.ResponseWriter, req *http.Request) {
		relay.ServeWS(hub, w, req)
	})

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func statsHandler(hub *relay.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]any{
			"active_rooms":   hub.RoomCount(),
			"active_clients": hub.ClientCount(),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("server: encoding response failed", "err", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
