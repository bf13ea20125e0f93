package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"casegraph/internal/broadcast"
	"casegraph/internal/graph"
	"casegraph/internal/logger"
	"casegraph/internal/metrics"
	"casegraph/internal/store"
	"casegraph/pkg/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Access control happens upstream at the platform gateway.
	CheckOrigin: func(*http.Request) bool { return true },
}

type rebuildResponse struct {
	Message      string `json:"message"`
	NodesCreated int    `json:"nodes_created"`
	EdgesCreated int    `json:"edges_created"`
}

type graphResponse struct {
	Nodes []*models.GraphNode `json:"nodes"`
	Edges []*models.GraphEdge `json:"edges"`
}

func newRouter(st store.Store, builder *graph.Builder, broadcaster broadcast.Broadcaster, hub *broadcast.Hub) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/incidents/{incidentID}/graph/rebuild", handleRebuild(builder, broadcaster))
	r.Get("/api/incidents/{incidentID}/graph", handleGetGraph(st))
	r.Get("/ws/incidents/{incidentID}", handleSubscribe(hub))
	r.Handle("/metrics", metrics.Handler())

	return r
}

func handleRebuild(builder *graph.Builder, broadcaster broadcast.Broadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := chi.URLParam(r, "incidentID")
		actorID := r.Header.Get("X-User-ID")

		start := time.Now()
		result, err := builder.Build(r.Context(), incidentID, actorID)
		metrics.BuildDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.BuildTotal.WithLabelValues("error").Inc()
			logger.Errorf("Graph rebuild failed for incident %s: %v", incidentID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "graph rebuild failed"})
			return
		}
		metrics.BuildTotal.WithLabelValues("ok").Inc()
		metrics.NodesCreated.Add(float64(len(result.Nodes)))
		metrics.EdgesCreated.Add(float64(len(result.Edges)))

		broadcaster.GraphDeleted(incidentID)
		for _, node := range result.Nodes {
			broadcaster.GraphNodeAdded(incidentID, node)
		}
		for _, edge := range result.Edges {
			broadcaster.GraphEdgeAdded(incidentID, edge)
		}

		msg := "Attack graph generated successfully"
		if len(result.Nodes) == 0 {
			msg = "No compromised hosts found for this incident"
		}
		writeJSON(w, http.StatusOK, rebuildResponse{
			Message:      msg,
			NodesCreated: len(result.Nodes),
			EdgesCreated: len(result.Edges),
		})
	}
}

func handleGetGraph(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := chi.URLParam(r, "incidentID")

		nodes, err := st.Nodes(r.Context(), incidentID)
		if err != nil {
			logger.Errorf("Failed to load nodes for incident %s: %v", incidentID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load graph"})
			return
		}
		edges, err := st.Edges(r.Context(), incidentID)
		if err != nil {
			logger.Errorf("Failed to load edges for incident %s: %v", incidentID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load graph"})
			return
		}

		if nodes == nil {
			nodes = []*models.GraphNode{}
		}
		if edges == nil {
			edges = []*models.GraphEdge{}
		}
		writeJSON(w, http.StatusOK, graphResponse{Nodes: nodes, Edges: edges})
	}
}

func handleSubscribe(hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		incidentID := chi.URLParam(r, "incidentID")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warnf("WebSocket upgrade failed for incident %s: %v", incidentID, err)
			return
		}

		unsubscribe := hub.Subscribe(incidentID, conn)
		logger.Debugf("WebSocket subscriber added for incident %s (%d total)", incidentID, hub.SubscriberCount(incidentID))

		// Drain inbound frames so pings and close frames are handled;
		// subscribers are receive-only.
		go func() {
			defer unsubscribe()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Errorf("Failed to encode response: %v", err)
	}
}
