// Package server exposes planning sessions over HTTP: status, edge lists,
// GeoJSON, PNG frames and a websocket frame stream.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"rrt-planner/config"
	"rrt-planner/render"
	"rrt-planner/rrt"
	"rrt-planner/session"
)

type Server struct {
	registry *session.Registry
	cfg      config.Config
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func New(registry *session.Registry, cfg config.Config, logger *zap.Logger) *Server {
	return &Server{
		registry: registry,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed handler with CORS applied to every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /plans", s.createPlanHandler)
	mux.HandleFunc("GET /plans", s.listPlansHandler)
	mux.HandleFunc("GET /plans/{id}", s.planStatusHandler)
	mux.HandleFunc("DELETE /plans/{id}", s.deletePlanHandler)
	mux.HandleFunc("GET /plans/{id}/lines", s.planLinesHandler)
	mux.HandleFunc("GET /plans/{id}/geojson", s.planGeoJSONHandler)
	mux.HandleFunc("GET /plans/{id}/region", s.planRegionHandler)
	mux.HandleFunc("GET /plans/{id}/image.png", s.planImageHandler)
	mux.HandleFunc("GET /plans/{id}/stream", s.planStreamHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	return corsMiddleware(mux)
}

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type planResponse struct {
	ID            string      `json:"id"`
	State         string      `json:"state"`
	Reached       bool        `json:"reached"`
	Frames        uint64      `json:"frames"`
	Iterations    int         `json:"iterations"`
	NumNodes      int         `json:"numNodes"`
	Start         rrt.Point   `json:"start"`
	Goal          rrt.Point   `json:"goal"`
	GoalThreshold float64     `json:"goalThreshold"`
	Path          []rrt.Point `json:"path"`
	PathLength    float64     `json:"pathLength,omitempty"`
	Fingerprint   string      `json:"fingerprint"`
}

func newPlanResponse(id string, f session.Frame) planResponse {
	return planResponse{
		ID:            id,
		State:         f.State,
		Reached:       f.Reached,
		Frames:        f.Seq,
		Iterations:    f.Iterations,
		NumNodes:      len(f.Nodes),
		Start:         f.Start,
		Goal:          f.Goal,
		GoalThreshold: f.GoalThreshold,
		Path:          nonNil(f.Path),
		PathLength:    render.PathLength(f.Path),
		Fingerprint:   f.Fingerprint,
	}
}

// POST /plans - Start growing a new tree
func (s *Server) createPlanHandler(w http.ResponseWriter, r *http.Request) {
	var params session.Params
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			s.logger.Warn("❌ invalid request body", zap.Error(err))
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	// Sessions outlive the request that created them.
	sess, err := s.registry.Create(context.WithoutCancel(r.Context()), params)
	if err != nil {
		s.logger.Warn("❌ could not create plan", zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, newPlanResponse(sess.ID, sess.Frame()))
}

// GET /plans - List sessions
func (s *Server) listPlansHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"plans": s.registry.List(),
	})
}

// GET /plans/{id} - Status of one session
func (s *Server) planStatusHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newPlanResponse(sess.ID, sess.Frame()))
}

// DELETE /plans/{id} - Stop a session
func (s *Server) deletePlanHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.registry.Delete(id); err != nil {
		s.writeLookupError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /plans/{id}/lines - Tree edges as line strings for visualization
func (s *Server) planLinesHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	frame := sess.Frame()
	lines := frame.Scene().Lines()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"lines":    lines,
		"path":     nonNil(frame.Path),
		"numNodes": len(frame.Nodes),
		"numEdges": len(lines),
	})
}

// GET /plans/{id}/geojson - Tree, path and markers as a FeatureCollection
func (s *Server) planGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	frame := sess.Frame()

	etag := strconv.Quote(frame.Fingerprint)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := json.Marshal(render.GeoJSON(frame.Scene()))
	if err != nil {
		s.logger.Error("failed to encode geojson", zap.String("plan_id", sess.ID), zap.Error(err))
		http.Error(w, "Failed to encode GeoJSON", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("ETag", etag)
	w.Write(data)
}

// GET /plans/{id}/region?minX=&minY=&maxX=&maxY= - Edges inside a viewport
func (s *Server) planRegionHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var box [4]float64
	for i, key := range []string{"minX", "minY", "maxX", "maxY"} {
		v, err := strconv.ParseFloat(r.URL.Query().Get(key), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("Invalid %s", key), http.StatusBadRequest)
			return
		}
		box[i] = v
	}
	if box[0] > box[2] || box[1] > box[3] {
		http.Error(w, "Empty region", http.StatusBadRequest)
		return
	}

	edges := sess.Region(box[0], box[1], box[2], box[3])
	writeJSON(w, http.StatusOK, map[string]any{
		"edges":    edges,
		"numEdges": len(edges),
	})
}

// GET /plans/{id}/image.png - Current frame as PNG
func (s *Server) planImageHandler(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	raster := render.NewRaster(StyleFromConfig(s.cfg.Render))
	if err := raster.WritePNG(w, sess.Frame().Scene()); err != nil {
		s.logger.Error("failed to write frame", zap.String("plan_id", sess.ID), zap.Error(err))
	}
}

// GET /health - Health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ready",
		"numPlans": s.registry.Len(),
	})
}

// StyleFromConfig builds the raster style from render settings.
func StyleFromConfig(c config.RenderConfig) render.Style {
	style := render.DefaultStyle()
	style.Width = c.Width
	style.Height = c.Height
	style.EdgeWidth = c.EdgeWidth
	style.PathWidth = c.PathWidth
	style.MarkerRadius = c.MarkerRadius
	return style
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.writeLookupError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		http.Error(w, "Plan not found", http.StatusNotFound)
		return
	}
	s.logger.Error("plan lookup failed", zap.Error(err))
	http.Error(w, "Internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
