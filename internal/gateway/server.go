// Package gateway serves the tool registry over HTTP for chat-UI
// platforms that consume OpenAPI tool servers.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/sovereign-tools/sovereign/internal/events"
	"github.com/sovereign-tools/sovereign/internal/gateway/ws"
	"github.com/sovereign-tools/sovereign/internal/memory"
	"github.com/sovereign-tools/sovereign/internal/plugins"
)

// Server is the Sovereign gateway HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	bus        *events.Bus
	registry   *plugins.ToolRegistry
	store      memory.Store // nil when the host runs memory-less
	host       string
	port       int
}

// NewServer creates a new gateway server. A nil store degrades
// /api/memories to 503 while everything else keeps working.
func NewServer(bus *events.Bus, registry *plugins.ToolRegistry, store memory.Store, host string, port int) *Server {
	hub := ws.NewHub(bus)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	s := &Server{
		hub:      hub,
		bus:      bus,
		registry: registry,
		store:    store,
		host:     host,
		port:     port,
	}

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/tools", s.handleTools)
	r.Post("/api/tools/{name}", s.handleInvoke)
	r.Get("/api/memories", s.handleMemories)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/ws", hub.ServeWS)
	r.Get("/openapi.json", s.handleOpenAPIJSON)
	r.Get("/openapi.yaml", s.handleOpenAPIYAML)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", host, port),
		Handler: r,
	}

	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.httpServer.Addr }

// Start begins listening. It blocks until the server is stopped.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	slog.Info("sovereign gateway listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// toolJSON is the /api/tools listing shape.
type toolJSON struct {
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Plugin      string                       `json:"plugin,omitempty"`
	Parameters  map[string]plugins.ParamSpec `json:"parameters,omitempty"`
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	names := s.registry.ToolNames()
	result := make([]toolJSON, 0, len(names))
	for _, name := range names {
		spec := s.registry.ToolSpec(name)
		if spec == nil {
			continue
		}
		tj := toolJSON{
			Name:        spec.Name,
			Description: spec.Description,
			Parameters:  spec.Parameters,
		}
		if m := s.registry.Manifest(name); m != nil && m.Name != name {
			tj.Plugin = m.Name
		}
		result = append(result, tj)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	invokable := s.registry.Tool(name)
	if invokable == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown tool: " + name})
		return
	}

	var args json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return
	}

	id := uuid.NewString()[:8]
	start := time.Now()

	output, err := invokable.InvokableRun(r.Context(), string(args))
	elapsed := time.Since(start)

	if err != nil {
		s.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.ToolFailedPayload{
			Tool:  name,
			Error: err.Error(),
		}))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	s.bus.Publish(events.NewTypedEvent(events.SourceGateway, events.ToolInvokedPayload{
		Tool:     name,
		Duration: elapsed,
	}))

	// Tools return JSON strings; pass them through untouched when valid.
	var result any
	if json.Valid([]byte(output)) {
		result = json.RawMessage(output)
	} else {
		result = output
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":          id,
		"tool":        name,
		"duration_ms": elapsed.Milliseconds(),
		"result":      result,
	})
}

// memoryJSON is the /api/memories entry shape.
type memoryJSON struct {
	Topic     string `json:"topic"`
	Content   string `json:"content"`
	UpdatedAt string `json:"updated_at"`
}

func (s *Server) handleMemories(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "memory store unavailable"})
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	entries, err := s.store.Recall(r.Context(), memory.Wildcard)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, memory.ErrStorageUnavailable) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	result := make([]memoryJSON, len(entries))
	for i, e := range entries {
		result[i] = memoryJSON{
			Topic:     e.Topic,
			Content:   e.Content,
			UpdatedAt: e.UpdatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	history := s.bus.History(limit)

	type eventJSON struct {
		ID        string             `json:"id"`
		Type      string             `json:"type"`
		Timestamp string             `json:"timestamp"`
		Source    events.EventSource `json:"source"`
		Payload   map[string]any     `json:"payload"`
	}

	result := make([]eventJSON, len(history))
	for i, e := range history {
		result[i] = eventJSON{
			ID:        e.ID,
			Type:      string(e.Type),
			Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			Source:    e.Source,
			Payload:   e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, result)
}
