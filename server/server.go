// Package server exposes the engine's status over HTTP: JSON snapshots of
// every registered object plus a websocket stream of component health
// changes.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/vigil/engine"
)

// Server is the HTTP status endpoint for one engine.
type Server struct {
	eng  *engine.Engine
	log  *zap.SugaredLogger
	http *http.Server
	hub  *hub
}

// New builds a status server listening on the given port.
func New(eng *engine.Engine, port int, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		eng: eng,
		log: log,
		hub: newHub(log),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/status/", s.handleComponent)
	mux.HandleFunc("/ws", s.hub.handleWS)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// BroadcastHealth pushes a component health change to every websocket
// client. Wire it into the engine's ComponentHealth callback.
func (s *Server) BroadcastHealth(component string, health int64) {
	s.hub.broadcast(healthEvent{
		Component: component,
		Health:    health,
		Time:      time.Now().UTC(),
	})
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.log.Infow("status server listening", "address", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorw("status server failed", "error", err)
		}
	}()
}

// Stop shuts the server down, closing websocket clients first.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.close()
	return s.http.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, s.eng.Snapshot())
}

func (s *Server) handleComponent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/status/")
	if name == "" {
		http.Error(w, "component name required", http.StatusBadRequest)
		return
	}
	cs, ok := s.eng.ComponentSnapshot(name)
	if !ok {
		http.Error(w, "unknown component", http.StatusNotFound)
		return
	}
	writeJSON(w, cs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
