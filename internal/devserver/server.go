// Package devserver is a stand-in for the workspace backend: it speaks
// the same token and chat-socket protocol so the client library can be
// developed and tested without the real service.
package devserver

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nimbusworks/workchat/internal/api"
	"github.com/nimbusworks/workchat/internal/connections"
	"github.com/nimbusworks/workchat/pkg/httpext"
)

type Server struct {
	sessions  SessionStore
	registry  *Registry
	responder Responder
	timeouts  connections.TimeoutConfig

	mu         sync.RWMutex
	workspaces map[string]api.Workspace
}

func NewServer(sessions SessionStore, responder Responder) *Server {
	return &Server{
		sessions:   sessions,
		registry:   NewRegistry(),
		responder:  responder,
		timeouts:   defaultTimeouts(),
		workspaces: make(map[string]api.Workspace),
	}
}

// SetTimeouts overrides the socket timeouts. Must be called before the
// server starts accepting connections.
func (s *Server) SetTimeouts(timeouts connections.TimeoutConfig) {
	s.timeouts = timeouts
}

// Registry exposes the live-socket registry, for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Router builds the mux router with every endpoint the client consumes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/oauth/token", s.HandleToken).Methods("POST")
	r.HandleFunc("/ws/chat/{sessionID}/", s.HandleChat)

	r.HandleFunc("/api/profile", s.requireAuth(s.handleProfile)).Methods("GET")
	r.HandleFunc("/api/workspaces", s.requireAuth(s.handleListWorkspaces)).Methods("GET")
	r.HandleFunc("/api/workspaces", s.requireAuth(s.handleCreateWorkspace)).Methods("POST")
	r.HandleFunc("/api/workspaces/{id}", s.requireAuth(s.handleGetWorkspace)).Methods("GET")
	r.HandleFunc("/api/workspaces/{id}", s.requireAuth(s.handleDeleteWorkspace)).Methods("DELETE")
	return r
}

// requireAuth guards the CRUD stubs with bearer-token validation.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString := extractBearer(r)
		if tokenString == "" {
			httpext.JsonError(w, "missing_token", http.StatusUnauthorized)
			return
		}

		claims, valid := validateAccessToken(tokenString)
		if !valid {
			httpext.JsonError(w, "invalid_token", http.StatusUnauthorized)
			return
		}

		if _, found, err := s.sessions.Get(r.Context(), claims.SessionID); err != nil || !found {
			httpext.JsonError(w, "invalid_token", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	claims, _ := validateAccessToken(extractBearer(r))

	writeJSONResponse(w, api.UserProfile{
		ID:       claims.UserID,
		Username: claims.UserID,
	})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	list := make([]api.Workspace, 0, len(s.workspaces))
	for _, ws := range s.workspaces {
		list = append(list, ws)
	}
	s.mu.RUnlock()

	writeJSONResponse(w, list)
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request) {
	var ws api.Workspace
	if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
		httpext.JsonError(w, "invalid_request", http.StatusBadRequest)
		return
	}

	ws.ID = uuid.New().String()
	ws.CreatedAt = time.Now()

	s.mu.Lock()
	s.workspaces[ws.ID] = ws
	s.mu.Unlock()

	writeJSONResponse(w, ws)
}

func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	ws, exists := s.workspaces[id]
	s.mu.RUnlock()

	if !exists {
		httpext.JsonError(w, "not_found", http.StatusNotFound)
		return
	}
	writeJSONResponse(w, ws)
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	delete(s.workspaces, id)
	s.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func writeJSONResponse(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
