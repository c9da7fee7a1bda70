package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tugmath/internal/game"
	"tugmath/internal/match"
	"tugmath/internal/question"
	"tugmath/internal/session"
	"tugmath/internal/storage"
)

// Server is the HTTP server.
type Server struct {
	mux      *http.ServeMux
	registry *game.Registry
	manager  *session.Manager
	webFS    fs.FS
	logger   *zap.Logger
}

// New creates a server with all routes and subscribes it to session changes.
// webFS should be the "web" subdirectory of the embedded filesystem.
func New(registry *game.Registry, manager *session.Manager, webFS fs.FS, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		registry: registry,
		manager:  manager,
		webFS:    webFS,
		logger:   logger.Named("server"),
	}
	manager.OnChange(s.broadcastState)
	s.routes()
	return s
}

func (s *Server) routes() {
	// API routes
	s.mux.HandleFunc("GET /api/games", s.handleListGames)
	s.mux.HandleFunc("GET /api/settings", s.handleSettings)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	s.mux.HandleFunc("GET /api/sessions/{code}", s.handleGetSession)
	s.mux.HandleFunc("DELETE /api/sessions/{code}", s.handleDeleteSession)
	s.mux.HandleFunc("GET /api/sessions/{code}/state", s.handleGetState)
	s.mux.HandleFunc("POST /api/sessions/{code}/actions", s.handleAction)
	s.mux.HandleFunc("GET /api/sessions/{code}/events", s.handleListEvents)
	s.mux.HandleFunc("GET /api/sessions/{code}/replay", s.handleReplay)
	s.mux.HandleFunc("GET /api/sessions/{code}/ws", s.handleWebSocket)

	// Static files
	s.mux.Handle("/", http.FileServer(http.FS(s.webFS)))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

type operatorOption struct {
	Name   question.Operator `json:"name"`
	Symbol string            `json:"symbol"`
}

type visualModeOption struct {
	Name        question.VisualMode `json:"name"`
	Description string              `json:"description"`
}

type settingsResponse struct {
	Defaults    match.Config       `json:"defaults"`
	MaxResults  []int              `json:"maxResults"`
	TimeLimits  []int              `json:"timeLimits"`
	Operators   []operatorOption   `json:"operators"`
	VisualModes []visualModeOption `json:"visualModes"`
	Icons       []string           `json:"icons"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	resp := settingsResponse{
		Defaults:   match.DefaultConfig(),
		MaxResults: match.MaxResultChoices,
		TimeLimits: match.TimeLimitChoices,
		Icons:      question.DefaultIcons(),
	}
	for _, op := range question.Operators() {
		resp.Operators = append(resp.Operators, operatorOption{Name: op, Symbol: op.Symbol()})
	}
	for _, m := range question.VisualModes() {
		resp.VisualModes = append(resp.VisualModes, visualModeOption{Name: m, Description: m.Description()})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createSessionRequest struct {
	GameType string  `json:"gameType"`
	Seed     *uint64 `json:"seed,omitempty"`
}

type createSessionResponse struct {
	Code string `json:"code"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.GameType = strings.TrimSpace(req.GameType)
	if req.GameType == "" {
		writeError(w, http.StatusBadRequest, "gameType required")
		return
	}

	var (
		sess *session.Session
		err  error
	)
	if req.Seed != nil {
		sess, err = s.manager.CreateSeeded(req.GameType, *req.Seed)
	} else {
		sess, err = s.manager.Create(req.GameType)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, createSessionResponse{Code: sess.Code})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	err := s.manager.Remove(r.PathValue("code"))
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "session not found")
	case err != nil:
		s.logger.Error("remove session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var action game.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil || action.Type == "" {
		writeError(w, http.StatusBadRequest, "invalid action")
		return
	}
	if err := sess.Dispatch(r.Context(), action); err != nil {
		if errors.Is(err, session.ErrClosed) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stateOf(sess))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.manager.Events(r.PathValue("code"))
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	if events == nil {
		events = []storage.EventRow{}
	}
	writeJSON(w, http.StatusOK, events)
}

type replayResponse struct {
	State any `json:"state"`
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	m, err := s.manager.Replay(r.PathValue("code"))
	if err != nil {
		s.writeManagerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replayResponse{State: m.View()})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.manager.Get(r.PathValue("code"))
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
	}
	return sess, ok
}

func (s *Server) writeManagerError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.logger.Error("session manager", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
