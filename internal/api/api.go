// Package api serves the review core over a local REST API for a browser UI.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"

	"github.com/joescharf/crv/internal/history"
	"github.com/joescharf/crv/internal/logging"
	"github.com/joescharf/crv/internal/models"
	"github.com/joescharf/crv/internal/session"
	"github.com/joescharf/crv/internal/settings"
)

// Server provides the REST API handlers.
type Server struct {
	settings *settings.Store
	session  *session.Controller
	history  *history.Manager
	logger   *slog.Logger

	onSettings func(models.Settings)
}

// NewServer creates a new API server.
func NewServer(st *settings.Store, ctrl *session.Controller, hist *history.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Server{
		settings: st,
		session:  ctrl,
		history:  hist,
		logger:   logger,
	}
}

// OnSettingsChange registers fn to run after settings are saved or reset.
func (s *Server) OnSettingsChange(fn func(models.Settings)) {
	s.onSettings = fn
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/settings", s.getSettings)
	mux.HandleFunc("PUT /api/v1/settings", s.saveSettings)
	mux.HandleFunc("DELETE /api/v1/settings", s.resetSettings)

	mux.HandleFunc("GET /api/v1/providers", s.listProviders)

	mux.HandleFunc("GET /api/v1/session", s.getSession)
	mux.HandleFunc("PUT /api/v1/session/draft", s.updateDraft)
	mux.HandleFunc("POST /api/v1/session/submit", s.submitReview)
	mux.HandleFunc("POST /api/v1/session/clear", s.clearSession)
	mux.HandleFunc("GET /api/v1/session/export", s.exportSession)

	mux.HandleFunc("GET /api/v1/history", s.listHistory)
	mux.HandleFunc("POST /api/v1/history/load", s.loadHistory)
	mux.HandleFunc("GET /api/v1/history/stats", s.historyStats)
	mux.HandleFunc("GET /api/v1/history/{id}", s.getReview)
	mux.HandleFunc("GET /api/v1/history/{id}/export", s.exportReview)
	mux.HandleFunc("DELETE /api/v1/history/{id}", s.deleteReview)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps the error taxonomy onto HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrBusy), errors.Is(err, models.ErrNoResult):
		status = http.StatusConflict
	case models.IsServiceFailure(err):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func writeDocument(w http.ResponseWriter, fileName, content string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(content))
}

// --- Settings ---

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Load(r.Context()).Redacted())
}

func (s *Server) saveSettings(w http.ResponseWriter, r *http.Request) {
	var st models.Settings
	if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	// The masked key from a previous GET means "unchanged".
	if st.APIKey == models.RedactedKey {
		st.APIKey = s.settings.Load(r.Context()).APIKey
	}
	if err := s.settings.Save(r.Context(), st); err != nil {
		s.writeFailure(w, err)
		return
	}
	s.applySettings(st)
	writeJSON(w, http.StatusOK, st.Redacted())
}

func (s *Server) resetSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.settings.Reset(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	s.applySettings(st)
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) applySettings(st models.Settings) {
	s.session.ApplySettings(st)
	if s.onSettings != nil {
		s.onSettings(st)
	}
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Providers(r.Context()))
}

// --- Session ---

type draftRequest struct {
	Code     *string `json:"code"`
	FileName *string `json:"fileName"`
	Provider *string `json:"provider"`
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Code != nil {
		s.session.SetCode(*req.Code)
	}
	if req.FileName != nil {
		s.session.SetFileName(*req.FileName)
	}
	if req.Provider != nil {
		s.session.SetProvider(*req.Provider)
	}
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	rev, err := s.session.Submit(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) clearSession(w http.ResponseWriter, r *http.Request) {
	s.session.Clear()
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) exportSession(w http.ResponseWriter, r *http.Request) {
	exp, err := s.session.ExportCurrent()
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeDocument(w, exp.FileName, exp.Content)
}

// --- History ---

type historyResponse struct {
	Reviews   []models.Review `json:"reviews"`
	Providers []string        `json:"providers"`
	Filter    history.Filter  `json:"filter"`
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	provider := q.Get("provider")
	if provider == "" {
		provider = history.AllProviders
	}
	reviews := s.history.Filter(q.Get("search"), provider)
	writeJSON(w, http.StatusOK, historyResponse{
		Reviews:   reviews,
		Providers: s.history.Providers(),
		Filter:    s.history.ActiveFilter(),
	})
}

func (s *Server) loadHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Load(r.Context()); err != nil {
		s.logger.Warn("history load degraded to empty", "error", err)
	}
	writeJSON(w, http.StatusOK, historyResponse{
		Reviews:   s.history.View(),
		Providers: s.history.Providers(),
		Filter:    s.history.ActiveFilter(),
	})
}

func (s *Server) historyStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Statistics())
}

func (s *Server) getReview(w http.ResponseWriter, r *http.Request) {
	rev, err := s.history.Lookup(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rev)
}

func (s *Server) exportReview(w http.ResponseWriter, r *http.Request) {
	name, doc, err := s.history.Export(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeDocument(w, name, doc)
}

func (s *Server) deleteReview(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
