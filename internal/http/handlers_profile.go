package http

import (
	"net/http"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Profiles.GetProfile(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var in core.UserProfile
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	p, err := s.svc.Profiles.PutProfile(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.svc.Profiles.GetPreferences(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var in core.NotificationPreferences
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	prefs, err := s.svc.Profiles.SetPreferences(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
