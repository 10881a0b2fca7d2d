package http

import (
	"net/http"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var in services.NewReminder
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	rem, err := s.svc.Reminders.CreateReminder(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reminders.ListReminders(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetReminder(w http.ResponseWriter, r *http.Request) {
	rem, err := s.svc.Reminders.GetReminder(r.Context(), bearerToken(r), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleUpdateReminder(w http.ResponseWriter, r *http.Request) {
	var patch services.ReminderPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	rem, err := s.svc.Reminders.UpdateReminder(r.Context(), bearerToken(r), pathID(r), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Reminders.DeleteReminder(r.Context(), bearerToken(r), pathID(r)); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
