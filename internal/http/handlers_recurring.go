package http

import (
	"net/http"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var in services.NewRule
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	rule, err := s.svc.Rules.CreateRule(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Rules.ListRules(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := s.svc.Rules.GetRule(r.Context(), bearerToken(r), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	var patch services.RulePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	rule, err := s.svc.Rules.UpdateRule(r.Context(), bearerToken(r), pathID(r), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

type statusRequest struct {
	Status core.RuleStatus `json:"status"`
}

func (s *Server) handleSetRuleStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	rule, err := s.svc.Rules.SetStatus(r.Context(), bearerToken(r), pathID(r), req.Status)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Rules.DeleteRule(r.Context(), bearerToken(r), pathID(r)); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
