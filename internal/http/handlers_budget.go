package http

import (
	"net/http"

	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
)

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request) {
	var in services.NewBudget
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	b, err := s.svc.Budgets.CreateBudget(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Budgets.ListBudgets(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	b, err := s.svc.Budgets.GetBudget(r.Context(), bearerToken(r), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request) {
	var patch services.BudgetPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	b, err := s.svc.Budgets.UpdateBudget(r.Context(), bearerToken(r), pathID(r), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Budgets.DeleteBudget(r.Context(), bearerToken(r), pathID(r)); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
