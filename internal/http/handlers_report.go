package http

import (
	"net/http"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

// handleMonthlyReport serves ?month=YYYY-MM, defaulting to the current month.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reports.MonthlyReport(r.Context(), bearerToken(r), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleWeeklyInsight serves ?date=YYYY-MM-DD as the reference day.
func (s *Server) handleWeeklyInsight(w http.ResponseWriter, r *http.Request) {
	var ref core.Date
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := core.ParseDate(q)
		if err != nil {
			writeError(w, r, log.OpReport, err)
			return
		}
		ref = d
	}
	insight, err := s.svc.Reports.WeeklyInsight(r.Context(), bearerToken(r), ref)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, insight)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	sug, err := s.svc.Suggestions.Suggest(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}
