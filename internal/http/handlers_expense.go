package http

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/transfer"
)

type createExpenseResponse struct {
	Expense core.Expense          `json:"expense"`
	Alert   services.AlertOutcome `json:"alert"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var in services.NewExpense
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	e, alert, err := s.svc.Expenses.CreateExpense(r.Context(), bearerToken(r), in)
	if err != nil {
		writeError(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, createExpenseResponse{Expense: e, Alert: alert})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Expenses.ListExpenses(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Expenses.GetExpense(r.Context(), bearerToken(r), pathID(r))
	if err != nil {
		writeError(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var patch services.ExpensePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	e, err := s.svc.Expenses.UpdateExpense(r.Context(), bearerToken(r), pathID(r), patch)
	if err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Expenses.DeleteExpense(r.Context(), bearerToken(r), pathID(r)); err != nil {
		writeError(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type importResponse struct {
	Imported int            `json:"imported"`
	Expenses []core.Expense `json:"expenses"`
}

// handleImportExpenses accepts either a raw CSV/JSON body or a multipart
// upload in the "file" field. ?format= overrides detection.
func (s *Server) handleImportExpenses(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	body, filename, err := importPayload(r)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}

	format := transfer.DetectFormat(r.Header.Get("Content-Type"), filename)
	if q := r.URL.Query().Get("format"); q != "" {
		if format, err = transfer.ParseFormat(q); err != nil {
			writeError(w, r, log.OpImport, err)
			return
		}
	}

	rows, err := transfer.Parse(body, format)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	stored, err := s.svc.Expenses.ImportExpenses(r.Context(), bearerToken(r), rows)
	if err != nil {
		writeError(w, r, log.OpImport, err)
		return
	}
	if stored == nil {
		stored = []core.Expense{}
	}
	writeJSON(w, http.StatusCreated, importResponse{Imported: len(stored), Expenses: stored})
}

func importPayload(r *http.Request) (io.Reader, string, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return r.Body, "", nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", core.Validationf("missing upload field \"file\": %v", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(file); err != nil {
		return nil, "", core.Validationf("read upload: %v", err)
	}
	return &buf, header.Filename, nil
}

func (s *Server) handleExportExpenses(w http.ResponseWriter, r *http.Request) {
	format, err := transfer.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	list, err := s.svc.Expenses.ListExpenses(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}

	var buf bytes.Buffer
	if err := transfer.Write(&buf, format, list); err != nil {
		writeError(w, r, log.OpExport, err)
		return
	}
	w.Header().Set("Content-Type", transfer.ContentType(format))
	w.Header().Set("Content-Disposition", `attachment; filename="`+transfer.Filename(format)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
