package http

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"budgetbuddy/internal/core"
	"budgetbuddy/internal/log"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps an error kind to an HTTP status and log category.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized, log.ErrorTypeAuth
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest, log.ErrorTypeValidation
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, log.ErrorTypeNotFound
	case errors.Is(err, core.ErrTransient):
		return http.StatusServiceUnavailable, log.ErrorTypeTransient
	default:
		return http.StatusInternalServerError, log.ErrorTypeInternal
	}
}

// writeError logs err and answers with its status. Internal errors are
// reported to the client without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, kind := statusFor(err)
	fields := log.NewFields().WithOperation(op).WithError(err, kind)
	logger := log.FromContext(r.Context())

	msg := err.Error()
	switch status {
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "Request failed", fields.ToSlice()...)
		msg = "internal error"
	case http.StatusUnauthorized:
		logger.WarnContext(r.Context(), "Request rejected", fields.ToSlice()...)
		msg = "missing or invalid credentials"
	default:
		logger.InfoContext(r.Context(), "Request rejected", fields.ToSlice()...)
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="budgetbuddy"`)
	}
	writeMessage(w, status, msg)
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
// A missing header yields "", which every resolver rejects.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// decodeJSON reads one JSON value from the body, rejecting oversized
// bodies and trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrValidation) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return core.Validationf("empty request body")
		}
		return core.Validationf("invalid JSON body: %v", err)
	}
	if dec.More() {
		return core.Validationf("unexpected data after JSON body")
	}
	return nil
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}
