package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"memories/schemas"
	"memories/storage"
)

const (
	noPostWithID        = "No post with that id"
	unauthenticated     = "Unauthenticated"
	postDeletedResponse = "Post deleted succesfully"
)

type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(rw http.ResponseWriter, status int, payload interface{}) {
	rawResponse, err := json.Marshal(payload)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		http.Error(rw, "internal error", http.StatusInternalServerError)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if _, err = rw.Write(rawResponse); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeError(rw http.ResponseWriter, status int, message string) {
	writeJSON(rw, status, MessageResponse{Message: message})
}

// writeInvalidID answers a malformed identifier on mutating routes; those
// answer in plain text, unlike every other failure.
func writeInvalidID(rw http.ResponseWriter) {
	http.Error(rw, noPostWithID, http.StatusNotFound)
}

// writeStoreError maps a store failure of a mutating operation.
func writeStoreError(rw http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(rw, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrUnauthenticated):
		writeError(rw, http.StatusUnauthorized, unauthenticated)
	case schemas.IsValidationError(err):
		writeError(rw, http.StatusConflict, err.Error())
	default:
		slog.ErrorContext(r.Context(), "store write failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(rw, http.StatusConflict, err.Error())
	}
}

// writeLookupError maps a failed read; reads answer 404 whatever the cause.
func writeLookupError(rw http.ResponseWriter, r *http.Request, err error) {
	if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, schemas.ErrInvalidID) {
		slog.ErrorContext(r.Context(), "store read failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(rw, http.StatusNotFound, err.Error())
}

func writeDecodeError(rw http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		writeError(rw, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	if schemas.IsValidationError(err) {
		writeError(rw, http.StatusConflict, err.Error())
		return
	}
	writeError(rw, http.StatusBadRequest, "bad body")
}
