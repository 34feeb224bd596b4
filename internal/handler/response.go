package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError so the two
// servers speak one error shape:
//
//	{"error": "duplicate_entry", "detail": "The requested entry ..."}
//
// "error" is a machine-readable code; "detail" is for humans. The client's
// backend.HTTPError reads detail first, then error, then message.

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/sakif/movi/internal/apperror"
)

// maxBodyBytes caps request bodies. Reviews are the largest payload.
const maxBodyBytes = 1 << 20

// ErrorResponse is the error body of every endpoint.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
	Field  string `json:"field,omitempty"`
}

// writeJSON sends data with status. Headers must be set before the body
// is written, so the order below matters.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeIndentedJSON is writeJSON with two-space indentation, for ?pretty=1.
func writeIndentedJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// errorStatus maps an error kind to an HTTP status and a default code.
//
// errors.Is walks the whole chain, so a service error wrapped as
// fmt.Errorf("service/library: %w", apperror.Conflict(...)) still maps
// to 409.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, apperror.ErrEmailExists):
		return http.StatusConflict, "email_taken"
	case errors.Is(err, apperror.ErrUsernameExists):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway, "upstream"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError sends err in the standard error shape. Errors that are not
// *apperror.AppError become an opaque 500: their text may carry SQL or
// file paths.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:  "internal_error",
			Detail: "An internal error occurred",
		})
		return
	}

	status, code := errorStatus(err)
	if appErr.Code != "" {
		code = appErr.Code
	}
	writeJSON(w, status, ErrorResponse{
		Error:  code,
		Detail: appErr.Message,
		Field:  appErr.Field,
	})
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return apperror.ValidationFailed("body", "request body too large")
	}
	return apperror.ValidationFailed("body", "request body is not valid JSON")
}
