package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/odvcencio/streamstore/pkg/errors"
)

const maxBodyBytes int64 = 1 << 20

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// respondError maps the error to its status and JSON body and, for
// server-side failures, reports it to the capture channel.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusOf(err)

	body := errorBody{
		Error:   "Internal error",
		Message: "internal error",
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Error = appErr.Label()
		body.Message = appErr.Message
	} else if err != nil {
		body.Message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	// Every surfaced error goes to the capture channel; it never blocks
	// or fails the request.
	s.capture.Report(err, fmt.Sprintf("%s %s", r.Method, r.URL.Path))

	respondJSON(w, status, body)
}

// decodeJSONBody decodes a bounded JSON request body into dst.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return apperrors.New(apperrors.KindBadRequest, "request body required")
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperrors.New(apperrors.KindBadRequest, "request body required")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Newf(apperrors.KindBadRequest, "request body too large (max %d bytes)", maxBodyBytes)
		}
		return apperrors.Wrap(err, apperrors.KindSerialization, "malformed JSON body")
	}
	return nil
}
