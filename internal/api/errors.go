// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/export"
	"github.com/ManuGH/canvasrec/internal/mux"
	"github.com/ManuGH/canvasrec/internal/recorder"
	"github.com/ManuGH/canvasrec/internal/render"
	"github.com/ManuGH/canvasrec/internal/scene"
)

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type errorClass struct {
	target error
	status int
	code   string
}

// errorClasses is checked in order; the first errors.Is match wins.
var errorClasses = []errorClass{
	{recorder.ErrAlreadyRecording, http.StatusConflict, "already_recording"},
	{recorder.ErrNotRecording, http.StatusConflict, "not_recording"},
	{export.ErrNoRecording, http.StatusNotFound, "no_recording"},
	{export.ErrRecordingActive, http.StatusConflict, "recording_active"},
	{mux.ErrStreamOpen, http.StatusInternalServerError, "stream_open"},
	{mux.ErrDimensionMismatch, http.StatusInternalServerError, "dimension_mismatch"},
	{export.ErrIO, http.StatusInternalServerError, "io"},
	{scene.ErrNotFound, http.StatusNotFound, "not_found"},
	{scene.ErrNoVariants, http.StatusNotFound, "asset_not_found"},
	{scene.ErrLocked, http.StatusConflict, "locked"},
	{scene.ErrInvalidScale, http.StatusBadRequest, "bad_request"},
	{scene.ErrInvalidAssetName, http.StatusBadRequest, "bad_request"},
	{render.ErrInvalidGeometry, http.StatusInternalServerError, "invalid_geometry"},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func classify(err error) (int, string) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a status and error code and logs server faults.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		logger := xglog.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "api.error").
			Str("code", code).
			Msg("request failed")
	}
	writeJSON(w, status, ErrorResponse{Error: code, Detail: err.Error()})
}
