// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/ManuGH/canvasrec/internal/recorder"
)

const maxBodyBytes = 64 << 10

// decodeBody strictly decodes an optional JSON body into v. An empty body
// leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

type pathRequest struct {
	Path string `json:"path"`
}

type pathResponse struct {
	Path string `json:"path"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The session outlives the request.
	info, err := s.deps.Recorder.Start(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recorder.Pause(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Recorder.Status())
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Recorder.Resume(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Recorder.Status())
}

// stopResponse carries the summary even when the session failed.
type stopResponse struct {
	Summary recorder.Summary `json:"summary"`
	Error   string           `json:"error,omitempty"`
	Detail  string           `json:"detail,omitempty"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	// A client disconnect must not discard the recording.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.StopTimeout)
	defer cancel()

	sum, err := s.deps.Recorder.Stop(ctx)
	if errors.Is(err, recorder.ErrNotRecording) {
		writeError(w, r, err)
		return
	}
	if err != nil {
		status, code := classify(err)
		writeJSON(w, status, stopResponse{Summary: sum, Error: code, Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, stopResponse{Summary: sum})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Recorder.Status())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dst, err := s.deps.Exporter.Save(r.Context(), req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{Path: dst})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dst, err := s.deps.Exporter.ExportStill(r.Context(), s.deps.Scene.Snapshot(), req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{Path: dst})
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", errBadRequest))
			return
		}
		limit = n
	}
	if s.deps.History == nil {
		writeJSON(w, http.StatusOK, []recorder.Summary{})
		return
	}
	list, err := s.deps.History.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
