// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"net/http"

	xglog "github.com/ManuGH/canvasrec/internal/log"
	"github.com/ManuGH/canvasrec/internal/metrics"
	"github.com/ManuGH/canvasrec/internal/scene"
	"github.com/go-chi/chi/v5"
)

type sceneResponse struct {
	Objects []scene.ObjectState `json:"objects"`
	Assets  []string            `json:"assets"`
}

type addObjectRequest struct {
	Asset string `json:"asset"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

type moveRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

type resizeRequest struct {
	Factor float64 `json:"factor"`
}

type rotateRequest struct {
	Degrees int `json:"degrees"`
}

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, sceneResponse{
		Objects: s.deps.Scene.Snapshot(),
		Assets:  s.deps.Library.Names(),
	})
}

func (s *Server) handleAddObject(w http.ResponseWriter, r *http.Request) {
	var req addObjectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Asset == "" {
		writeError(w, r, fmt.Errorf("%w: asset is required", errBadRequest))
		return
	}
	asset, err := s.deps.Library.Resolve(s.cfg.AssetDir, req.Asset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := s.deps.Scene.Add(asset, req.X, req.Y)
	if err != nil {
		writeError(w, r, err)
		return
	}
	metrics.SetSceneObjects(s.deps.Scene.Len())
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	logger.Info().
		Str(xglog.FieldEvent, "scene.object_added").
		Str(xglog.FieldObjectID, obj.ID).
		Str("asset", obj.AssetName).
		Msg("object added")
	writeJSON(w, http.StatusCreated, obj)
}

// mutate runs op on the object named in the URL and answers with its new
// state.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		writeError(w, r, err)
		return
	}
	obj, err := s.deps.Scene.Get(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (s *Server) handleGetObject(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(string) error { return nil })
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Scene.Remove(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	metrics.SetSceneObjects(s.deps.Scene.Len())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req moveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, r, fmt.Errorf("%w: x and y are required", errBadRequest))
		return
	}
	s.mutate(w, r, func(id string) error { return s.deps.Scene.Move(id, *req.X, *req.Y) })
}

func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.mutate(w, r, func(id string) error { return s.deps.Scene.Resize(id, req.Factor) })
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req rotateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	s.mutate(w, r, func(id string) error { return s.deps.Scene.Rotate(id, req.Degrees) })
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.deps.Scene.ToggleVariant)
}

func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(id string) error {
		_, err := s.deps.Scene.ToggleLock(id)
		return err
	})
}

func (s *Server) handleFront(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.deps.Scene.BringToFront)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, s.deps.Scene.SendToBack)
}
