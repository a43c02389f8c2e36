/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/grimnir_jukebox/internal/mediaengine"
)

type submitRequest struct {
	ContentID string `json:"content_id"`
	Username  string `json:"username"`
}

type reorderRequest struct {
	IDs []string `json:"ids"`
}

type reportRequest struct {
	ContentID string `json:"content_id"`
	Username  string `json:"username"`
	Comment   string `json:"comment"`
}

func (a *API) handlePlaylistGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.playback.Snapshot())
}

func (a *API) handlePlaylistSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username_required")
		return
	}

	item, ok := a.library.Lookup(req.ContentID)
	if !ok {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}

	a.playback.Submit(r.Context(), item, req.Username)
	writeJSON(w, http.StatusAccepted, a.playback.Snapshot())
}

func (a *API) handlePlaylistRemove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !a.playback.Remove(id) {
		writeError(w, http.StatusNotFound, "not_queued")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleUserReorder(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")

	var req reorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	pending := a.playback.Reorder(username, req.IDs)
	writeJSON(w, http.StatusOK, map[string]any{
		"username": username,
		"pending":  pending,
	})
}

func (a *API) handleUserShuffle(w http.ResponseWriter, r *http.Request) {
	a.playback.Shuffle(chi.URLParam(r, "username"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username_required")
		return
	}

	item, ok := a.library.Lookup(req.ContentID)
	if !ok {
		writeError(w, http.StatusNotFound, "content_not_found")
		return
	}

	if err := a.playback.Report(r.Context(), item, req.Username, req.Comment); err != nil {
		a.logger.Error().Err(err).Str("content_id", req.ContentID).Msg("report failed")
		writeError(w, http.StatusInternalServerError, "report_failed")
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *API) handlePauseToggle(w http.ResponseWriter, r *http.Request) {
	if err := a.playback.TogglePause(r.Context()); err != nil {
		if errors.Is(err, mediaengine.ErrNotRunning) {
			writeError(w, http.StatusServiceUnavailable, "engine_unavailable")
			return
		}
		a.logger.Error().Err(err).Msg("toggle pause failed")
		writeError(w, http.StatusBadGateway, "engine_error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
