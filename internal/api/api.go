/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the collaborator HTTP API: queue submission and
// management, reports, pause control, the library, history and a websocket
// event stream.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_jukebox/internal/events"
	"github.com/friendsincode/grimnir_jukebox/internal/history"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
	"github.com/friendsincode/grimnir_jukebox/internal/version"
)

// Playback is the subset of the playout controller the API drives.
type Playback interface {
	Snapshot() models.PlaylistState
	Submit(ctx context.Context, item models.Item, submitter string)
	Remove(id string) bool
	Reorder(submitter string, ids []string) int
	Shuffle(submitter string)
	TogglePause(ctx context.Context) error
	Report(ctx context.Context, item models.Item, submitter, comment string) error
}

// Library resolves content ids.
type Library interface {
	Lookup(id string) (models.Item, bool)
	Items() []models.Item
}

// History answers play and report history queries.
type History interface {
	Recent(ctx context.Context, q history.Query) ([]models.PlayRecord, error)
	PlaysBySubmitter(ctx context.Context, since time.Time) ([]history.SubmitterCount, error)
}

// API exposes HTTP handlers.
type API struct {
	playback Playback
	library  Library
	history  History
	bus      *events.Bus
	logBuf   *logbuffer.Buffer
	logger   zerolog.Logger
}

// New creates the API. logBuf may be nil.
func New(playback Playback, library Library, bus *events.Bus, logBuf *logbuffer.Buffer, logger zerolog.Logger) *API {
	return &API{
		playback: playback,
		library:  library,
		bus:      bus,
		logBuf:   logBuf,
		logger:   logger.With().Str("component", "api").Logger(),
	}
}

// SetHistory enables the history endpoints.
func (a *API) SetHistory(h History) {
	a.history = h
}

// Routes registers the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/version", a.handleVersion)

		r.Route("/playlist", func(r chi.Router) {
			r.Get("/", a.handlePlaylistGet)
			r.Post("/", a.handlePlaylistSubmit)
			r.Delete("/{id}", a.handlePlaylistRemove)
		})

		r.Route("/users/{username}", func(r chi.Router) {
			r.Put("/order", a.handleUserReorder)
			r.Post("/shuffle", a.handleUserShuffle)
		})

		r.Post("/reports", a.handleReport)
		r.Post("/player/pause", a.handlePauseToggle)

		r.Get("/library", a.handleLibrary)

		r.Route("/history", func(r chi.Router) {
			r.Get("/", a.handleHistory)
			r.Get("/submitters", a.handleHistorySubmitters)
		})

		r.Get("/logs", a.handleLogs)
		r.Get("/events", a.handleEvents)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Current())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
