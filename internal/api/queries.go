/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/friendsincode/grimnir_jukebox/internal/history"
	"github.com/friendsincode/grimnir_jukebox/internal/logbuffer"
	"github.com/friendsincode/grimnir_jukebox/internal/models"
)

const defaultLogLimit = 200

func (a *API) handleLibrary(w http.ResponseWriter, r *http.Request) {
	items := a.library.Items()
	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		items = lo.Filter(items, func(item models.Item, _ int) bool {
			return strings.Contains(strings.ToLower(item.Path), q) ||
				strings.Contains(strings.ToLower(item.MetadataString("title")), q)
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(items),
		"items": items,
	})
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
		return
	}

	query := r.URL.Query()
	q := history.Query{
		Kind:      models.PlayRecordKind(query.Get("kind")),
		Submitter: query.Get("username"),
	}
	if q.Kind != "" && q.Kind != models.PlayRecordPlay && q.Kind != models.PlayRecordReport {
		writeError(w, http.StatusBadRequest, "invalid_kind")
		return
	}
	var ok bool
	if q.Limit, ok = parseLimit(query.Get("limit")); !ok {
		writeError(w, http.StatusBadRequest, "invalid_limit")
		return
	}
	if q.Since, ok = parseSince(query.Get("since")); !ok {
		writeError(w, http.StatusBadRequest, "invalid_since")
		return
	}

	records, err := a.history.Recent(r.Context(), q)
	if err != nil {
		a.logger.Error().Err(err).Msg("history query failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (a *API) handleHistorySubmitters(w http.ResponseWriter, r *http.Request) {
	if a.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled")
		return
	}
	since, ok := parseSince(r.URL.Query().Get("since"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_since")
		return
	}

	counts, err := a.history.PlaysBySubmitter(r.Context(), since)
	if err != nil {
		a.logger.Error().Err(err).Msg("submitter history query failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuf == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_disabled")
		return
	}

	query := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      query.Get("level"),
		Component:  query.Get("component"),
		Submitter:  query.Get("username"),
		Search:     query.Get("search"),
		Limit:      defaultLogLimit,
		Descending: query.Get("order") != "asc",
	}
	if raw := query.Get("limit"); raw != "" {
		limit, ok := parseLimit(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_limit")
			return
		}
		params.Limit = limit
	}
	var ok bool
	if params.Since, ok = parseSince(query.Get("since")); !ok {
		writeError(w, http.StatusBadRequest, "invalid_since")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    a.logBuf.Query(params),
		"components": a.logBuf.Components(),
		"stats":      a.logBuf.Stats(),
	})
}

// parseLimit accepts an empty string as "no limit".
func parseLimit(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// parseSince accepts RFC3339 timestamps or a duration such as "2h" meaning
// that long ago.
func parseSince(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return time.Now().Add(-d), true
	}
	return time.Time{}, false
}
