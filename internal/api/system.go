/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/friendsincode/skuld/internal/logbuffer"
)

// SystemStatus reports overall service health.
type SystemStatus struct {
	Status    string          `json:"status"`
	Version   string          `json:"version"`
	Uptime    string          `json:"uptime"`
	Timestamp time.Time       `json:"timestamp"`
	EventBus  ComponentStatus `json:"event_bus"`
	Cache     ComponentStatus `json:"cache"`
	Storage   ComponentStatus `json:"storage"`
}

// ComponentStatus represents the status of a single backend.
type ComponentStatus struct {
	Status  string `json:"status"` // "ok", "degraded", "error", "disabled"
	Message string `json:"message,omitempty"`
	Backend string `json:"backend,omitempty"`
}

func (a *API) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := SystemStatus{
		Status:    "ok",
		Version:   a.version,
		Uptime:    time.Since(a.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}

	if a.bus == nil {
		status.EventBus = ComponentStatus{Status: "disabled"}
	} else if a.bus.Healthy() {
		status.EventBus = ComponentStatus{Status: "ok", Backend: a.busBackend}
	} else {
		status.EventBus = ComponentStatus{Status: "degraded", Message: "delivering locally only", Backend: a.busBackend}
		status.Status = "degraded"
	}

	if a.planCache == nil {
		status.Cache = ComponentStatus{Status: "disabled"}
	} else if a.planCache.IsAvailable() {
		status.Cache = ComponentStatus{Status: "ok", Backend: "redis"}
	} else {
		status.Cache = ComponentStatus{Status: "degraded", Message: "running without cache", Backend: "redis"}
		status.Status = "degraded"
	}

	if a.store == nil {
		status.Storage = ComponentStatus{Status: "disabled"}
	} else {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := a.store.CheckAccess(ctx); err != nil {
			status.Storage = ComponentStatus{Status: "error", Message: err.Error()}
			status.Status = "degraded"
		} else {
			status.Storage = ComponentStatus{Status: "ok"}
		}
	}

	writeJSON(w, http.StatusOK, status)
}

func (a *API) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: true, // Default to newest first
	}

	if since := r.URL.Query().Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			params.Since = t
		}
	}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			params.Limit = n
		}
	} else {
		params.Limit = 500 // Default limit
	}

	if order := r.URL.Query().Get("order"); order == "asc" {
		params.Descending = false
	}

	entries := a.logBuffer.Query(params)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

func (a *API) handleLogComponents(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"components": a.logBuffer.GetComponents(),
	})
}

func (a *API) handleLogStats(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	writeJSON(w, http.StatusOK, a.logBuffer.Stats())
}

func (a *API) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusServiceUnavailable, "log_buffer_unavailable")
		return
	}

	a.logBuffer.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "log buffer cleared",
	})
}
