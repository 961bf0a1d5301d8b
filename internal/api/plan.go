/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/skuld/internal/planner"
	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/scheduling"
	"github.com/friendsincode/skuld/internal/task"
)

// taskPayload is one task on the wire. Durations travel as Go duration
// strings ("90m", "1h30m") rather than raw nanoseconds.
type taskPayload struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	Deadline   time.Time `json:"deadline"`
	Duration   string    `json:"duration"`
	Importance int       `json:"importance"`
}

type planRequest struct {
	Start    time.Time     `json:"start"`
	Strategy string        `json:"strategy"`
	Tasks    []taskPayload `json:"tasks"`
}

type planExportRequest struct {
	planRequest
	Format string `json:"format"`
	Store  bool   `json:"store"`
}

// toServiceRequest converts wire tasks into planner tasks, rejecting
// unparseable durations before the batch reaches the service.
func (pr planRequest) toServiceRequest() (scheduling.PlanRequest, error) {
	tasks := make([]task.Task, 0, len(pr.Tasks))
	for _, tp := range pr.Tasks {
		duration, err := time.ParseDuration(tp.Duration)
		if err != nil {
			return scheduling.PlanRequest{}, fmt.Errorf("task %d: bad duration %q", tp.ID, tp.Duration)
		}
		tasks = append(tasks, task.Task{
			ID:         tp.ID,
			Content:    tp.Content,
			Deadline:   tp.Deadline,
			Duration:   duration,
			Importance: tp.Importance,
		})
	}

	return scheduling.PlanRequest{
		Start:    pr.Start,
		Strategy: planner.Strategy(pr.Strategy),
		Tasks:    tasks,
	}, nil
}

func (a *API) handlePlanCompute(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed_json", err.Error())
		return
	}

	serviceReq, err := req.toServiceRequest()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad_duration", err.Error())
		return
	}

	plan, err := a.service.ComputePlan(r.Context(), serviceReq)
	if err != nil {
		a.writePlanError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handlePlanExport(w http.ResponseWriter, r *http.Request) {
	var req planExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "malformed_json", err.Error())
		return
	}

	format := schedule.FormatJSON
	if req.Format != "" {
		var err error
		format, err = schedule.ParseFormat(req.Format)
		if err != nil {
			writeErrorMessage(w, http.StatusBadRequest, "invalid_format", err.Error())
			return
		}
	}

	serviceReq, err := req.toServiceRequest()
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "bad_duration", err.Error())
		return
	}

	plan, err := a.service.ComputePlan(r.Context(), serviceReq)
	if err != nil {
		a.writePlanError(w, err)
		return
	}

	export, err := a.service.ExportPlan(plan, format)
	if err != nil {
		a.logger.Error().Err(err).Str("run_id", plan.RunID).Msg("plan export failed")
		writeError(w, http.StatusInternalServerError, "export_failed")
		return
	}

	if req.Store {
		key, err := a.service.StoreExport(r.Context(), plan, export)
		if err != nil {
			a.logger.Error().Err(err).Str("run_id", plan.RunID).Msg("plan export store failed")
			writeError(w, http.StatusInternalServerError, "storage_error")
			return
		}
		w.Header().Set("X-Storage-Key", key)
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.Header().Set("X-Run-ID", plan.RunID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Data)
}

func (a *API) handlePlanLatest(w http.ResponseWriter, r *http.Request) {
	plan, ok := a.service.LatestPlan(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handlePlanGet(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	plan, ok := a.service.CachedPlan(r.Context(), runID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found")
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (a *API) handlePlanRuns(w http.ResponseWriter, r *http.Request) {
	runs := a.service.RecentRuns(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// writePlanError maps service and planner failures onto the API error
// contract: caller mistakes are 400s, infeasible batches are 422s with the
// offending task attached, and defects are opaque 500s.
func (a *API) writePlanError(w http.ResponseWriter, err error) {
	var deadlineMissed *planner.DeadlineMissedError
	var notEnoughTime *planner.NotEnoughTimeError

	switch {
	case errors.Is(err, scheduling.ErrTooManyTasks):
		writeErrorMessage(w, http.StatusUnprocessableEntity, "too_many_tasks", err.Error())
	case errors.Is(err, scheduling.ErrInvalidRequest):
		writeErrorMessage(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &deadlineMissed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":          "deadline_missed",
			"message":        deadlineMissed.Error(),
			"task_id":        deadlineMissed.Task.ID,
			"already_missed": deadlineMissed.AlreadyMissed,
		})
	case errors.As(err, &notEnoughTime):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "not_enough_time",
			"message": notEnoughTime.Error(),
			"task_id": notEnoughTime.Task.ID,
		})
	default:
		a.logger.Error().Err(err).Msg("plan computation failed")
		writeError(w, http.StatusInternalServerError, "internal")
	}
}
