/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduling runs the planner as a service: it validates incoming
// batches, computes plans, re-checks the result, and fans the outcome out
// to metrics, events, cache and object storage.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/cache"
	"github.com/friendsincode/skuld/internal/eventbus"
	"github.com/friendsincode/skuld/internal/events"
	"github.com/friendsincode/skuld/internal/planner"
	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/storage"
	"github.com/friendsincode/skuld/internal/task"
	"github.com/friendsincode/skuld/internal/telemetry"
)

// Request errors are the caller's fault and map to 400s at the API edge.
var (
	ErrInvalidRequest = errors.New("invalid plan request")
	ErrTooManyTasks   = errors.New("plan request exceeds task limit")
)

// Config bounds what one planner run will accept.
type Config struct {
	// MaxTasks caps the batch size. Zero means no cap.
	MaxTasks int

	// TightDeadlineWindow is the audit slack below which a met deadline
	// is still reported as a warning.
	TightDeadlineWindow time.Duration
}

// DefaultConfig returns default service limits.
func DefaultConfig() Config {
	return Config{
		MaxTasks:            1000,
		TightDeadlineWindow: time.Hour,
	}
}

// PlanRequest is one batch of tasks to place.
type PlanRequest struct {
	// Start is the reference instant; zero means now.
	Start    time.Time
	Strategy planner.Strategy
	Tasks    []task.Task
}

// Service orchestrates planner runs. The bus, cache and store may each be
// nil; the corresponding fan-out step is skipped.
type Service struct {
	cfg       Config
	logger    zerolog.Logger
	validator *Validator
	bus       eventbus.Bus
	cache     *cache.Cache
	store     storage.Store
	exporter  *schedule.Exporter
}

// New creates the scheduling service.
func New(cfg Config, bus eventbus.Bus, c *cache.Cache, store storage.Store, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		logger:    logger.With().Str("component", "scheduling").Logger(),
		validator: NewValidator(cfg.TightDeadlineWindow, logger),
		bus:       bus,
		cache:     c,
		store:     store,
		exporter:  schedule.NewExporter(logger),
	}
}

// ComputePlan validates a request, runs the planner, audits the result and
// fans it out. The returned plan is fully placed or the error is typed:
// request errors wrap ErrInvalidRequest or ErrTooManyTasks, planner errors
// carry the failing task.
func (s *Service) ComputePlan(ctx context.Context, req PlanRequest) (*schedule.Plan, error) {
	ctx, span := telemetry.StartSpan(ctx, "scheduling", "ComputePlan")
	defer span.End()

	strategy := req.Strategy
	if strategy == "" {
		strategy = planner.StrategyImportance
	}

	if err := s.validateRequest(strategy, req.Tasks); err != nil {
		telemetry.PlanFailuresTotal.WithLabelValues(strategy.String(), "invalid_request").Inc()
		telemetry.RecordError(span, err)
		return nil, err
	}

	start := req.Start
	if start.IsZero() {
		start = time.Now()
	}

	runID := uuid.NewString()[:8]
	logger := s.logger.With().Str("run_id", runID).Str("strategy", strategy.String()).Logger()

	telemetry.AddSpanAttributes(span, map[string]any{
		"run_id":   runID,
		"strategy": strategy.String(),
		"tasks":    len(req.Tasks),
	})

	began := time.Now()
	placed, err := planner.Schedule(start, req.Tasks, strategy)
	elapsed := time.Since(began)

	if err != nil {
		reason := failureReason(err)
		telemetry.PlanFailuresTotal.WithLabelValues(strategy.String(), reason).Inc()
		telemetry.RecordError(span, err)
		logger.Warn().Err(err).Str("reason", reason).Msg("plan computation failed")
		s.publish(events.EventPlanFailed, events.Payload{
			"run_id":   runID,
			"strategy": strategy.String(),
			"reason":   reason,
			"error":    err.Error(),
		})
		return nil, err
	}

	plan := &schedule.Plan{
		RunID:      runID,
		Strategy:   strategy.String(),
		ComputedAt: time.Now(),
		Start:      start,
		Schedule:   placed,
	}

	floor := start.Add(planner.SafetyDelay)
	audit := s.validator.Validate(floor, plan.Schedule)
	if !audit.Valid {
		telemetry.PlanFailuresTotal.WithLabelValues(strategy.String(), "audit").Inc()
		auditErr := &planner.InternalError{
			Message: fmt.Sprintf("plan %s failed validation with %d errors", runID, len(audit.Errors)),
		}
		telemetry.RecordError(span, auditErr)
		for _, violation := range audit.Errors {
			logger.Error().Str("rule", string(violation.RuleType)).Msg(violation.Message)
		}
		s.publish(events.EventPlanFailed, events.Payload{
			"run_id":   runID,
			"strategy": strategy.String(),
			"reason":   "audit",
			"error":    auditErr.Error(),
		})
		return nil, auditErr
	}
	for _, violation := range audit.Warnings {
		logger.Debug().Str("rule", string(violation.RuleType)).Msg(violation.Message)
	}

	telemetry.PlansComputedTotal.WithLabelValues(strategy.String()).Inc()
	telemetry.PlanComputeDuration.WithLabelValues(strategy.String()).Observe(elapsed.Seconds())
	telemetry.PlanTasksScheduled.WithLabelValues(strategy.String()).Observe(float64(len(plan.Schedule)))

	logger.Info().
		Int("tasks", len(plan.Schedule)).
		Dur("compute_time", elapsed).
		Int("audit_warnings", len(audit.Warnings)).
		Time("start", start).
		Msg("plan computed")

	first, last := plan.Schedule.Span()
	s.publish(events.EventPlanComputed, events.Payload{
		"run_id":       runID,
		"strategy":     strategy.String(),
		"tasks":        len(plan.Schedule),
		"start":        plan.Start,
		"duration_ms":  elapsed.Milliseconds(),
		"span_seconds": last.Sub(first).Seconds(),
	})

	if s.cache != nil {
		if err := s.cache.StorePlan(ctx, plan); err != nil {
			logger.Warn().Err(err).Msg("failed to cache plan")
		}
	}

	return plan, nil
}

// ExportPlan renders a plan in the given format.
func (s *Service) ExportPlan(plan *schedule.Plan, format schedule.Format) (*schedule.Export, error) {
	export, err := s.exporter.Export(*plan, format)
	if err != nil {
		return nil, err
	}

	telemetry.PlanExportsTotal.WithLabelValues(string(format)).Inc()
	s.publish(events.EventPlanExported, events.Payload{
		"run_id":   plan.RunID,
		"format":   string(format),
		"filename": export.Filename,
	})

	return export, nil
}

// StoreExport persists an export in object storage and returns the key.
func (s *Service) StoreExport(ctx context.Context, plan *schedule.Plan, export *schedule.Export) (string, error) {
	if s.store == nil {
		return "", fmt.Errorf("no object storage configured")
	}

	key := fmt.Sprintf("plans/%04d/%02d/%s", plan.ComputedAt.Year(), int(plan.ComputedAt.Month()), export.Filename)
	if err := s.store.Put(ctx, key, export.Data, export.ContentType); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}

	s.logger.Info().Str("run_id", plan.RunID).Str("key", key).Msg("plan export stored")
	return key, nil
}

// CachedPlan returns a previously computed plan by run ID.
func (s *Service) CachedPlan(ctx context.Context, runID string) (*schedule.Plan, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetPlan(ctx, runID)
}

// LatestPlan returns the most recently computed plan.
func (s *Service) LatestPlan(ctx context.Context) (*schedule.Plan, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.GetLatestPlan(ctx)
}

// RecentRuns returns summaries of recent planner runs, newest first.
func (s *Service) RecentRuns(ctx context.Context) []cache.PlanSummary {
	if s.cache == nil {
		return nil
	}
	runs, _ := s.cache.RecentRuns(ctx)
	return runs
}

func (s *Service) validateRequest(strategy planner.Strategy, tasks []task.Task) error {
	if _, err := planner.ParseStrategy(strategy.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if s.cfg.MaxTasks > 0 && len(tasks) > s.cfg.MaxTasks {
		return fmt.Errorf("%w: %d tasks, limit %d", ErrTooManyTasks, len(tasks), s.cfg.MaxTasks)
	}
	if err := task.ValidateAll(tasks); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (s *Service) publish(eventType events.EventType, payload events.Payload) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventType, payload)
	telemetry.EventsPublishedTotal.WithLabelValues(string(eventType)).Inc()
}

// failureReason labels a planner error for metrics and events.
func failureReason(err error) string {
	switch {
	case errors.Is(err, planner.ErrDeadlineMissed):
		return "deadline_missed"
	case errors.Is(err, planner.ErrNotEnoughTime):
		return "not_enough_time"
	case errors.Is(err, planner.ErrInternal):
		return "internal"
	default:
		return "error"
	}
}
