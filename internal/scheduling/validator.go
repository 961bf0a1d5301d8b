/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/schedule"
)

// RuleType identifies a validation rule.
type RuleType string

const (
	RuleTypeOverlap       RuleType = "overlap"
	RuleTypeDeadline      RuleType = "deadline"
	RuleTypeFloor         RuleType = "floor"
	RuleTypeTightDeadline RuleType = "tight_deadline"
)

// RuleSeverity ranks a violation.
type RuleSeverity string

const (
	RuleSeverityError   RuleSeverity = "error"
	RuleSeverityWarning RuleSeverity = "warning"
)

// ValidationViolation describes one finding against a computed plan.
type ValidationViolation struct {
	RuleType    RuleType       `json:"rule_type"`
	RuleName    string         `json:"rule_name"`
	Severity    RuleSeverity   `json:"severity"`
	Message     string         `json:"message"`
	StartsAt    time.Time      `json:"starts_at"`
	EndsAt      time.Time      `json:"ends_at"`
	AffectedIDs []int64        `json:"affected_ids,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
}

// ValidationResult aggregates findings for one plan.
type ValidationResult struct {
	Valid     bool                  `json:"valid"`
	Errors    []ValidationViolation `json:"errors"`
	Warnings  []ValidationViolation `json:"warnings"`
	CheckedAt time.Time             `json:"checked_at"`
	Floor     time.Time             `json:"floor"`
}

// Validator re-checks computed plans against the guarantees the placement
// algorithms give: no overlap, nothing before the floor, every task done by
// its deadline. An error finding means a planner defect, not bad input.
type Validator struct {
	logger      zerolog.Logger
	tightWindow time.Duration
}

// NewValidator creates a plan validator. tightWindow is the slack below
// which a met deadline is still flagged as tight.
func NewValidator(tightWindow time.Duration, logger zerolog.Logger) *Validator {
	return &Validator{
		logger:      logger.With().Str("component", "plan_validator").Logger(),
		tightWindow: tightWindow,
	}
}

// Validate checks a schedule against the floor and its deadlines.
func (v *Validator) Validate(floor time.Time, sched schedule.Schedule) *ValidationResult {
	result := &ValidationResult{
		Valid:     true,
		Errors:    []ValidationViolation{},
		Warnings:  []ValidationViolation{},
		CheckedAt: time.Now(),
		Floor:     floor,
	}

	for _, violation := range v.checkOverlaps(sched) {
		result.Errors = append(result.Errors, violation)
		result.Valid = false
	}

	for _, st := range sched {
		if st.When.Before(floor) {
			result.Errors = append(result.Errors, ValidationViolation{
				RuleType:    RuleTypeFloor,
				RuleName:    "Start Floor",
				Severity:    RuleSeverityError,
				Message:     fmt.Sprintf("%q starts at %s, before the earliest allowed instant %s.", st.Task.Content, st.When.Format(time.RFC3339), floor.Format(time.RFC3339)),
				StartsAt:    st.When,
				EndsAt:      st.End(),
				AffectedIDs: []int64{st.Task.ID},
				Details: map[string]any{
					"floor":     floor,
					"starts_at": st.When,
				},
			})
			result.Valid = false
		}

		if st.End().After(st.Task.Deadline) {
			result.Errors = append(result.Errors, ValidationViolation{
				RuleType:    RuleTypeDeadline,
				RuleName:    "Deadline",
				Severity:    RuleSeverityError,
				Message:     fmt.Sprintf("%q ends at %s, after its deadline %s.", st.Task.Content, st.End().Format(time.RFC3339), st.Task.Deadline.Format(time.RFC3339)),
				StartsAt:    st.When,
				EndsAt:      st.End(),
				AffectedIDs: []int64{st.Task.ID},
				Details: map[string]any{
					"deadline": st.Task.Deadline,
					"ends_at":  st.End(),
				},
			})
			result.Valid = false
			continue
		}

		if slack := st.Task.Deadline.Sub(st.End()); slack < v.tightWindow {
			result.Warnings = append(result.Warnings, ValidationViolation{
				RuleType:    RuleTypeTightDeadline,
				RuleName:    "Tight Deadline",
				Severity:    RuleSeverityWarning,
				Message:     fmt.Sprintf("%q finishes only %s before its deadline.", st.Task.Content, slack),
				StartsAt:    st.When,
				EndsAt:      st.End(),
				AffectedIDs: []int64{st.Task.ID},
				Details: map[string]any{
					"slack_seconds": slack.Seconds(),
					"deadline":      st.Task.Deadline,
				},
			})
		}
	}

	return result
}

// checkOverlaps detects overlapping placements.
func (v *Validator) checkOverlaps(sched schedule.Schedule) []ValidationViolation {
	var violations []ValidationViolation

	for i := 0; i < len(sched); i++ {
		for j := i + 1; j < len(sched); j++ {
			if !v.itemsOverlap(sched[i], sched[j]) {
				continue
			}

			overlapStart := maxTime(sched[i].When, sched[j].When)
			overlapEnd := minTime(sched[i].End(), sched[j].End())
			overlapMinutes := int(overlapEnd.Sub(overlapStart).Minutes())
			if overlapMinutes < 0 {
				overlapMinutes = 0
			}

			violations = append(violations, ValidationViolation{
				RuleType:    RuleTypeOverlap,
				RuleName:    "Placement Overlap",
				Severity:    RuleSeverityError,
				Message:     fmt.Sprintf("%q and %q both run from %s to %s (%d minute overlap).", sched[i].Task.Content, sched[j].Task.Content, overlapStart.Format(time.RFC3339), overlapEnd.Format(time.RFC3339), overlapMinutes),
				StartsAt:    sched[i].When,
				EndsAt:      sched[i].End(),
				AffectedIDs: []int64{sched[i].Task.ID, sched[j].Task.ID},
				Details: map[string]any{
					"overlap_start":   overlapStart,
					"overlap_end":     overlapEnd,
					"overlap_minutes": overlapMinutes,
					"task_a": map[string]any{
						"id":        sched[i].Task.ID,
						"content":   sched[i].Task.Content,
						"starts_at": sched[i].When,
						"ends_at":   sched[i].End(),
					},
					"task_b": map[string]any{
						"id":        sched[j].Task.ID,
						"content":   sched[j].Task.Content,
						"starts_at": sched[j].When,
						"ends_at":   sched[j].End(),
					},
				},
			})
		}
	}

	return violations
}

// itemsOverlap checks if two placements overlap in time. Intervals are
// half-open, so touching placements do not overlap.
func (v *Validator) itemsOverlap(a, b schedule.ScheduledTask) bool {
	return a.When.Before(b.End()) && a.End().After(b.When)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
