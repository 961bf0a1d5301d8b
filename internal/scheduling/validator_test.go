/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/task"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func placed(id int64, content string, when time.Time, d time.Duration, deadline time.Time) schedule.ScheduledTask {
	return schedule.ScheduledTask{
		Task: task.Task{ID: id, Content: content, Duration: d, Importance: 5, Deadline: deadline},
		When: when,
	}
}

func TestValidateCleanSchedule(t *testing.T) {
	v := NewValidator(time.Hour, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "cook dinner", floor, time.Hour, base.Add(48*time.Hour)),
		placed(2, "book dentist appointment", floor.Add(time.Hour), 10*time.Minute, base.Add(7*24*time.Hour)),
	}

	result := v.Validate(floor, sched)
	if !result.Valid {
		t.Fatalf("clean schedule reported invalid: %+v", result.Errors)
	}
	if len(result.Errors) != 0 || len(result.Warnings) != 0 {
		t.Errorf("errors = %d, warnings = %d, want 0 and 0", len(result.Errors), len(result.Warnings))
	}
	if !result.Floor.Equal(floor) {
		t.Errorf("Floor = %v, want %v", result.Floor, floor)
	}
}

// Touching placements share an instant but not a slot.
func TestValidateTouchingPlacementsDoNotOverlap(t *testing.T) {
	v := NewValidator(0, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "first", floor, time.Hour, base.Add(100*time.Hour)),
		placed(2, "second", floor.Add(time.Hour), time.Hour, base.Add(100*time.Hour)),
	}

	if result := v.Validate(floor, sched); !result.Valid {
		t.Fatalf("touching placements reported invalid: %+v", result.Errors)
	}
}

func TestValidateDetectsOverlap(t *testing.T) {
	v := NewValidator(0, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "first", floor, time.Hour, base.Add(100*time.Hour)),
		placed(2, "second", floor.Add(30*time.Minute), time.Hour, base.Add(100*time.Hour)),
	}

	result := v.Validate(floor, sched)
	if result.Valid {
		t.Fatal("overlapping placements reported valid")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(result.Errors))
	}

	violation := result.Errors[0]
	if violation.RuleType != RuleTypeOverlap {
		t.Errorf("RuleType = %q, want %q", violation.RuleType, RuleTypeOverlap)
	}
	if len(violation.AffectedIDs) != 2 || violation.AffectedIDs[0] != 1 || violation.AffectedIDs[1] != 2 {
		t.Errorf("AffectedIDs = %v, want [1 2]", violation.AffectedIDs)
	}
	if got := violation.Details["overlap_minutes"]; got != 30 {
		t.Errorf("overlap_minutes = %v, want 30", got)
	}
}

func TestValidateDetectsFloorViolation(t *testing.T) {
	v := NewValidator(0, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "too eager", base, time.Hour, base.Add(100*time.Hour)),
	}

	result := v.Validate(floor, sched)
	if result.Valid {
		t.Fatal("placement before the floor reported valid")
	}
	if result.Errors[0].RuleType != RuleTypeFloor {
		t.Errorf("RuleType = %q, want %q", result.Errors[0].RuleType, RuleTypeFloor)
	}
}

func TestValidateDetectsMissedDeadline(t *testing.T) {
	v := NewValidator(0, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "too late", floor, 2*time.Hour, floor.Add(time.Hour)),
	}

	result := v.Validate(floor, sched)
	if result.Valid {
		t.Fatal("missed deadline reported valid")
	}
	if result.Errors[0].RuleType != RuleTypeDeadline {
		t.Errorf("RuleType = %q, want %q", result.Errors[0].RuleType, RuleTypeDeadline)
	}
}

// Ending exactly at the deadline is allowed, but inside the tight window it
// still warrants a warning.
func TestValidateTightDeadlineWarns(t *testing.T) {
	v := NewValidator(time.Hour, zerolog.Nop())
	floor := base.Add(time.Minute)

	sched := schedule.Schedule{
		placed(1, "cutting it close", floor, time.Hour, floor.Add(time.Hour+30*time.Minute)),
	}

	result := v.Validate(floor, sched)
	if !result.Valid {
		t.Fatalf("tight deadline reported invalid: %+v", result.Errors)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(result.Warnings))
	}
	if result.Warnings[0].RuleType != RuleTypeTightDeadline {
		t.Errorf("RuleType = %q, want %q", result.Warnings[0].RuleType, RuleTypeTightDeadline)
	}
}

func TestValidateEmptySchedule(t *testing.T) {
	v := NewValidator(time.Hour, zerolog.Nop())
	if result := v.Validate(base.Add(time.Minute), nil); !result.Valid {
		t.Error("empty schedule reported invalid")
	}
}
