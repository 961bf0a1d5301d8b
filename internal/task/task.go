/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package task defines the unit of work the planner schedules.
package task

import (
	"fmt"
	"time"
)

// Task is one deadline-bound unit of work. Tasks are treated as immutable
// values once scheduling begins; higher Importance means more important.
type Task struct {
	ID         int64         `json:"id"`
	Content    string        `json:"content"`
	Deadline   time.Time     `json:"deadline"`
	Duration   time.Duration `json:"duration"`
	Importance int           `json:"importance"`
}

// String returns the task content.
func (t Task) String() string { return t.Content }

// Equal reports whether two tasks match field for field.
func (t Task) Equal(other Task) bool {
	return t.ID == other.ID &&
		t.Content == other.Content &&
		t.Deadline.Equal(other.Deadline) &&
		t.Duration == other.Duration &&
		t.Importance == other.Importance
}

// Validate checks the fields a caller can get wrong.
func (t Task) Validate() error {
	if t.Content == "" {
		return fmt.Errorf("task %d: content is empty", t.ID)
	}
	if t.Duration < 0 {
		return fmt.Errorf("task %d: duration %s is negative", t.ID, t.Duration)
	}
	if t.Deadline.IsZero() {
		return fmt.Errorf("task %d: deadline is not set", t.ID)
	}
	return nil
}

// ValidateAll validates every task and rejects duplicate IDs. The planner
// itself does not key on IDs, but exports and API responses do.
func ValidateAll(tasks []Task) error {
	seen := make(map[int64]struct{}, len(tasks))
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("task %d: duplicate id", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
