/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule holds the user-facing result of a plan run and the
// exporters that turn it into JSON, iCalendar, and plain-text output.
package schedule

import (
	"encoding/json"
	"time"

	"github.com/friendsincode/skuld/internal/task"
)

// ScheduledTask binds one task to its assigned start time.
type ScheduledTask struct {
	Task task.Task
	When time.Time
}

// End returns the moment the task finishes.
func (st ScheduledTask) End() time.Time {
	return st.When.Add(st.Task.Duration)
}

// wireTask is the JSON shape of one scheduled task. The duration travels
// implicitly as ends_at − starts_at.
type wireTask struct {
	TaskID     int64     `json:"task_id"`
	Content    string    `json:"content"`
	Importance int       `json:"importance"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Deadline   time.Time `json:"deadline"`
}

func (st ScheduledTask) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireTask{
		TaskID:     st.Task.ID,
		Content:    st.Task.Content,
		Importance: st.Task.Importance,
		StartsAt:   st.When,
		EndsAt:     st.End(),
		Deadline:   st.Task.Deadline,
	})
}

func (st *ScheduledTask) UnmarshalJSON(data []byte) error {
	var w wireTask
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	st.Task = task.Task{
		ID:         w.TaskID,
		Content:    w.Content,
		Deadline:   w.Deadline,
		Duration:   w.EndsAt.Sub(w.StartsAt),
		Importance: w.Importance,
	}
	st.When = w.StartsAt
	return nil
}

// Schedule is the ordered outcome of one plan run, ascending by start time.
// It is produced once, is immutable afterwards, and holds no reference back
// into the planner's working state.
type Schedule []ScheduledTask

// Span returns the first start and last end of the schedule. Both are zero
// when the schedule is empty.
func (s Schedule) Span() (time.Time, time.Time) {
	if len(s) == 0 {
		return time.Time{}, time.Time{}
	}
	return s[0].When, s[len(s)-1].End()
}

// TotalDuration sums the durations of all scheduled tasks.
func (s Schedule) TotalDuration() time.Duration {
	var total time.Duration
	for _, st := range s {
		total += st.Task.Duration
	}
	return total
}

// Plan is one computed run: the schedule plus the metadata callers need to
// cache, export, and correlate it. Strategy is carried as its wire name so
// the result types stay free of planner imports.
type Plan struct {
	RunID      string    `json:"run_id"`
	Strategy   string    `json:"strategy"`
	ComputedAt time.Time `json:"computed_at"`
	Start      time.Time `json:"start"`
	Schedule   Schedule  `json:"schedule"`
}
