/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package planner assigns concrete start times to deadline-bound tasks.
// Two strategies are available: importance-first, which hands earlier
// slots to more important tasks once every deadline is known to be
// satisfiable, and urgency-first, which compacts work toward the present
// while keeping the deadline-driven order intact.
package planner

import (
	"fmt"
	"time"

	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/task"
	"github.com/friendsincode/skuld/internal/timeline"
)

// SafetyDelay is the minimum offset from "now" before any task may start.
// It covers the window between computing a plan and acting on it.
const SafetyDelay = time.Minute

// Strategy selects a placement algorithm.
type Strategy string

const (
	// StrategyImportance favors important tasks for earlier slots.
	StrategyImportance Strategy = "importance"
	// StrategyUrgency keeps the deadline-driven order and compacts it
	// toward the present. Robust against slippage: when everything runs
	// late, the tasks due first were done first.
	StrategyUrgency Strategy = "urgency"
)

func (s Strategy) String() string { return string(s) }

// Strategies lists the supported strategies in display order.
func Strategies() []Strategy {
	return []Strategy{StrategyImportance, StrategyUrgency}
}

// ParseStrategy maps a wire name onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyImportance, StrategyUrgency:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// Schedule assigns a start time to every task using the given strategy.
// No task is placed before start plus SafetyDelay. On success the result
// holds exactly one entry per input task, ascending by start time, every
// entry ending at or before its deadline. On failure the typed error names
// the first infeasible task (DeadlineMissedError, NotEnoughTimeError) or
// reports a defect (InternalError); no partial schedule is ever returned.
// Pure function of its inputs: an empty task list yields an empty
// schedule, never an error.
func Schedule(start time.Time, tasks []task.Task, strategy Strategy) (schedule.Schedule, error) {
	floor := start.Add(SafetyDelay)

	// Each task gets a fresh handle; the timeline keys entries by handle
	// identity, so duplicate task values stay distinguishable.
	handles := make([]*task.Task, len(tasks))
	for i := range tasks {
		t := tasks[i]
		handles[i] = &t
	}

	tl := timeline.New()
	var err error
	switch strategy {
	case StrategyImportance:
		err = scheduleByImportance(tl, floor, handles)
	case StrategyUrgency:
		err = scheduleByUrgency(tl, floor, handles)
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
	if err != nil {
		return nil, err
	}

	entries := tl.Entries()
	result := make(schedule.Schedule, 0, len(entries))
	for _, e := range entries {
		result = append(result, schedule.ScheduledTask{Task: *e.Task, When: e.Start})
	}
	return result, nil
}

// packAgainstDeadlines is phase one of both strategies: walk the tasks in
// the given order and place each as late as its deadline allows, never
// before start. Fails fast on the first infeasible task, leaving no
// partial result for the caller.
func packAgainstDeadlines(tl *timeline.Timeline, start time.Time, tasks []*task.Task) error {
	for _, t := range tasks {
		if !t.Deadline.After(start.Add(t.Duration)) {
			return &DeadlineMissedError{Task: *t, AlreadyMissed: !t.Deadline.After(start)}
		}
		if !tl.ScheduleCloseBefore(t.Deadline, t.Duration, start, t) {
			return &NotEnoughTimeError{Task: *t}
		}
	}
	return nil
}

// pullForward lifts one task out of the timeline and re-places it as early
// as possible without regressing past its previous end, reporting whether
// it actually moved. Phase one already proved the task fits, so either
// failure mode is a defect.
func pullForward(tl *timeline.Timeline, start time.Time, t *task.Task) (bool, error) {
	prev, ok := tl.Unschedule(t)
	if !ok {
		return false, internalErrorf("task %d vanished from the timeline during pull-forward", t.ID)
	}
	if !tl.ScheduleCloseAfter(start, t.Duration, prev.End, t) {
		return false, internalErrorf("task %d could not be re-placed during pull-forward", t.ID)
	}
	newStart, ok := tl.WhenScheduled(t)
	if !ok {
		return false, internalErrorf("task %d not found right after re-placing it", t.ID)
	}
	return !newStart.Equal(prev.Start), nil
}
