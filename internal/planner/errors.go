/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"errors"
	"fmt"
	"time"

	"github.com/friendsincode/skuld/internal/task"
)

// Sentinels for errors.Is checks. The typed errors below carry the
// structured fields and unwrap to one of these.
var (
	ErrDeadlineMissed = errors.New("deadline missed")
	ErrNotEnoughTime  = errors.New("not enough time")
	ErrInternal       = errors.New("internal planner error")
)

// DeadlineMissedError reports a task whose deadline cannot be honored no
// matter what else is scheduled. AlreadyMissed distinguishes a deadline
// that lies in the past from one still ahead but unreachable given the
// task's own duration and the safety delay.
type DeadlineMissedError struct {
	Task          task.Task
	AlreadyMissed bool
}

func (e *DeadlineMissedError) Error() string {
	if e.AlreadyMissed {
		return fmt.Sprintf("deadline missed: %q was due %s", e.Task.Content, e.Task.Deadline.Format(time.RFC3339))
	}
	return fmt.Sprintf("deadline missed: %q cannot finish by %s", e.Task.Content, e.Task.Deadline.Format(time.RFC3339))
}

func (e *DeadlineMissedError) Unwrap() error { return ErrDeadlineMissed }

// NotEnoughTimeError reports that no gap wide enough for the task exists
// before its deadline, given the commitments already placed.
type NotEnoughTimeError struct {
	Task task.Task
}

func (e *NotEnoughTimeError) Error() string {
	return fmt.Sprintf("not enough time: %q does not fit before %s", e.Task.Content, e.Task.Deadline.Format(time.RFC3339))
}

func (e *NotEnoughTimeError) Unwrap() error { return ErrNotEnoughTime }

// InternalError reports a violated invariant of a placement algorithm. It
// is a defect signal, never an expected outcome of a well-formed request.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string { return "internal planner error: " + e.Message }

func (e *InternalError) Unwrap() error { return ErrInternal }

func internalErrorf(format string, args ...any) error {
	return &InternalError{Message: fmt.Sprintf(format, args...)}
}
