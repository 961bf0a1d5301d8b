/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package timeline implements the interval placement store behind the
// planner: an ordered set of non-overlapping entries with direction-biased
// gap search. Entries are half-open intervals, so one ending exactly where
// another starts does not overlap it.
package timeline

import (
	"sort"
	"time"

	"github.com/friendsincode/skuld/internal/task"
)

// Entry is one placed task: the interval [Start, End) plus the task
// occupying it.
type Entry struct {
	Start time.Time
	End   time.Time
	Task  *task.Task
}

// Timeline holds non-overlapping entries ordered by start time, with a
// payload index beside the ordering so a task's entry is found without a
// scan. The slice and the index are kept in lockstep by every mutation.
type Timeline struct {
	entries []Entry
	byTask  map[*task.Task]Entry
}

// New returns an empty timeline.
func New() *Timeline {
	return &Timeline{byTask: make(map[*task.Task]Entry)}
}

// IsEmpty reports whether nothing is scheduled.
func (tl *Timeline) IsEmpty() bool { return len(tl.entries) == 0 }

// Len returns the number of scheduled entries.
func (tl *Timeline) Len() int { return len(tl.entries) }

// Entries returns a copy of all entries in ascending start order.
func (tl *Timeline) Entries() []Entry {
	out := make([]Entry, len(tl.entries))
	copy(out, tl.entries)
	return out
}

// WhenScheduled returns the start time of the entry holding t.
func (tl *Timeline) WhenScheduled(t *task.Task) (time.Time, bool) {
	e, ok := tl.byTask[t]
	if !ok {
		return time.Time{}, false
	}
	return e.Start, true
}

// ScheduleCloseBefore places t as late as possible: the new entry ends at
// deadline when that spot is free, earlier when existing entries are in the
// way, and never starts before lowerBound (the zero time means unbounded).
// Gaps are scanned from latest to earliest and the first one at least
// duration wide wins; a zero duration fits a zero-width gap. Returns false,
// leaving the timeline unchanged, when no gap qualifies.
func (tl *Timeline) ScheduleCloseBefore(deadline time.Time, duration time.Duration, lowerBound time.Time, t *task.Task) bool {
	end := deadline
	// First entry starting at or after the candidate end; only the entry
	// just below that can cover it.
	i := sort.Search(len(tl.entries), func(k int) bool {
		return !tl.entries[k].Start.Before(end)
	})
	for {
		floor := lowerBound
		if i > 0 {
			prev := tl.entries[i-1]
			if prev.End.After(end) {
				// The candidate end sits inside prev; retry below it.
				end = prev.Start
				i--
				continue
			}
			if prev.End.After(floor) {
				floor = prev.End
			}
		}
		start := end.Add(-duration)
		if !start.Before(floor) {
			tl.insert(Entry{Start: start, End: end, Task: t})
			return true
		}
		if i == 0 {
			return false
		}
		end = tl.entries[i-1].Start
		i--
	}
}

// ScheduleCloseAfter places t as early as possible: the earliest gap at or
// after start that is at least duration wide, with the resulting end capped
// by upperBound (the zero time means unbounded). Later gaps only end later,
// so the search stops at the first fit. Returns false, leaving the timeline
// unchanged, when even that fit would end past upperBound.
func (tl *Timeline) ScheduleCloseAfter(start time.Time, duration time.Duration, upperBound time.Time, t *task.Task) bool {
	begin := start
	// First entry still relevant at begin. Ends are non-decreasing because
	// entries do not overlap, so this is a valid binary search.
	i := sort.Search(len(tl.entries), func(k int) bool {
		return tl.entries[k].End.After(begin)
	})
	for {
		if i < len(tl.entries) && !tl.entries[i].Start.After(begin) {
			// Occupied at begin; resume after this entry.
			begin = tl.entries[i].End
			i++
			continue
		}
		end := begin.Add(duration)
		if i == len(tl.entries) || !end.After(tl.entries[i].Start) {
			if !upperBound.IsZero() && end.After(upperBound) {
				return false
			}
			tl.insert(Entry{Start: begin, End: end, Task: t})
			return true
		}
		begin = tl.entries[i].End
		i++
	}
}

// Unschedule removes and returns the entry holding t.
func (tl *Timeline) Unschedule(t *task.Task) (Entry, bool) {
	e, ok := tl.byTask[t]
	if !ok {
		return Entry{}, false
	}
	delete(tl.byTask, t)
	i := sort.Search(len(tl.entries), func(k int) bool {
		return !tl.entries[k].Start.Before(e.Start)
	})
	// Start times tie only between zero-width entries; walk those.
	for tl.entries[i].Task != t {
		i++
	}
	tl.entries = append(tl.entries[:i], tl.entries[i+1:]...)
	return e, true
}

// insert keeps entries ordered by start, breaking start ties by end. Ties
// only occur when a zero-width entry shares a boundary with another entry;
// end-ordering them keeps the end sequence non-decreasing, which the binary
// search in ScheduleCloseAfter depends on.
func (tl *Timeline) insert(e Entry) {
	i := sort.Search(len(tl.entries), func(k int) bool {
		if !tl.entries[k].Start.Equal(e.Start) {
			return tl.entries[k].Start.After(e.Start)
		}
		return !tl.entries[k].End.Before(e.End)
	})
	tl.entries = append(tl.entries, Entry{})
	copy(tl.entries[i+1:], tl.entries[i:])
	tl.entries[i] = e
	tl.byTask[e.Task] = e
}
