/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package planner

import (
	"sort"
	"time"

	"github.com/friendsincode/skuld/internal/task"
	"github.com/friendsincode/skuld/internal/timeline"
)

// scheduleByImportance packs every task as late as its deadline allows,
// least important first, then repeatedly pulls tasks toward the present,
// most important first, until a full pass moves nothing.
//
// Phase one sorts ascending by (importance, start−deadline): among equally
// important tasks the more urgent ones sort later, are placed later in the
// pass, and so end up closer to the present. Phase two walks the same
// order in reverse. A heuristic, not an optimum: when task lengths differ
// wildly, an important long task can still trail a short unimportant one
// that fits a gap it cannot use.
func scheduleByImportance(tl *timeline.Timeline, start time.Time, tasks []*task.Task) error {
	sorted := make([]*task.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Importance != sorted[j].Importance {
			return sorted[i].Importance < sorted[j].Importance
		}
		return start.Sub(sorted[i].Deadline) < start.Sub(sorted[j].Deadline)
	})

	if err := packAgainstDeadlines(tl, start, sorted); err != nil {
		return err
	}

	// Every move in a pass is strictly earlier (the freed slot stays a
	// candidate), so the loop settles within len(tasks) changing passes;
	// the cap turns a broken invariant into an error instead of a hang.
	maxPasses := len(sorted) + 1
	changed := !tl.IsEmpty()
	for pass := 0; changed; pass++ {
		if pass >= maxPasses {
			return internalErrorf("pull-forward did not settle after %d passes over %d tasks", maxPasses, len(sorted))
		}
		changed = false
		for i := len(sorted) - 1; i >= 0; i-- {
			moved, err := pullForward(tl, start, sorted[i])
			if err != nil {
				return err
			}
			if moved {
				changed = true
			}
		}
	}
	return nil
}
