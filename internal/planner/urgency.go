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

// scheduleByUrgency packs against deadlines least important first, then
// compacts everything toward the present in a single pass over the placed
// entries. The pass preserves their relative order, so urgent work stays
// ahead of important-but-distant work; the trade-off is that an important
// task can start later than strictly necessary.
func scheduleByUrgency(tl *timeline.Timeline, start time.Time, tasks []*task.Task) error {
	sorted := make([]*task.Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Importance < sorted[j].Importance
	})

	if err := packAgainstDeadlines(tl, start, sorted); err != nil {
		return err
	}

	// Entries() is a snapshot, so re-placing while walking it is safe:
	// each move lands at or before the entry's old slot and cannot
	// reorder anything still ahead in the snapshot.
	for _, e := range tl.Entries() {
		if _, err := pullForward(tl, start, e.Task); err != nil {
			return err
		}
	}
	return nil
}
