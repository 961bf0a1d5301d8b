/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/task"
)

// A cache pointed at an unreachable Redis must degrade to no-ops rather
// than failing planner runs.
func TestCacheDisabledWhenRedisUnavailable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	c, err := New(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if c.IsAvailable() {
		t.Fatal("expected cache to be disabled")
	}

	ctx := context.Background()
	plan := &schedule.Plan{
		RunID:      "7f9c24e5",
		Strategy:   "importance",
		ComputedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Start:      time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC),
		Schedule: schedule.Schedule{
			{
				Task: task.Task{
					ID:         1,
					Content:    "file quarterly taxes",
					Duration:   2 * time.Hour,
					Importance: 8,
					Deadline:   time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
				},
				When: time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC),
			},
		},
	}

	if err := c.StorePlan(ctx, plan); err != nil {
		t.Errorf("StorePlan on disabled cache: %v", err)
	}
	if _, found := c.GetPlan(ctx, plan.RunID); found {
		t.Error("GetPlan reported a hit on a disabled cache")
	}
	if _, found := c.GetLatestPlan(ctx); found {
		t.Error("GetLatestPlan reported a hit on a disabled cache")
	}
	if _, found := c.RecentRuns(ctx); found {
		t.Error("RecentRuns reported a hit on a disabled cache")
	}
	if err := c.FlushAll(ctx); err != nil {
		t.Errorf("FlushAll on disabled cache: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.PlanTTL != DefaultPlanTTL {
		t.Errorf("PlanTTL = %v, want %v", cfg.PlanTTL, DefaultPlanTTL)
	}
	if cfg.MaxRuns <= 0 {
		t.Error("MaxRuns must default to a positive cap")
	}
	if !cfg.DisableOnError {
		t.Error("DisableOnError must default to true")
	}
}
