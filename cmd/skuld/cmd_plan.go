/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/friendsincode/skuld/internal/planner"
	"github.com/friendsincode/skuld/internal/schedule"
	"github.com/friendsincode/skuld/internal/scheduling"
	"github.com/friendsincode/skuld/internal/storage"
	"github.com/friendsincode/skuld/internal/task"
)

// Plan flags
var (
	planFile     string
	planStrategy string
	planStart    string
	planFormat   string
	planOut      string
	planStore    bool
	planWatch    bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Compute a schedule from a task file",
	Long: `Reads a YAML task file, computes a schedule, and renders it.

The task file lists tasks with a deadline (RFC3339), a duration (Go duration
string) and an importance:

  tasks:
    - content: write report
      deadline: 2026-09-01T17:00:00Z
      duration: 2h
      importance: 5

The rendered schedule goes to stdout unless --out is given; status messages
go to stderr so output can be piped.

Examples:
  skuld plan --file tasks.yaml
  skuld plan --file tasks.yaml --strategy urgency --format ics --out plan.ics
  skuld plan --file tasks.yaml --store
  skuld plan --file tasks.yaml --watch`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planFile, "file", "", "Path to the YAML task file (required)")
	planCmd.Flags().StringVar(&planStrategy, "strategy", "importance", "Placement strategy: importance or urgency")
	planCmd.Flags().StringVar(&planStart, "start", "", "Schedule start instant, RFC3339 (default: now)")
	planCmd.Flags().StringVar(&planFormat, "format", "table", "Output format: table, json, or ics")
	planCmd.Flags().StringVar(&planOut, "out", "", "Write rendered output to this path instead of stdout")
	planCmd.Flags().BoolVar(&planStore, "store", false, "Also write the rendered plan through the configured object store")
	planCmd.Flags().BoolVar(&planWatch, "watch", false, "Watch the task file and re-plan on change")
	planCmd.MarkFlagRequired("file")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	strategy, err := planner.ParseStrategy(planStrategy)
	if err != nil {
		return err
	}
	format, err := schedule.ParseFormat(planFormat)
	if err != nil {
		return err
	}
	var start time.Time
	if planStart != "" {
		start, err = time.Parse(time.RFC3339, planStart)
		if err != nil {
			return fmt.Errorf("bad --start value %q: %w", planStart, err)
		}
	}

	svc, err := buildPlanService()
	if err != nil {
		return err
	}

	if err := planOnce(svc, strategy, format, start); err != nil {
		if !planWatch {
			return err
		}
		// Watch mode keeps going; the next save may fix the input.
		fmt.Fprintf(os.Stderr, "plan failed: %v\n", err)
	}

	if !planWatch {
		return nil
	}
	return watchAndReplan(svc, strategy, format, start)
}

// buildPlanService wires a service without bus or cache; the CLI runs one
// batch at a time and has nobody to notify.
func buildPlanService() (*scheduling.Service, error) {
	svcCfg := scheduling.DefaultConfig()
	svcCfg.MaxTasks = cfg.MaxPlanTasks

	var store storage.Store
	if planStore {
		if cfg.StorageBackend == "none" {
			return nil, fmt.Errorf("--store requires a storage backend, set SKULD_STORAGE_BACKEND")
		}
		var err error
		store, err = storage.New(context.Background(), storage.Config{
			Backend: cfg.StorageBackend,
			FS:      storage.FSConfig{RootDir: cfg.StorageFSRoot},
			S3: storage.S3Config{
				Endpoint:        cfg.S3Endpoint,
				Region:          cfg.S3Region,
				Bucket:          cfg.S3Bucket,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretAccessKey,
				UsePathStyle:    cfg.S3UsePathStyle,
				Prefix:          cfg.S3Prefix,
			},
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize storage: %w", err)
		}
	}

	return scheduling.New(svcCfg, nil, nil, store, logger), nil
}

func planOnce(svc *scheduling.Service, strategy planner.Strategy, format schedule.Format, start time.Time) error {
	tasks, err := task.LoadFile(planFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	plan, err := svc.ComputePlan(ctx, scheduling.PlanRequest{
		Start:    start,
		Strategy: strategy,
		Tasks:    tasks,
	})
	if err != nil {
		return err
	}

	export, err := svc.ExportPlan(plan, format)
	if err != nil {
		return err
	}

	if planStore {
		key, err := svc.StoreExport(ctx, plan, export)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "stored as %s\n", key)
	}

	if planOut != "" {
		if err := os.WriteFile(planOut, export.Data, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		fmt.Fprintf(os.Stderr, "wrote %s (%d tasks, run %s)\n", planOut, len(plan.Schedule), plan.RunID)
		return nil
	}

	_, err = os.Stdout.Write(export.Data)
	return err
}

// watchAndReplan blocks, recomputing the plan whenever the task file
// changes. Editors replace files on save, so the parent directory is
// watched and events are matched by basename.
func watchAndReplan(svc *scheduling.Service, strategy planner.Strategy, format schedule.Format, start time.Time) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(planFile)
	base := filepath.Base(planFile)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	fmt.Fprintf(os.Stderr, "watching %s, Ctrl-C to stop\n", planFile)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Saves often arrive as several events in quick succession; wait for
	// the file to settle before re-planning.
	replan := make(chan struct{}, 1)
	var timer *time.Timer
	debounce := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			select {
			case replan <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-quit:
			return nil

		case <-replan:
			if err := planOnce(svc, strategy, format, start); err != nil {
				fmt.Fprintf(os.Stderr, "plan failed: %v\n", err)
			}

		case ev, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			if strings.EqualFold(filepath.Base(ev.Name), base) &&
				ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("file watcher closed")
			}
			logger.Warn().Err(err).Msg("watch error")
		}
	}
}
