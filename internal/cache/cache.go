/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for computed plans.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/schedule"
)

// Default TTL values for different cache types
const (
	DefaultPlanTTL    = 24 * time.Hour
	DefaultLatestTTL  = 24 * time.Hour
	DefaultRunListTTL = 7 * 24 * time.Hour
)

// Key prefixes for Redis cache
const (
	KeyPlan    = "skuld:cache:plan:" // + run_id
	KeyLatest  = "skuld:cache:latest_plan"
	KeyRunList = "skuld:cache:runs"
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	PlanTTL    time.Duration
	LatestTTL  time.Duration
	RunListTTL time.Duration

	// MaxRuns caps the recent-run index.
	MaxRuns int

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		PlanTTL:        DefaultPlanTTL,
		LatestTTL:      DefaultLatestTTL,
		RunListTTL:     DefaultRunListTTL,
		MaxRuns:        50,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A planner run
// never fails because the cache is down; misses are the worst case.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Plan caching methods

// PlanSummary is the run-index entry kept for each computed plan.
type PlanSummary struct {
	RunID      string    `json:"run_id"`
	Strategy   string    `json:"strategy"`
	ComputedAt time.Time `json:"computed_at"`
	Start      time.Time `json:"start"`
	Tasks      int       `json:"tasks"`
}

// GetPlan retrieves a cached plan by run ID.
func (c *Cache) GetPlan(ctx context.Context, runID string) (*schedule.Plan, bool) {
	var plan schedule.Plan
	found, err := c.get(ctx, KeyPlan+runID, &plan)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("run_id", runID).Msg("plan cache hit")
	return &plan, true
}

// SetPlan caches a plan by run ID.
func (c *Cache) SetPlan(ctx context.Context, plan *schedule.Plan) error {
	c.logger.Debug().Str("run_id", plan.RunID).Int("tasks", len(plan.Schedule)).Msg("caching plan")
	return c.set(ctx, KeyPlan+plan.RunID, plan, c.config.PlanTTL)
}

// InvalidatePlan removes a plan from cache.
func (c *Cache) InvalidatePlan(ctx context.Context, runID string) error {
	c.logger.Debug().Str("run_id", runID).Msg("invalidating plan cache")
	return c.delete(ctx, KeyPlan+runID)
}

// GetLatestPlan retrieves the most recently computed plan.
func (c *Cache) GetLatestPlan(ctx context.Context) (*schedule.Plan, bool) {
	var plan schedule.Plan
	found, err := c.get(ctx, KeyLatest, &plan)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Str("run_id", plan.RunID).Msg("latest plan cache hit")
	return &plan, true
}

// SetLatestPlan caches the most recently computed plan.
func (c *Cache) SetLatestPlan(ctx context.Context, plan *schedule.Plan) error {
	c.logger.Debug().Str("run_id", plan.RunID).Msg("caching latest plan")
	return c.set(ctx, KeyLatest, plan, c.config.LatestTTL)
}

// RecentRuns retrieves the recent-run index, newest first.
func (c *Cache) RecentRuns(ctx context.Context) ([]PlanSummary, bool) {
	var runs []PlanSummary
	found, err := c.get(ctx, KeyRunList, &runs)
	if err != nil || !found {
		return nil, false
	}
	c.logger.Debug().Int("count", len(runs)).Msg("run index cache hit")
	return runs, true
}

// RecordRun prepends a plan summary to the recent-run index. Last writer
// wins across nodes; the index is advisory.
func (c *Cache) RecordRun(ctx context.Context, plan *schedule.Plan) error {
	if !c.IsAvailable() {
		return nil
	}

	var runs []PlanSummary
	if _, err := c.get(ctx, KeyRunList, &runs); err != nil {
		return err
	}

	summary := PlanSummary{
		RunID:      plan.RunID,
		Strategy:   plan.Strategy,
		ComputedAt: plan.ComputedAt,
		Start:      plan.Start,
		Tasks:      len(plan.Schedule),
	}
	runs = append([]PlanSummary{summary}, runs...)
	if max := c.config.MaxRuns; max > 0 && len(runs) > max {
		runs = runs[:max]
	}

	c.logger.Debug().Str("run_id", plan.RunID).Int("count", len(runs)).Msg("recording run")
	return c.set(ctx, KeyRunList, runs, c.config.RunListTTL)
}

// StorePlan caches a plan under its run ID, updates the latest-plan entry,
// and records the run in the index.
func (c *Cache) StorePlan(ctx context.Context, plan *schedule.Plan) error {
	if err := c.SetPlan(ctx, plan); err != nil {
		return err
	}
	if err := c.SetLatestPlan(ctx, plan); err != nil {
		return err
	}
	return c.RecordRun(ctx, plan)
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, "skuld:cache:*")
}
