package logbuffer

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func entry(level, component, message string) LogEntry {
	return LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Component: component,
		Message:   message,
	}
}

func TestBufferEvictsOldestFirst(t *testing.T) {
	b := New(3)
	for i := 1; i <= 5; i++ {
		b.Add(entry("info", "planner", fmt.Sprintf("msg %d", i)))
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries after wrap, got %d", len(all))
	}
	if all[0].Message != "msg 3" || all[2].Message != "msg 5" {
		t.Fatalf("expected oldest msg 3 .. newest msg 5, got %q .. %q", all[0].Message, all[2].Message)
	}
}

func TestQueryFilters(t *testing.T) {
	b := New(16)
	b.Add(entry("info", "planner", "computed plan"))
	b.Add(entry("error", "cache", "redis unavailable"))
	b.Add(entry("info", "api", "request served"))
	b.Add(entry("warn", "planner", "tight deadline"))

	byLevel := b.Query(QueryParams{Level: "error"})
	if len(byLevel) != 1 || byLevel[0].Component != "cache" {
		t.Fatalf("level filter: got %+v", byLevel)
	}

	byComponent := b.Query(QueryParams{Component: "planner"})
	if len(byComponent) != 2 {
		t.Fatalf("component filter: expected 2, got %d", len(byComponent))
	}

	bySearch := b.Query(QueryParams{Search: "REDIS"})
	if len(bySearch) != 1 || bySearch[0].Level != "error" {
		t.Fatalf("search filter should be case-insensitive: got %+v", bySearch)
	}

	limited := b.Query(QueryParams{Limit: 2, Descending: true})
	if len(limited) != 2 || limited[0].Message != "tight deadline" {
		t.Fatalf("descending limit: got %+v", limited)
	}
}

func TestQuerySince(t *testing.T) {
	b := New(8)
	old := entry("info", "api", "old entry")
	old.Timestamp = time.Now().Add(-time.Hour)
	b.Add(old)
	b.Add(entry("info", "api", "fresh entry"))

	recent := b.Query(QueryParams{Since: time.Now().Add(-time.Minute)})
	if len(recent) != 1 || recent[0].Message != "fresh entry" {
		t.Fatalf("since filter: got %+v", recent)
	}
}

func TestStatsAndComponents(t *testing.T) {
	b := New(8)
	b.Add(entry("info", "planner", "a"))
	b.Add(entry("info", "api", "b"))
	b.Add(entry("error", "api", "c"))

	stats := b.Stats()
	if stats.Count != 3 || stats.LevelCount["info"] != 2 || stats.LevelCount["error"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	components := b.GetComponents()
	if len(components) != 2 {
		t.Fatalf("expected 2 components, got %v", components)
	}

	b.Clear()
	if got := b.Stats().Count; got != 0 {
		t.Fatalf("expected empty buffer after clear, got %d", got)
	}
}

func TestWriterCapturesZerologOutput(t *testing.T) {
	b := New(8)
	logger := zerolog.New(NewWriter(b, nil)).With().
		Timestamp().
		Str("component", "scheduler").
		Logger()

	logger.Info().Str("run_id", "7f9c24e5").Msg("plan computed")

	all := b.GetAll()
	if len(all) != 1 {
		t.Fatalf("expected 1 captured entry, got %d", len(all))
	}
	got := all[0]
	if got.Level != "info" || got.Component != "scheduler" || got.Message != "plan computed" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Fields["run_id"] != "7f9c24e5" {
		t.Fatalf("expected run_id field, got %+v", got.Fields)
	}
}
