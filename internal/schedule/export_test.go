/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package schedule

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/skuld/internal/task"
)

func testPlan() Plan {
	start := time.Date(2026, 3, 14, 9, 1, 0, 0, time.UTC)
	return Plan{
		RunID:      "7f9c24e5",
		Strategy:   "importance",
		ComputedAt: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Start:      start,
		Schedule: Schedule{
			{
				Task: task.Task{
					ID:         6,
					Content:    "book dentist appointment",
					Deadline:   time.Date(2026, 3, 21, 9, 0, 0, 0, time.UTC),
					Duration:   10 * time.Minute,
					Importance: 5,
				},
				When: start,
			},
			{
				Task: task.Task{
					ID:         2,
					Content:    "cook dinner, then dishes",
					Deadline:   time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC),
					Duration:   time.Hour,
					Importance: 3,
				},
				When: start.Add(10 * time.Minute),
			},
		},
	}
}

func TestExportICS(t *testing.T) {
	e := NewExporter(zerolog.Nop())
	out, err := e.Export(testPlan(), FormatICS)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	body := string(out.Data)
	wantLines := []string{
		"BEGIN:VCALENDAR\r\n",
		"PRODID:-//Friends Incode//Skuld//EN\r\n",
		"UID:6-7f9c24e5@skuld\r\n",
		"DTSTART:20260314T090100Z\r\n",
		"DTEND:20260314T091100Z\r\n",
		"SUMMARY:book dentist appointment\r\n",
		// Commas in content must be escaped.
		"SUMMARY:cook dinner\\, then dishes\r\n",
		"END:VCALENDAR\r\n",
	}
	for _, line := range wantLines {
		if !strings.Contains(body, line) {
			t.Errorf("ICS output missing %q", line)
		}
	}
	if strings.Contains(strings.ReplaceAll(body, "\r\n", ""), "\n") {
		t.Error("ICS output contains bare newlines")
	}
	if out.ContentType != "text/calendar; charset=utf-8" {
		t.Errorf("content type %q", out.ContentType)
	}
	if out.Filename != "skuld-plan-2026-03-14-importance.ics" {
		t.Errorf("filename %q", out.Filename)
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	e := NewExporter(zerolog.Nop())
	plan := testPlan()
	out, err := e.Export(plan, FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var decoded Plan
	if err := json.Unmarshal(out.Data, &decoded); err != nil {
		t.Fatalf("decode exported plan: %v", err)
	}
	if decoded.RunID != plan.RunID || decoded.Strategy != plan.Strategy {
		t.Errorf("metadata round trip: got %q/%q", decoded.RunID, decoded.Strategy)
	}
	if len(decoded.Schedule) != len(plan.Schedule) {
		t.Fatalf("schedule length %d, want %d", len(decoded.Schedule), len(plan.Schedule))
	}
	for i := range plan.Schedule {
		if !decoded.Schedule[i].Task.Equal(plan.Schedule[i].Task) {
			t.Errorf("task %d did not survive the round trip: %+v", i, decoded.Schedule[i].Task)
		}
		if !decoded.Schedule[i].When.Equal(plan.Schedule[i].When) {
			t.Errorf("start %d did not survive the round trip", i)
		}
	}
}

func TestExportJSONWireShape(t *testing.T) {
	e := NewExporter(zerolog.Nop())
	out, err := e.Export(testPlan(), FormatJSON)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	var wire struct {
		RunID    string `json:"run_id"`
		Schedule []map[string]any
	}
	if err := json.Unmarshal(out.Data, &wire); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if wire.RunID != "7f9c24e5" {
		t.Errorf("run_id %q", wire.RunID)
	}
	for _, key := range []string{"task_id", "content", "importance", "starts_at", "ends_at", "deadline"} {
		if _, ok := wire.Schedule[0][key]; !ok {
			t.Errorf("schedule item missing %q", key)
		}
	}
}

func TestExportTable(t *testing.T) {
	e := NewExporter(zerolog.Nop())
	out, err := e.Export(testPlan(), FormatTable)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	body := string(out.Data)
	for _, want := range []string{"START", "DEADLINE", "book dentist appointment", "2026-03-14 09:01"} {
		if !strings.Contains(body, want) {
			t.Errorf("table output missing %q", want)
		}
	}
}

func TestScheduleSpanAndTotal(t *testing.T) {
	plan := testPlan()
	first, last := plan.Schedule.Span()
	if !first.Equal(plan.Start) {
		t.Errorf("span start %v, want %v", first, plan.Start)
	}
	if want := plan.Start.Add(70 * time.Minute); !last.Equal(want) {
		t.Errorf("span end %v, want %v", last, want)
	}
	if got := plan.Schedule.TotalDuration(); got != 70*time.Minute {
		t.Errorf("total duration %v, want 70m", got)
	}

	var empty Schedule
	if first, last := empty.Span(); !first.IsZero() || !last.IsZero() {
		t.Error("empty schedule should span zero times")
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"json", "ics", "table"} {
		f, err := ParseFormat(name)
		if err != nil {
			t.Fatalf("ParseFormat(%q): %v", name, err)
		}
		if string(f) != name {
			t.Fatalf("ParseFormat(%q) = %q", name, f)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected unknown format to be rejected")
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Importance":        "importance",
		"Deep Work Friday!": "deep-work-friday",
		"été-2026":          "t-2026",
	}
	for in, want := range cases {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
