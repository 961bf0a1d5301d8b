/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package task

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	deadline := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		task    Task
		wantErr string
	}{
		{
			name: "valid",
			task: Task{ID: 1, Content: "write report", Deadline: deadline, Duration: time.Hour, Importance: 5},
		},
		{
			name:    "empty content",
			task:    Task{ID: 2, Deadline: deadline, Duration: time.Hour},
			wantErr: "content is empty",
		},
		{
			name:    "negative duration",
			task:    Task{ID: 3, Content: "x", Deadline: deadline, Duration: -time.Minute},
			wantErr: "is negative",
		},
		{
			name:    "zero deadline",
			task:    Task{ID: 4, Content: "x", Duration: time.Hour},
			wantErr: "deadline is not set",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateAllRejectsDuplicateIDs(t *testing.T) {
	deadline := time.Now().Add(24 * time.Hour)
	tasks := []Task{
		{ID: 1, Content: "a", Deadline: deadline, Duration: time.Hour},
		{ID: 1, Content: "b", Deadline: deadline, Duration: time.Hour},
	}
	err := ValidateAll(tasks)
	if err == nil || !strings.Contains(err.Error(), "duplicate id") {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestEqual(t *testing.T) {
	deadline := time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC)
	a := Task{ID: 1, Content: "x", Deadline: deadline, Duration: time.Hour, Importance: 3}
	b := a
	if !a.Equal(b) {
		t.Fatalf("expected identical tasks to be equal")
	}
	// Same instant in another location still compares equal.
	b.Deadline = deadline.In(time.FixedZone("CET", 3600))
	if !a.Equal(b) {
		t.Fatalf("expected equality across time zones")
	}
	b = a
	b.Importance = 4
	if a.Equal(b) {
		t.Fatalf("expected differing importance to break equality")
	}
}

func TestParse(t *testing.T) {
	doc := `
tasks:
  - content: write report
    deadline: 2026-09-01T17:00:00Z
    duration: 2h30m
    importance: 7
  - id: 9
    content: book flights
    deadline: 2026-09-03T12:00:00+02:00
    duration: 45m
    importance: 4
`
	tasks, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].ID != 1 {
		t.Fatalf("expected positional id 1, got %d", tasks[0].ID)
	}
	if tasks[0].Duration != 2*time.Hour+30*time.Minute {
		t.Fatalf("expected 2h30m, got %s", tasks[0].Duration)
	}
	if tasks[1].ID != 9 {
		t.Fatalf("expected explicit id 9, got %d", tasks[1].ID)
	}
	want := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	if !tasks[1].Deadline.Equal(want) {
		t.Fatalf("expected deadline %s, got %s", want, tasks[1].Deadline)
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "bad duration",
			doc:  "tasks:\n  - content: x\n    deadline: 2026-09-01T17:00:00Z\n    duration: two hours\n",
			want: "bad duration",
		},
		{
			name: "bad deadline",
			doc:  "tasks:\n  - content: x\n    deadline: tomorrow\n    duration: 1h\n",
			want: "bad deadline",
		},
		{
			name: "duplicate ids",
			doc:  "tasks:\n  - id: 3\n    content: x\n    deadline: 2026-09-01T17:00:00Z\n    duration: 1h\n  - id: 3\n    content: y\n    deadline: 2026-09-01T17:00:00Z\n    duration: 1h\n",
			want: "duplicate id",
		},
		{
			name: "not yaml",
			doc:  "{{{",
			want: "parse task file",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParseEmptyListIsAllowed(t *testing.T) {
	tasks, err := Parse([]byte("tasks: []\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks))
	}
}
