/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package task

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// File is the on-disk task list accepted by the CLI.
type File struct {
	Tasks []FileEntry `yaml:"tasks"`
}

// FileEntry is one task in a task file. Deadline is RFC3339; Duration is a
// Go duration string such as "2h30m".
type FileEntry struct {
	ID         *int64 `yaml:"id"`
	Content    string `yaml:"content"`
	Deadline   string `yaml:"deadline"`
	Duration   string `yaml:"duration"`
	Importance int    `yaml:"importance"`
}

// LoadFile reads and parses a YAML task file.
func LoadFile(path string) ([]Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task file: %w", err)
	}
	tasks, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tasks, nil
}

// Parse decodes task file contents. Entries without an explicit id get
// their 1-based position in the list.
func Parse(data []byte) ([]Task, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse task file: %w", err)
	}
	tasks := make([]Task, 0, len(file.Tasks))
	for i, entry := range file.Tasks {
		deadline, err := time.Parse(time.RFC3339, entry.Deadline)
		if err != nil {
			return nil, fmt.Errorf("task %d: bad deadline %q: %w", i+1, entry.Deadline, err)
		}
		duration, err := time.ParseDuration(entry.Duration)
		if err != nil {
			return nil, fmt.Errorf("task %d: bad duration %q: %w", i+1, entry.Duration, err)
		}
		id := int64(i + 1)
		if entry.ID != nil {
			id = *entry.ID
		}
		tasks = append(tasks, Task{
			ID:         id,
			Content:    entry.Content,
			Deadline:   deadline,
			Duration:   duration,
			Importance: entry.Importance,
		})
	}
	if err := ValidateAll(tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
