/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestFSStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewFSStore(FSConfig{RootDir: root}, zerolog.Nop())
	ctx := context.Background()

	if err := store.CheckAccess(ctx); err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}

	key := "plans/2026/03/skuld-plan-2026-03-14-release-crunch.json"
	payload := []byte(`{"run_id":"7f9c24e5"}`)

	if err := store.Put(ctx, key, payload, "application/json"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Get = %q, want %q", got, payload)
	}

	wantPath := filepath.Join(root, filepath.FromSlash(key))
	if store.URL(key) != wantPath {
		t.Errorf("URL = %q, want %q", store.URL(key), wantPath)
	}
	if _, err := os.Stat(wantPath); err != nil {
		t.Errorf("stored object missing on disk: %v", err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, key); err == nil {
		t.Error("Get succeeded after Delete")
	}

	// Deleting a missing object is not an error.
	if err := store.Delete(ctx, key); err != nil {
		t.Errorf("Delete of missing object: %v", err)
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	store := NewFSStore(FSConfig{RootDir: t.TempDir()}, zerolog.Nop())
	ctx := context.Background()

	for _, key := range []string{"", "../outside.json", "a/../../outside.json", "/etc/passwd"} {
		if err := store.Put(ctx, key, []byte("x"), ""); err == nil {
			t.Errorf("Put(%q) succeeded, want error", key)
		}
		if _, err := store.Get(ctx, key); err == nil {
			t.Errorf("Get(%q) succeeded, want error", key)
		}
	}
}

func TestFSStoreCheckAccessErrors(t *testing.T) {
	ctx := context.Background()

	store := NewFSStore(FSConfig{RootDir: filepath.Join(t.TempDir(), "missing")}, zerolog.Nop())
	if err := store.CheckAccess(ctx); err == nil {
		t.Error("CheckAccess succeeded on missing root")
	}

	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	store = NewFSStore(FSConfig{RootDir: file}, zerolog.Nop())
	if err := store.CheckAccess(ctx); err == nil {
		t.Error("CheckAccess succeeded on non-directory root")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	store, err := New(ctx, Config{FS: FSConfig{RootDir: t.TempDir()}}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := store.(*FSStore); !ok {
		t.Errorf("default backend = %T, want *FSStore", store)
	}

	if _, err := New(ctx, Config{Backend: "tape"}, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}

	if _, err := New(ctx, Config{Backend: "s3"}, zerolog.Nop()); err == nil {
		t.Error("expected error for s3 backend without bucket")
	}
}
