/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0.4.1", "0.4.1", 0},
		{"v0.4.1", "0.4.1", 0},
		{"0.4.1", "0.4.2", -1},
		{"0.4.1", "0.5.0", -1},
		{"1.0.0", "0.9.9", 1},
		{"0.10.0", "0.9.0", 1},
		{"1.2", "1.2.0", 0},
	}

	for _, tt := range tests {
		if got := compareVersions(tt.a, tt.b); got != tt.want {
			t.Errorf("compareVersions(%q, %q)=%d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTruncateNotesKeepsFirstLine(t *testing.T) {
	if got := truncateNotes("fix planner edge case\n\nlong body follows", 200); got != "fix planner edge case" {
		t.Fatalf("truncateNotes=%q", got)
	}

	long := "aaaaaaaaaaaaaaaaaaaa"
	if got := truncateNotes(long, 10); got != "aaaaaaa..." {
		t.Fatalf("truncateNotes=%q, want 10 chars with ellipsis", got)
	}
}

func TestFetchLatestParsesRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "application/vnd.github.v3+json" {
			t.Errorf("Accept=%q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tag_name":"v99.0.0","html_url":"https://example.com/rel","body":"big release\ndetails"}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	info, err := fetchLatest(ctx, srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchLatest: %v", err)
	}
	if info.LatestVersion != "99.0.0" {
		t.Fatalf("LatestVersion=%q, want 99.0.0", info.LatestVersion)
	}
	if !info.UpdateAvailable {
		t.Fatal("expected update to be available against v99.0.0")
	}
	if info.ReleaseNotes != "big release" {
		t.Fatalf("ReleaseNotes=%q", info.ReleaseNotes)
	}
	if info.CurrentVersion != Version {
		t.Fatalf("CurrentVersion=%q, want %q", info.CurrentVersion, Version)
	}
}

func TestFetchLatestRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	if _, err := fetchLatest(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
