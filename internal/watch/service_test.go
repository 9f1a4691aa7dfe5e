package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestHasActiveEntries(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    bool
	}{
		{"empty file", "", false},
		{"only heading", "# WATCHLIST\n", false},
		{"only comment", "<!-- add proteins to re-check -->\n", false},
		{"unchecked boxes only", "# WATCHLIST\n- [ ] nothing yet\n", false},
		{"accession listed", "# WATCHLIST\nP00533 — re-check annotations\n", true},
		{"checked box", "- [x] re-check EGFR_HUMAN\n", true},
		{"blank lines around entry", "\n\nP69905\n\n", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := hasActiveEntries(tc.content); got != tc.want {
				t.Errorf("hasActiveEntries(%q) = %v, want %v", tc.content, got, tc.want)
			}
		})
	}
}

func TestService_TriggersOnActiveWatchlist(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "WATCHLIST.md"), []byte("P00533 — re-check function\n"), 0o644)

	var calls atomic.Int32
	svc := NewService(dir, func(_ context.Context, content string) error {
		calls.Add(1)
		return nil
	}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = svc.Start(ctx); close(done) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && calls.Load() == 0 {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if calls.Load() == 0 {
		t.Fatal("onWatch was never called for an active watchlist")
	}
}

func TestService_SkipsEmptyWatchlist(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "WATCHLIST.md"), []byte("# WATCHLIST\n- [ ] nothing\n"), 0o644)

	var calls atomic.Int32
	svc := NewService(dir, func(_ context.Context, _ string) error {
		calls.Add(1)
		return nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_ = svc.Start(ctx)

	if n := calls.Load(); n != 0 {
		t.Errorf("onWatch called %d times for an inactive watchlist", n)
	}
}

func TestService_MissingFileIsQuiet(t *testing.T) {
	dir := t.TempDir()

	var calls atomic.Int32
	svc := NewService(dir, func(_ context.Context, _ string) error {
		calls.Add(1)
		return nil
	}, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_ = svc.Start(ctx)

	if n := calls.Load(); n != 0 {
		t.Errorf("onWatch called %d times with no WATCHLIST.md", n)
	}
}
