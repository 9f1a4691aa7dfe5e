// Package watch provides a periodic background check that runs the agent
// against WATCHLIST.md when the file contains active entries, e.g. proteins
// whose annotations should be re-checked.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// OnWatchFunc is called with the WATCHLIST.md content when active entries are found.
type OnWatchFunc func(ctx context.Context, content string) error

// Service runs a periodic check of WATCHLIST.md.
type Service struct {
	workspace string
	onWatch   OnWatchFunc
	interval  time.Duration
}

// NewService creates a watch Service.
// interval defaults to 30 minutes if zero.
func NewService(workspace string, onWatch OnWatchFunc, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	return &Service{
		workspace: workspace,
		onWatch:   onWatch,
		interval:  interval,
	}
}

// Start runs the watch loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("watch: started", "interval", s.interval)

	for {
		select {
		case <-ticker.C:
			s.check(ctx)
		case <-ctx.Done():
			slog.Info("watch: stopped")
			return ctx.Err()
		}
	}
}

func (s *Service) check(ctx context.Context) {
	path := filepath.Join(s.workspace, "WATCHLIST.md")
	data, err := os.ReadFile(path)
	if err != nil {
		// File not found is normal — nothing is being watched.
		return
	}

	content := string(data)
	if !hasActiveEntries(content) {
		return
	}

	slog.Info("watch: active entries found, running agent")
	if s.onWatch != nil {
		if err := s.onWatch(ctx, content); err != nil {
			slog.Error("watch: agent error", "err", err)
		}
	}
}

// hasActiveEntries reports whether WATCHLIST.md has at least one line of real
// content. Blank lines, HTML comments, unchecked checkboxes, and markdown
// headings do not count.
func hasActiveEntries(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "<!--") {
			continue
		}
		if strings.HasPrefix(trimmed, "- [ ]") {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		// Found a real line (checked box, accession, prose, …).
		return true
	}
	return false
}
