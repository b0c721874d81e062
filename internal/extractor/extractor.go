package extractor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/openclaw/reconsolidate/internal/access"
)

// Extractor scans a session transcript directory and feeds every
// memory_search call it finds into an access.Store, skipping sessions
// already marked processed.
type Extractor struct {
	store       *access.Store
	sessionsDir string
	log         *slog.Logger
}

// New creates an Extractor over sessionsDir, backed by store.
func New(store *access.Store, sessionsDir string, log *slog.Logger) *Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &Extractor{store: store, sessionsDir: sessionsDir, log: log}
}

// Run scans the session directory once. When reprocess is true, every
// session is re-extracted regardless of its watermark (used by --all /
// --backfill); otherwise only unprocessed sessions are ingested.
func (e *Extractor) Run(ctx context.Context, reprocess bool) (Summary, error) {
	var summary Summary

	entries, err := os.ReadDir(e.sessionsDir)
	if err != nil {
		return summary, fmt.Errorf("read sessions directory %s: %w", e.sessionsDir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	summary.SessionsScanned = len(files)

	for _, name := range files {
		sessionID := strings.TrimSuffix(name, ".jsonl")

		if !reprocess {
			processed, err := e.store.IsSessionProcessed(ctx, sessionID)
			if err != nil {
				return summary, err
			}
			if processed {
				summary.SessionsSkipped++
				continue
			}
		}

		count, err := e.extractOne(ctx, filepath.Join(e.sessionsDir, name), sessionID)
		if err != nil {
			e.log.Warn("session extraction failed", slog.String("session", sessionID), slog.String("error", err.Error()))
			continue
		}

		if err := e.store.MarkSessionProcessed(ctx, sessionID, count); err != nil {
			return summary, err
		}

		if count > 0 {
			summary.SessionsNew++
			summary.EventsExtracted += count
		}
	}

	return summary, nil
}

// extractOne parses and logs every memory_search call in one session file.
func (e *Extractor) extractOne(ctx context.Context, path, sessionID string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	calls, err := ExtractSession(scanner)
	if err != nil {
		return 0, err
	}

	for _, call := range calls {
		results := make([]access.ResultRecord, 0, len(call.Results))
		for _, r := range call.Results {
			results = append(results, access.ResultRecord{File: r.File, Lines: r.Lines, Score: r.Score})
		}
		if err := e.store.LogEvent(ctx, call.Query, results, sessionID, call.Timestamp); err != nil {
			return 0, err
		}
	}

	return len(calls), nil
}
