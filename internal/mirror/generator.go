package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/openclaw/reconsolidate/internal/access"
)

// DefaultWindowDays is the lookback window used when none is configured.
const DefaultWindowDays = 14

// Generate builds a Report from the access store and, if sessionsDir
// exists, from recent session transcripts for tool-failure scanning.
func Generate(ctx context.Context, store *access.Store, sessionsDir string, windowDays int, now time.Time) (Report, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	since := now.Add(-time.Duration(windowDays) * 24 * time.Hour)

	events, err := store.LoadRecentEvents(ctx, float64(since.Unix()))
	if err != nil {
		return Report{}, fmt.Errorf("mirror: load recent events: %w", err)
	}

	report := Report{WindowDays: windowDays}
	if len(events) == 0 {
		return report, nil
	}

	chunks, err := store.LoadAllChunkEnergy(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("mirror: load chunk energy: %w", err)
	}
	chunksByKey := make(map[string]access.ChunkEnergy, len(chunks))
	for _, c := range chunks {
		chunksByKey[c.ChunkKey] = c
	}

	uniqueQueries := map[string]bool{}
	sessionsSearched := map[string]bool{}
	for _, e := range events {
		uniqueQueries[e.Query] = true
		if e.SessionID != "" {
			sessionsSearched[e.SessionID] = true
		}
	}

	report.TotalEvents = len(events)
	report.UniqueQueries = len(uniqueQueries)
	report.SessionsSearched = len(sessionsSearched)
	// The hot list ranks only chunks last accessed inside the window.
	var windowChunks []access.ChunkEnergy
	for _, c := range chunks {
		if c.LastAccessed >= float64(since.Unix()) {
			windowChunks = append(windowChunks, c)
		}
	}
	report.Hot = analyzeHot(windowChunks)
	report.Gaps = analyzeGaps(events)
	report.Friction = analyzeFriction(events)
	report.Resonance = analyzeResonance(events)
	report.Promotions = analyzePromotions(events, chunksByKey)

	if sessionsDir != "" {
		failures, err := scanToolFailures(sessionsDir, since)
		if err != nil {
			return Report{}, fmt.Errorf("mirror: scan tool failures: %w", err)
		}
		report.ToolFailures = failures
	}

	return report, nil
}

// Write writes the already-rendered content to outputPath unless dryRun, creating
// parent directories as needed.
func Write(content, outputPath string, dryRun bool) error {
	if dryRun {
		return nil
	}
	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mirror: create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("mirror: write output: %w", err)
	}
	return nil
}
