package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/openclaw/reconsolidate/internal/access"
	"github.com/openclaw/reconsolidate/internal/extractor"
)

func newExtractCmd() *cobra.Command {
	var all bool
	var backfill bool
	var watch bool
	var heuristicFile string

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract access events from session transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			if heuristicFile != "" {
				return runHeuristicExtract(cmd, store, heuristicFile)
			}

			ex := extractor.New(store, cfg.Paths.SessionsDir, nil)

			if watch {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				statusWriter(cmd).Infof("watching %s for new sessions", cfg.Paths.SessionsDir)
				if err := ex.Watch(ctx); err != nil && ctx.Err() == nil {
					printErrorJSON(cmd, err)
					return err
				}
				statusWriter(cmd).Success("stopped watching")
				return nil
			}

			summary, err := ex.Run(cmd.Context(), all || backfill)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			return printJSON(cmd, summary)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Reprocess every session, including already-processed ones")
	cmd.Flags().BoolVar(&backfill, "backfill", false, "Alias for --all")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stay resident, extracting new/modified sessions as they settle")
	cmd.Flags().StringVar(&heuristicFile, "heuristic", "", "Best-effort free-form extraction from a single transcript file")

	return cmd
}

// runHeuristicExtract reads one transcript file and applies the best-effort
// free-form extraction path, gated behind --heuristic since it has no
// structural guarantees the way the session-directory path does.
func runHeuristicExtract(cmd *cobra.Command, store *access.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		err := fmt.Errorf("read transcript %s: %w", path, err)
		printErrorJSON(cmd, err)
		return err
	}

	extracted := extractor.ExtractFromText(string(data))

	count := 0
	for _, e := range extracted {
		results := make([]access.ResultRecord, 0, len(e.Results))
		for _, r := range e.Results {
			results = append(results, access.ResultRecord{File: r.File, Lines: r.Lines, Score: r.Score})
		}
		if err := store.LogEvent(cmd.Context(), e.Query, results, "", e.Timestamp); err != nil {
			printErrorJSON(cmd, err)
			return err
		}
		count++
	}

	return printJSON(cmd, map[string]any{"sessions_scanned": 1, "events_extracted": count})
}
