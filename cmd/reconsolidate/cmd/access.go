package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openclaw/reconsolidate/internal/access"
	"github.com/openclaw/reconsolidate/internal/extractor"
)

// newAccessCmd groups log-event/log-session/stats/dump under an explicit
// "access" parent; each is also registered as a top-level alias on the root
// command, matching the spec's flat CLI surface literally.
func newAccessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Access Store commands",
	}
	cmd.AddCommand(newLogEventCmd())
	cmd.AddCommand(newLogSessionCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newDumpCmd())
	return cmd
}

func openAccessStore() (*access.Store, error) {
	return access.Open(cfg.Paths.AccessStore, nil)
}

func newLogEventCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-event <query> [results-json]",
		Short: "Log a single access event",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := args[0]

			var results []access.ResultRecord
			if len(args) > 1 {
				if err := json.Unmarshal([]byte(args[1]), &results); err != nil {
					err := fmt.Errorf("parse results JSON: %w", err)
					printErrorJSON(cmd, err)
					return err
				}
			}

			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.LogEvent(cmd.Context(), query, results, "", 0); err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			return printJSON(cmd, map[string]any{"logged": query, "results": len(results)})
		},
	}
	return cmd
}

func newLogSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log-session [transcript] [session_id]",
		Short: "Extract access events from a raw transcript (best-effort)",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var transcript string
			if len(args) > 0 {
				transcript = args[0]
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					printErrorJSON(cmd, err)
					return err
				}
				transcript = string(data)
			}

			sessionID := ""
			if len(args) > 1 {
				sessionID = args[1]
			}

			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			var extracted []extractor.Extracted
			if parsed, ok := extractor.ExtractFromJSONArray([]byte(transcript)); ok {
				extracted = parsed
			} else {
				extracted = extractor.ExtractFromText(transcript)
			}

			count := 0
			for _, e := range extracted {
				results := make([]access.ResultRecord, 0, len(e.Results))
				for _, r := range e.Results {
					results = append(results, access.ResultRecord{File: r.File, Lines: r.Lines, Score: r.Score})
				}
				if err := store.LogEvent(cmd.Context(), e.Query, results, sessionID, e.Timestamp); err != nil {
					printErrorJSON(cmd, err)
					return err
				}
				count++
			}

			return printJSON(cmd, map[string]any{"extracted": count})
		},
	}
	return cmd
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show Access Store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			st, err := store.Stats(cmd.Context())
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			return printJSON(cmd, st)
		},
	}
	return cmd
}

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump [limit]",
		Short: "Dump recent access events, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit := 50
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					err := fmt.Errorf("invalid limit %q: %w", args[0], err)
					printErrorJSON(cmd, err)
					return err
				}
				limit = n
			}

			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			rows, err := store.Dump(cmd.Context(), limit)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			for _, row := range rows {
				if err := printJSONLine(cmd, row); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
