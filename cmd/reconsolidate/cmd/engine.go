package cmd

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/reconsolidate/internal/energy"
	"github.com/openclaw/reconsolidate/internal/metricsstore"
	"github.com/openclaw/reconsolidate/internal/reconsolidate"
	"github.com/openclaw/reconsolidate/internal/vectorstore"
)

func newEngineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Reconsolidation Engine commands",
	}
	cmd.AddCommand(newEngineRunCmd())
	cmd.AddCommand(newEngineMetricsCmd())
	cmd.AddCommand(newEngineEnergyCmd())
	return cmd
}

func newEngineRunCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one reconsolidation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accessStore, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = accessStore.Close() }()

			status := statusWriter(cmd)

			now := time.Now()
			energyMap, err := energy.Compute(cmd.Context(), accessStore, cfg.Energy.HalfLifeHours, now)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			status.Infof("computed energy for %d chunks", len(energyMap))

			vecStore, err := vectorstore.Open(cfg.Paths.VectorStore)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = vecStore.Close() }()

			eng := reconsolidate.New(vecStore)
			params := reconsolidate.Params{
				KeepRatio:         cfg.Engine.KeepRatio,
				PromotionStrength: cfg.Engine.PromotionStrength,
				DryRun:            dryRun,
			}

			result, err := eng.Run(cmd.Context(), energyMap, params)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			if result.Action == "none" {
				status.Warning(result.Error)
				return printJSON(cmd, resultToJSON(result))
			}

			if dryRun {
				status.Successf("dry run: %d/%d chunks would move (k=%d)", len(result.Promoted)+len(result.Demoted), result.NumChunks, result.K)
			} else {
				metricsPath := cfg.Paths.MetricsStore
				metricsDB, err := metricsstore.Open(metricsPath)
				if err != nil {
					printErrorJSON(cmd, err)
					return err
				}
				defer func() { _ = metricsDB.Close() }()

				stats, err := accessStore.Stats(cmd.Context())
				if err != nil {
					printErrorJSON(cmd, err)
					return err
				}

				detailsJSON, err := json.Marshal(map[string]any{
					"promoted": result.Promoted,
					"demoted":  result.Demoted,
				})
				if err != nil {
					printErrorJSON(cmd, err)
					return err
				}

				record := metricsstore.RunRecord{
					Timestamp:         float64(now.Unix()),
					NumChunks:         result.NumChunks,
					NumWithEnergy:     result.NumWithEnergy,
					KCoefficients:     result.K,
					KeepRatio:         result.KeepRatio,
					PromotionStrength: result.PromotionStrength,
					AvgSimBefore:      result.AvgBefore,
					AvgSimAfter:       result.AvgAfter,
					AvgDelta:          result.AvgDelta,
					MaxPromotedDelta:  result.MaxDelta,
					MaxDemotedDelta:   result.MinDelta,
					TotalAccessEvents: stats.TotalAccessEvents,
					Anomalies:         result.Anomalies,
					DetailsJSON:       string(detailsJSON),
				}
				if _, err := metricsDB.InsertRun(record); err != nil {
					printErrorJSON(cmd, err)
					return err
				}
				status.Successf("reconsolidated %d chunks, %d promoted, %d demoted", result.NumChunks, len(result.Promoted), len(result.Demoted))
			}

			return printJSON(cmd, resultToJSON(result))
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute and report without writing back or inserting metrics")
	return cmd
}

// resultToJSON flattens a reconsolidate.Result into a map so zero-value
// fields (Error, Hint) are omitted from the no-op cases' JSON output.
func resultToJSON(r reconsolidate.Result) map[string]any {
	out := map[string]any{"action": r.Action}
	if r.Error != "" {
		out["error"] = r.Error
	}
	if r.Hint != "" {
		out["hint"] = r.Hint
	}
	if r.NumChunks > 0 {
		out["num_chunks"] = r.NumChunks
	}
	if r.Action != "reconsolidated" {
		return out
	}
	out["n_with_energy"] = r.NumWithEnergy
	out["k"] = r.K
	out["keep_ratio"] = r.KeepRatio
	out["promotion_strength"] = r.PromotionStrength
	out["avg_before"] = r.AvgBefore
	out["avg_after"] = r.AvgAfter
	out["avg_delta"] = r.AvgDelta
	out["min_delta"] = r.MinDelta
	out["max_delta"] = r.MaxDelta
	out["anomalies"] = r.Anomalies
	out["promoted"] = r.Promoted
	out["demoted"] = r.Demoted
	return out
}

func newEngineMetricsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Show recent reconsolidation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsDB, err := metricsstore.Open(cfg.Paths.MetricsStore)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = metricsDB.Close() }()

			runs, err := metricsDB.RecentRuns(limit)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			for _, run := range runs {
				if err := printJSONLine(cmd, run); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show")
	return cmd
}

func newEngineEnergyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "energy",
		Short: "Show the current per-chunk energy map, hottest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			accessStore, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = accessStore.Close() }()

			energyMap, err := energy.Compute(cmd.Context(), accessStore, cfg.Energy.HalfLifeHours, time.Now())
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			for _, e := range energyMap.Sorted() {
				if err := printJSONLine(cmd, e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	return cmd
}
