package cmd

import (
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/reconsolidate/internal/logging"
	"github.com/openclaw/reconsolidate/internal/mirror"
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Mirror Analyzer commands",
	}
	cmd.AddCommand(newMirrorGenerateCmd())
	return cmd
}

func newMirrorGenerateCmd() *cobra.Command {
	var dryRun bool
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the compressed access-pattern summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openAccessStore()
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}
			defer func() { _ = store.Close() }()

			now := time.Now()
			report, err := mirror.Generate(cmd.Context(), store, cfg.Paths.SessionsDir, cfg.Mirror.WindowDays, now)
			if err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			content := mirror.Render(report, now)

			if output == "" {
				output = filepath.Join(logging.DefaultStateDir(), "mirror.md")
			}

			if dryRun {
				_, err := cmd.OutOrStdout().Write([]byte(content))
				return err
			}

			if err := mirror.Write(content, output, false); err != nil {
				printErrorJSON(cmd, err)
				return err
			}

			statusWriter(cmd).Successf("wrote mirror report to %s", output)
			return printJSON(cmd, map[string]string{"written": output})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Emit to stdout without writing the output file")
	cmd.Flags().StringVar(&output, "output", "", "Output file path (defaults to ~/.reconsolidate/mirror.md)")

	return cmd
}
