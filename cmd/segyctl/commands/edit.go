package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"example.com/segyfix/cmd/segyctl/internal/clierr"
	"example.com/segyfix/internal/common"
	"example.com/segyfix/internal/edit"
	"example.com/segyfix/internal/engine"
	"example.com/segyfix/internal/plan"
	"example.com/segyfix/internal/report"
)

func newEditCmd() *cobra.Command {
	var (
		planPath      string
		dryRun        bool
		outputDir     string
		changelogPath string
		auditPath     string
		concurrency   int
		progress      bool
	)

	cmd := &cobra.Command{
		Use:   "edit <path>",
		Short: "Apply a YAML edit plan to SEG-Y file(s)",
		Long: `Applies the edits declared in a plan file to a SEG-Y file or to every
SEG-Y file in a directory. Sample payloads are never modified; in-place
output goes through an atomic temp-file swap.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(planPath)
			if err != nil {
				if errors.Is(err, plan.ErrParse) {
					return clierr.Wrap(clierr.CodeUsage, "load plan", err)
				}
				return clierr.Wrap(clierr.CodeIO, "load plan", err)
			}
			if dryRun {
				p.DryRun = true
				p.OutputMode = edit.OutputDiscard
			}
			if outputDir != "" {
				p.OutputDir = outputDir
				if !p.DryRun {
					p.OutputMode = edit.OutputSeparateFolder
				}
				if err := p.Validate(); err != nil {
					return clierr.Wrap(clierr.CodeUsage, "plan", err)
				}
			}

			files, err := collectFiles(args[0])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Plan: %s (%d operations)\n", planPath, len(p.Edits))
			fmt.Fprintf(cmd.OutOrStdout(), "Files: %d\n", len(files))
			mode := "APPLY"
			if p.DryRun {
				mode = "DRY RUN"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Mode: %s\n\n", mode)

			opts := []engine.Option{engine.WithWorkers(concurrency)}

			var changelog *report.Changelog
			if changelogPath != "" {
				changelog, err = report.NewChangelog(changelogPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeIO, "open changelog", err)
				}
				opts = append(opts, engine.WithChangelog(changelog))
			}
			var audit *common.AuditLog
			if auditPath != "" && !p.DryRun {
				audit, err = common.CreateAuditLog(auditPath)
				if err != nil {
					return clierr.Wrap(clierr.CodeIO, "open audit log", err)
				}
				opts = append(opts, engine.WithAuditLog(audit))
			}

			metrics := common.NewMetrics()
			opts = append(opts, engine.WithMetrics(metrics))
			metrics.Start()
			var stopProgress func()
			if progress {
				stopProgress = common.StartProgressPrinter(cmd.ErrOrStderr(), metrics, 500*time.Millisecond)
			}

			// Cancellation at trace boundaries; the in-flight trace finishes
			// and the temp output is rolled back.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results := engine.New(p, opts...).Run(ctx, files)
			if stopProgress != nil {
				stopProgress()
			}
			metrics.Stop()

			if changelog != nil {
				if err := changelog.Close(); err != nil {
					return clierr.Wrap(clierr.CodeIO, "close changelog", err)
				}
			}
			if audit != nil {
				if err := audit.Close(); err != nil {
					return clierr.Wrap(clierr.CodeIO, "close audit log", err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), "=== Summary ===")
			var failures, skipped int
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s: %s (%d changes, %d traces, %.1fs)\n",
					r.File, r.Status, r.Changes, r.Traces, r.Duration.Seconds())
				if r.Message != "" && r.Status != engine.StatusSuccess {
					fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", r.Message)
				}
				switch r.Status {
				case engine.StatusFailure:
					failures++
				case engine.StatusSkipped:
					skipped++
				}
			}
			if changelogPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\nChangelog saved: %s\n", changelogPath)
			}

			if failures > 0 {
				return clierr.Newf(clierr.CodeIO, "%d file(s) failed", failures)
			}
			if skipped > 0 {
				return clierr.Newf(clierr.CodeValidation, "%d file(s) skipped by validation", skipped)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "c", "", "YAML edit plan (required)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate the plan without writing output")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "write edited copies into this directory")
	cmd.Flags().StringVar(&changelogPath, "changelog", "changelog.csv", "CSV changelog path")
	cmd.Flags().StringVar(&auditPath, "audit", "", "JSONL audit log path (enables undo)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 1, "files processed in parallel")
	cmd.Flags().BoolVar(&progress, "progress", false, "display streaming progress")
	cmd.MarkFlagRequired("plan")
	return cmd
}
