package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"example.com/segyfix/cmd/segyctl/internal/clierr"
	"example.com/segyfix/internal/common"
	"example.com/segyfix/internal/report"
	"example.com/segyfix/internal/validate"
)

func newValidateCmd() *cobra.Command {
	var (
		output   string
		pdfOut   string
		bounds   string
		outliers float64
	)

	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate SEG-Y file(s) for structural and coordinate sanity",
		Long: `Runs structure and binary-header checks on a file or every SEG-Y file in
a directory. --bounds enables the coordinate range check; --outliers enables
median/MAD outlier detection. Exits 1 when any check reports an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := validate.Config{
				CheckFileStructure: true,
				CheckBinaryHeader:  true,
			}
			if bounds != "" {
				b, err := parseBounds(bounds)
				if err != nil {
					return clierr.Wrap(clierr.CodeUsage, "parse --bounds", err)
				}
				cfg.CheckCoordinateRange = true
				cfg.Bounds = b
			}
			if cmd.Flags().Changed("outliers") {
				cfg.CheckCoordinateOutliers = true
				cfg.OutlierK = outliers
			}

			files, err := collectFiles(args[0])
			if err != nil {
				return err
			}

			var reports []report.FileReport
			sawErrors := false
			for _, path := range files {
				name := filepath.Base(path)
				fmt.Fprintf(cmd.OutOrStdout(), "Validating: %s\n", name)
				start := time.Now()
				findings, err := validate.Run(path, cfg)
				if err != nil {
					sawErrors = true
					reports = append(reports, report.FileReport{
						File: name, Status: "FAILURE", Message: err.Error(), Duration: time.Since(start),
					})
					fmt.Fprintf(cmd.OutOrStdout(), "  error: %v\n", err)
					continue
				}
				status := report.StatusOf(findings)
				if validate.HasErrors(findings) {
					sawErrors = true
				}
				reports = append(reports, report.FileReport{
					File:     name,
					Status:   status,
					Message:  fmt.Sprintf("%d findings", len(findings)),
					Findings: findings,
					Duration: time.Since(start),
				})
				fmt.Fprintf(cmd.OutOrStdout(), "  Result: %s (%d findings)\n", status, len(findings))
				for _, f := range findings {
					fmt.Fprintf(cmd.OutOrStdout(), "    [%s] %s (trace %s): %s\n", f.Severity, f.Kind, f.Scope(), f.Message)
					if f.Context != "" {
						fmt.Fprintf(cmd.OutOrStdout(), "        %s\n", f.Context)
					}
				}
			}

			if output == "" && len(files) > 1 {
				output = "validation_report.xlsx"
			}
			if output != "" {
				if err := report.WriteExcelReport(output, reports); err != nil {
					return clierr.Wrap(clierr.CodeIO, "write report", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "\nReport saved: %s\n", output)
			}
			if pdfOut != "" {
				hash := ""
				if len(files) == 1 {
					if h, _, err := common.Sha256OfFile(files[0]); err == nil {
						hash = h
					}
				}
				if err := report.WritePDFReport(reports, hash, pdfOut); err != nil {
					return clierr.Wrap(clierr.CodeIO, "write pdf", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "PDF saved: %s\n", pdfOut)
			}

			if sawErrors {
				return clierr.New(clierr.CodeValidation, "validation reported errors")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write an Excel validation report to this path")
	cmd.Flags().StringVar(&pdfOut, "pdf", "", "write a PDF validation report to this path")
	cmd.Flags().StringVar(&bounds, "bounds", "", "coordinate bounds as x_min,x_max,y_min,y_max")
	cmd.Flags().Float64Var(&outliers, "outliers", validate.DefaultOutlierK, "enable outlier detection with this MAD multiplier")
	return cmd
}

func parseBounds(s string) (*validate.Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("expected 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i+1, err)
		}
		vals[i] = v
	}
	b := &validate.Bounds{XMin: vals[0], XMax: vals[1], YMin: vals[2], YMax: vals[3]}
	if b.XMin > b.XMax || b.YMin > b.YMax {
		return nil, fmt.Errorf("min exceeds max")
	}
	return b, nil
}
