// Package commands wires the segyctl CLI: validate, edit, ebcdic, undo.
package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"example.com/segyfix/cmd/segyctl/internal/clierr"
	"example.com/segyfix/internal/common"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// NewRootCmd constructs the segyctl root command.
func NewRootCmd() *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:           "segyctl",
		Short:         "segyctl — batch inspector and header editor for SEG-Y files",
		Long:          "segyctl validates SEG-Y files for structural and coordinate sanity and applies declarative header edits without touching sample data.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			common.AttachLogFile(logFile, 50, 5, 30)
		},
	}
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "mirror log output to this rotating file")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the segyctl version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "segyctl %s (built %s)\n", version, buildDate)
		},
	})
	cmd.AddCommand(newValidateCmd())
	cmd.AddCommand(newEditCmd())
	cmd.AddCommand(newEbcdicCmd())
	cmd.AddCommand(newUndoCmd())

	return cmd
}

// segyExtensions are the file suffixes collected when a directory is given.
var segyExtensions = map[string]bool{
	".sgy":  true,
	".segy": true,
	".seg":  true,
}

// collectFiles expands a file-or-directory argument into SEG-Y file paths.
func collectFiles(path string) ([]string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeIO, "stat input", err)
	}
	if !st.IsDir() {
		return []string{path}, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeIO, "read input directory", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if segyExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, clierr.Newf(clierr.CodeUsage, "no SEG-Y files found in %s", path)
	}
	return files, nil
}
