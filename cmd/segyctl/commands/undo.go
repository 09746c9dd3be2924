package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/segyfix/cmd/segyctl/internal/clierr"
	"example.com/segyfix/internal/common"
)

func newUndoCmd() *cobra.Command {
	var (
		in    string
		audit string
		out   string
	)

	cmd := &cobra.Command{
		Use:   "undo",
		Short: "Restore an edited file from its audit log",
		Long: `Replays an edit run's JSONL audit log in reverse against a copy of the
edited file, restoring the original header bytes. Entries whose current
bytes no longer match what the edit wrote are reported but still reverted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := common.ReadAuditLog(audit)
			if err != nil {
				return clierr.Wrap(clierr.CodeIO, "read audit", err)
			}
			if len(entries) == 0 {
				return clierr.New(clierr.CodeUsage, "audit log is empty")
			}

			editedHash, _, err := common.Sha256OfFile(in)
			if err != nil {
				return clierr.Wrap(clierr.CodeIO, "hash input", err)
			}
			if err := common.CopyFile(in, out); err != nil {
				return clierr.Wrap(clierr.CodeIO, "copy input", err)
			}

			f, err := os.OpenFile(out, os.O_RDWR, 0)
			if err != nil {
				return clierr.Wrap(clierr.CodeIO, "open output", err)
			}
			defer f.Close()

			mismatches := 0
			applied := 0
			for i := len(entries) - 1; i >= 0; i-- {
				entry := entries[i]
				before, err := entry.BeforeBytes()
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "skip entry %d: decode beforeHex failed: %v\n", i, err)
					continue
				}
				after, err := entry.AfterBytes()
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "skip entry %d: decode afterHex failed: %v\n", i, err)
					continue
				}
				if entry.Offset < 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "skip entry %d: invalid offset %d\n", i, entry.Offset)
					continue
				}
				mismatch := len(after) != len(before)
				if len(after) > 0 {
					buf := make([]byte, len(after))
					if _, err := f.ReadAt(buf, entry.Offset); err != nil || !bytes.Equal(buf, after) {
						mismatch = true
					}
				}
				if len(before) > 0 {
					if _, err := f.WriteAt(before, entry.Offset); err != nil {
						return clierr.Wrap(clierr.CodeIO, "write restore", err)
					}
				}
				if mismatch {
					mismatches++
				}
				applied++
			}

			if err := f.Sync(); err != nil {
				return clierr.Wrap(clierr.CodeIO, "sync output", err)
			}
			restoredHash, _, err := common.Sha256OfFile(out)
			if err != nil {
				return clierr.Wrap(clierr.CodeIO, "hash restored", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d entr(ies) to %s\n", applied, out)
			fmt.Fprintf(cmd.OutOrStdout(), "Edited SHA256: %s\n", editedHash)
			fmt.Fprintf(cmd.OutOrStdout(), "Restored SHA256: %s\n", restoredHash)
			if mismatches > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Warning: %d entr(ies) did not match the recorded edited bytes; original bytes written regardless.\n", mismatches)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "edited SEG-Y file")
	cmd.Flags().StringVar(&audit, "audit", "", "audit log (jsonl)")
	cmd.Flags().StringVar(&out, "out", "", "restored output file")
	cmd.MarkFlagRequired("in")
	cmd.MarkFlagRequired("audit")
	cmd.MarkFlagRequired("out")
	return cmd
}
