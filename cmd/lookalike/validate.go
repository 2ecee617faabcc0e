package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/rupamthxt/lookalike/internal/store"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var snapshotPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a catalog and optionally write a normalized snapshot",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			src, err := sourceResolver(cfg)(cmd.Context(), cfg.Catalog.Path)
			if err != nil {
				return err
			}
			cat, err := store.LoadSource(cmd.Context(), src, cfg.Matching.ExpectedDimension)
			if err != nil {
				color.New(color.FgRed, color.Bold).Fprintf(cmd.ErrOrStderr(), "✗ %s is invalid\n", src)
				return err
			}

			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ %s: %d characters, dimension %d\n", src, cat.Len(), cat.Dim())
			fmt.Fprintf(cmd.OutOrStdout(), "  checksum %s\n", cat.Checksum())

			if snapshotPath != "" {
				if err := cat.SaveSnapshot(snapshotPath); err != nil {
					return fmt.Errorf("write snapshot: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  snapshot written to %s\n", snapshotPath)
			}
			return nil
		},
	}
	addMatchingFlags(cmd)
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Write the normalized catalog as a gob snapshot")
	return cmd
}
