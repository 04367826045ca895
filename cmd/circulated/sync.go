// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jdwhite/circulate/internal/models"
)

func newSyncCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one reconciliation pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			summary, err := rt.reconciler.Run(ctx)
			if err != nil {
				return fmt.Errorf("synchronization failed: %w", err)
			}

			result := models.SyncResult{
				Message: fmt.Sprintf("synchronized %d charges: %d added, %d updated, %d unchanged, %d returned",
					summary.TotalCharges, summary.Added, summary.Updated, summary.Unchanged, summary.Returned),
				Summary: summary,
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall run timeout")

	return cmd
}
