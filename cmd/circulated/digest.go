// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newDigestCmd(configPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Broadcast one note digest and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.Digest.WebhookURL == "" {
				return fmt.Errorf("digest.webhook_url is not configured")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			if rt.dispatcher.BroadcastDailyNote(ctx) {
				fmt.Println("digest sent")
			} else {
				fmt.Println("no digest sent")
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall run timeout")

	return cmd
}
