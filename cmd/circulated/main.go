// Circulate - Personal Library Loan Tracking and Daily Note Digest
// Copyright 2026 J.D. White (jdwhite)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jdwhite/circulate

// circulated is the Circulate daemon and one-shot CLI. "serve" runs the
// supervised scheduler and HTTP surface; "sync" and "digest" fire a single
// job run and exit, which is what cron or systemd timers want.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
