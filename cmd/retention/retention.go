// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package retention exposes the retention-policy evaluator as a standalone
// command for ad-hoc policy testing.
package retention

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/pkg/retention"
)

// NewRetentionCmd returns the "retention" command tree: a single "test"
// subcommand that parses a policy string and applies it to a list of
// sample ages (seconds before now), printing kept/dropped ages.
func NewRetentionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retention",
		Short: "Validate and test retention policies",
	}
	cmd.AddCommand(newTestCmd())
	return cmd
}

func newTestCmd() *cobra.Command {
	var ages []string

	cmd := &cobra.Command{
		Use:   "test <policy>",
		Short: "Apply a retention policy string to a set of sample ages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := retention.ParsePolicy(args[0])
			if err != nil {
				return fmt.Errorf("invalid policy: %w", err)
			}

			now := time.Now().Unix()
			samples := make([]retention.Sample[int64], 0, len(ages))
			for _, a := range ages {
				secs, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid age %q: %w", a, err)
				}
				samples = append(samples, retention.Sample[int64]{
					Timestamp: now - secs,
					Payload:   secs,
				})
			}

			kept, dropped := retention.Filter(policy, now, samples)

			fmt.Fprintf(os.Stdout, "kept (%d):\n", len(kept))
			for _, s := range kept {
				fmt.Fprintf(os.Stdout, "  age=%ds\n", s.Payload)
			}
			fmt.Fprintf(os.Stdout, "dropped (%d):\n", len(dropped))
			for _, s := range dropped {
				fmt.Fprintf(os.Stdout, "  age=%ds\n", s.Payload)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&ages, "age", nil, "sample age in seconds before now (repeatable)")
	return cmd
}
