// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package fsstat exposes the filesystem-inventory engine on the command
// line: full update, fast update, merge, and duplicate removal against an
// inventory database.
package fsstat

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/config"
	"github.com/stratastor/dropboxd/pkg/inventory"
)

// NewFsStatCmd returns the "fs-stat" command tree.
func NewFsStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs-stat",
		Short: "Crawl, update, and maintain the filesystem-inventory table",
	}
	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newFastCmd())
	cmd.AddCommand(newMergeCmd())
	cmd.AddCommand(newRemoveDuplicatesCmd())
	return cmd
}

func openStore() (*inventory.Store, error) {
	cfg := config.GetConfig()
	return inventory.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
}

// newUpdateCmd runs a full InitialCrawl followed by DiscoverAdded over the
// given root.
func newUpdateCmd() *cobra.Command {
	var withIndex bool
	cmd := &cobra.Command{
		Use:   "update <root>",
		Short: "Perform an initial crawl of root, hashing every file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if withIndex {
				if err := store.EnsurePathIndex(cmd.Context()); err != nil {
					return err
				}
			}

			c := inventory.NewCrawler(store)
			if err := c.InitialCrawl(cmd.Context(), args[0]); err != nil {
				return err
			}
			return c.DiscoverAdded(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&withIndex, "with-index", false, "create the path index before crawling")
	return cmd
}

// newFastCmd runs FastUpdate followed by DiscoverAdded, the fast mode
// that avoids re-hashing unchanged files.
func newFastCmd() *cobra.Command {
	var withIndex bool
	cmd := &cobra.Command{
		Use:   "fast",
		Short: "Re-stat known paths, re-hashing only when size changed",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if withIndex {
				if err := store.EnsurePathIndex(cmd.Context()); err != nil {
					return err
				}
			}

			c := inventory.NewCrawler(store)
			if err := c.FastUpdate(cmd.Context()); err != nil {
				return err
			}
			return c.DiscoverAdded(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&withIndex, "with-index", false, "create the path index before updating")
	return cmd
}

// newMergeCmd imports another inventory database's rows into the
// configured store.
func newMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <other.sqlite>",
		Short: "Import another inventory database's rows into this one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			other, err := sql.Open("sqlite3", args[0])
			if err != nil {
				return err
			}
			defer other.Close()

			return store.MergeFrom(cmd.Context(), other)
		},
	}
}

func newRemoveDuplicatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-duplicates",
		Short: "Keep only the newest row per path",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RemoveDuplicates(context.Background()); err != nil {
				return err
			}
			fmt.Println("deduplicated fs_entries")
			return nil
		},
	}
}
