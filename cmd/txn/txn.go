// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package txn exposes the transaction engine's persisted state on the
// command line: list, approve, reject, cancel, and list-files actions.
package txn

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/config"
	"github.com/stratastor/dropboxd/pkg/txn"
)

// NewTransactionCmd returns the "transaction" command tree.
func NewTransactionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transaction",
		Short: "Inspect and gate persisted transactions",
	}
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newApproveCmd())
	cmd.AddCommand(newRejectCmd())
	cmd.AddCommand(newCancelCmd())
	cmd.AddCommand(newListFilesCmd())
	return cmd
}

func openStore() (*txn.Store, error) {
	cfg := config.GetConfig()
	return txn.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List persisted transactions and their derived status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No records found")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%-36s  %-10s  %-10s  %-20s  %s\n",
					r.ID, r.TypeName, txn.DeriveStatus(r), r.Host, r.InPackageRef)
			}
			return nil
		},
	}
}

func newApproveCmd() *cobra.Command {
	var login string
	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.Get(args[0])
			if err != nil {
				return err
			}
			r.ApprovedByLogin = login
			return store.Put(r)
		},
	}
	cmd.Flags().StringVar(&login, "login", "", "approving user's login")
	_ = cmd.MarkFlagRequired("login")
	return cmd
}

func newRejectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a pending transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.Get(args[0])
			if err != nil {
				return err
			}
			r.ApprovedByLogin = txn.RejectedLogin
			return store.Put(r)
		},
	}
	return cmd
}

func newCancelCmd() *cobra.Command {
	var comment string
	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an unstarted transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if r.StartedAt != nil {
				return fmt.Errorf("transaction %s has already started, cannot cancel", r.ID)
			}
			now := time.Now()
			r.FinishedAt = &now
			r.Comment = comment
			return store.Put(r)
		},
	}
	cmd.Flags().StringVar(&comment, "comment", "canceled by operator", "cancellation reason")
	return cmd
}

func newListFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-files <id>",
		Short: "List the files recorded against a completed transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			files, err := store.Files(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Println("No records found")
				return nil
			}
			for _, f := range files {
				fmt.Printf("%10d  %5d:%-5d  %04o  %s\n", f.Size, f.UID, f.GID, f.Mode, f.Path)
			}
			return nil
		},
	}
}
