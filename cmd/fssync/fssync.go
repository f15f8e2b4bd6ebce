// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package fssync drives filesystem synchronization from the command line:
// report, script, or enact a named transaction plugin over a directory
// diff. It is the ad hoc, operator-driven counterpart to the scheduler's
// automatic package-change handling: given two directory samples, it
// reports what changed, prints the shell commands a plugin would run, or
// runs them
// immediately without going through the queued/approval transaction flow.
package fssync

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/pkg/txn"
	"github.com/stratastor/dropboxd/pkg/tree"
)

// NewFsSyncCmd returns the "fs-sync" command tree.
func NewFsSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs-sync",
		Short: "Report, script, or enact package-level filesystem changes",
	}
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newScriptCmd())
	cmd.AddCommand(newEnactCmd())
	return cmd
}

func sampleAndDiff(lhsRoot, rhsRoot string, onePerFile bool) (tree.DiffResult, error) {
	lhs, err := tree.Sample(lhsRoot)
	if err != nil {
		return tree.DiffResult{}, fmt.Errorf("sample lhs: %w", err)
	}
	defer lhs.Release()

	rhs, err := tree.Sample(rhsRoot)
	if err != nil {
		return tree.DiffResult{}, fmt.Errorf("sample rhs: %w", err)
	}
	defer rhs.Release()

	return tree.Diff(lhs.Packages(onePerFile), rhs.Packages(onePerFile)), nil
}

func newReportCmd() *cobra.Command {
	var onePerFile bool
	cmd := &cobra.Command{
		Use:   "report <lhs-root> <rhs-root>",
		Short: "Diff two directory samples and print added/removed/changed packages",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, err := sampleAndDiff(args[0], args[1], onePerFile)
			if err != nil {
				return err
			}
			if len(diff.Added)+len(diff.Removed)+len(diff.Changed) == 0 {
				fmt.Println("No records found")
				return nil
			}
			for _, p := range diff.Added {
				fmt.Printf("added\t%s\n", p.AbsPath())
			}
			for _, p := range diff.Removed {
				fmt.Printf("removed\t%s\n", p.AbsPath())
			}
			for _, pair := range diff.Changed {
				fmt.Printf("changed\t%s\n", pair.Path)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onePerFile, "one-per-file", false, "treat every file as its own package")
	return cmd
}

// newScriptCmd prints the shell commands a plugin's Operations would run
// for every added or changed package, without executing anything. Same
// review-before-action posture as report generate-script.
func newScriptCmd() *cobra.Command {
	var onePerFile bool
	var pluginName string
	cmd := &cobra.Command{
		Use:   "script <lhs-root> <rhs-root>",
		Short: "Print the commands the named plugin would run for each changed package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := txn.Lookup(pluginName)
			if err != nil {
				return err
			}

			diff, err := sampleAndDiff(args[0], args[1], onePerFile)
			if err != nil {
				return err
			}

			paths := changedPaths(diff)
			if len(paths) == 0 {
				fmt.Println("# no changed packages; nothing to do")
				return nil
			}
			for _, pv := range paths {
				ops, err := plugin.Operations(pv, map[string]any{})
				if err != nil {
					fmt.Printf("# %s: %v\n", pv.AbsPath, err)
					continue
				}
				for _, op := range ops {
					d, ok := op.(txn.Describer)
					if !ok {
						fmt.Printf("# %s: %T has no dry-run description\n", pv.AbsPath, op)
						continue
					}
					fmt.Println(d.Describe())
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onePerFile, "one-per-file", false, "treat every file as its own package")
	cmd.Flags().StringVar(&pluginName, "plugin", "", "transaction plugin to script ("+strings.Join(txn.Names(), ", ")+")")
	_ = cmd.MarkFlagRequired("plugin")
	return cmd
}

// newEnactCmd runs the named plugin's operations immediately for every
// added or changed package, bypassing the queued/approval transaction
// flow entirely. It is the operator-invoked counterpart to the
// scheduler's auto_approve path.
func newEnactCmd() *cobra.Command {
	var onePerFile bool
	var pluginName string
	cmd := &cobra.Command{
		Use:   "enact <lhs-root> <rhs-root>",
		Short: "Immediately run the named plugin's operations for each changed package",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			plugin, err := txn.Lookup(pluginName)
			if err != nil {
				return err
			}

			diff, err := sampleAndDiff(args[0], args[1], onePerFile)
			if err != nil {
				return err
			}

			ctx := context.Background()
			for _, pv := range changedPaths(diff) {
				if !plugin.CanEnqueue(pv, &txn.SQLPackage{}, map[string]any{}) {
					continue
				}
				ops, err := plugin.Operations(pv, map[string]any{})
				if err != nil {
					fmt.Printf("%s: %v\n", pv.AbsPath, err)
					continue
				}
				if err := applyAll(ctx, ops); err != nil {
					fmt.Printf("%s: %v\n", pv.AbsPath, err)
					continue
				}
				fmt.Printf("%s: done\n", pv.AbsPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&onePerFile, "one-per-file", false, "treat every file as its own package")
	cmd.Flags().StringVar(&pluginName, "plugin", "", "transaction plugin to enact ("+strings.Join(txn.Names(), ", ")+")")
	_ = cmd.MarkFlagRequired("plugin")
	return cmd
}

func changedPaths(diff tree.DiffResult) []txn.PackageView {
	views := make([]txn.PackageView, 0, len(diff.Added)+len(diff.Changed))
	for _, p := range diff.Added {
		views = append(views, txn.PackageView{AbsPath: p.AbsPath(), StableSince: p.StableSince})
	}
	for _, pair := range diff.Changed {
		views = append(views, txn.PackageView{AbsPath: pair.RHS.AbsPath(), StableSince: pair.RHS.StableSince})
	}
	return views
}

// applyAll runs ops in order, rolling back already-applied ones on the
// first failure, mirroring Transaction.Apply's compensating-action discipline
// without the persisted Record bookkeeping an ad hoc CLI run has no
// use for.
func applyAll(ctx context.Context, ops []txn.Operation) error {
	for i, op := range ops {
		if err := op.Apply(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = ops[j].Rollback(ctx)
			}
			return err
		}
	}
	return nil
}
