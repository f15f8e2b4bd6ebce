// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package report drives ad-hoc report generation from the command line:
// query-config, generate, generate-csv, and generate-script.
package report

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stratastor/dropboxd/config"
	"github.com/stratastor/dropboxd/pkg/dropbox"
	"github.com/stratastor/dropboxd/pkg/report"
	"github.com/stratastor/dropboxd/pkg/sender"
	"github.com/stratastor/dropboxd/pkg/zfsmodel"
	"github.com/stratastor/dropboxd/pkg/zfsurl"
)

// NewReportCmd returns the "report" command tree.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate reports and transport scripts from the ZFS state store",
	}
	cmd.AddCommand(newQueryConfigCmd())
	cmd.AddCommand(newGenerateCmd(false))
	cmd.AddCommand(newGenerateCSVCmd())
	cmd.AddCommand(newGenerateScriptCmd())
	return cmd
}

// newQueryConfigCmd prints a dropbox's resolved YAML configuration, the
// smallest useful report: operators use it to confirm how search_paths and
// transactions resolved before trusting the daemon's behavior.
func newQueryConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query-config <dropbox.yaml>",
		Short: "Print a dropbox's resolved configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := dropbox.Load(args[0])
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(db.Settings)
			if err != nil {
				return err
			}
			fmt.Printf("# resolved search paths: %v\n---\n%s", db.ResolvedSearchPaths(), string(out))
			return nil
		},
	}
}

func poolsReport(store *zfsmodel.Store, host string) (*report.Report, error) {
	r := report.New(
		report.Column{Name: "host", Type: report.TypeString},
		report.Column{Name: "pool", Type: report.TypeString},
		report.Column{Name: "size", Type: report.TypeInt, Reduce: report.NewSum()},
		report.Column{Name: "free", Type: report.TypeInt, Reduce: report.NewSum()},
		report.Column{Name: "cap", Type: report.TypeInt, Reduce: report.NewAvg()},
		report.Column{Name: "health", Type: report.TypeString, Reduce: report.NewDistinct()},
	)
	pools, err := store.PoolsWithFreeAtLeast(0, "")
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		if host != "" && p.Host != host {
			continue
		}
		r.AddRecord(p.Host, p.Name, p.Size, p.Free, p.Cap, p.Health)
	}
	return r, nil
}

func newGenerateCmd(csv bool) *cobra.Command {
	var host string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Render a TTY pool-inventory report from the ZFS state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			store, err := zfsmodel.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := poolsReport(store, host)
			if err != nil {
				return err
			}
			if len(r.Records) == 0 {
				fmt.Println(report.NoRecordsFound)
				return nil
			}
			os.Stdout.Write(r.TTY())
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "restrict to a single host")
	return cmd
}

func newGenerateCSVCmd() *cobra.Command {
	var host string
	var header bool
	cmd := &cobra.Command{
		Use:   "generate-csv",
		Short: "Render a CSV pool-inventory report from the ZFS state store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetConfig()
			store, err := zfsmodel.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			r, err := poolsReport(store, host)
			if err != nil {
				return err
			}
			if len(r.Records) == 0 {
				fmt.Println(report.NoRecordsFound)
				return nil
			}
			os.Stdout.Write(r.CSV(header))
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "restrict to a single host")
	cmd.Flags().BoolVar(&header, "header", true, "emit a header row")
	return cmd
}

// newGenerateScriptCmd computes a send/receive plan between a source
// zfs:// URL and a destination host/filesystem and prints the operator-
// runnable transport script. It never executes anything; it only prints
// the script for review.
func newGenerateScriptCmd() *cobra.Command {
	var destHost, destName string
	cmd := &cobra.Command{
		Use:   "generate-script <zfs://src-url>",
		Short: "Compute a minimal send/receive plan and emit its transport script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := zfsurl.Parse(args[0])
			if err != nil {
				return err
			}

			cfg := config.GetConfig()
			store, err := zfsmodel.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
			if err != nil {
				return err
			}
			defer store.Close()

			entity, err := store.LookupURL(u, true)
			if err != nil {
				return err
			}
			src, ok := entity.(*zfsmodel.Dataset)
			if !ok {
				return fmt.Errorf("source URL must resolve to a filesystem dataset")
			}

			planner := sender.New(store)
			plan, err := planner.Compute(src, destHost, destName, u.Query.Sync)
			if err != nil {
				return err
			}
			script, err := plan.Script()
			if err != nil {
				return err
			}
			fmt.Println(script)
			return nil
		},
	}
	cmd.Flags().StringVar(&destHost, "dest-host", "", "destination host")
	cmd.Flags().StringVar(&destName, "dest-name", "", "destination filesystem name")
	_ = cmd.MarkFlagRequired("dest-host")
	_ = cmd.MarkFlagRequired("dest-name")
	return cmd
}
