package cmd

import (
	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/cmd/config"
	"github.com/stratastor/dropboxd/cmd/fssync"
	"github.com/stratastor/dropboxd/cmd/fsstat"
	"github.com/stratastor/dropboxd/cmd/report"
	"github.com/stratastor/dropboxd/cmd/retention"
	"github.com/stratastor/dropboxd/cmd/serve"
	"github.com/stratastor/dropboxd/cmd/txn"
	"github.com/stratastor/dropboxd/cmd/version"
	"github.com/stratastor/dropboxd/cmd/zfssync"
)

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dropboxd",
		Short: "dropboxd: ZFS fleet and dropbox-monitoring daemon",
	}

	rootCmd.AddCommand(serve.NewServeCmd())
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(config.NewConfigCmd())
	rootCmd.AddCommand(retention.NewRetentionCmd())
	rootCmd.AddCommand(report.NewReportCmd())
	rootCmd.AddCommand(fsstat.NewFsStatCmd())
	rootCmd.AddCommand(fssync.NewFsSyncCmd())
	rootCmd.AddCommand(txn.NewTransactionCmd())
	rootCmd.AddCommand(zfssync.NewSyncCmd())

	return rootCmd
}
