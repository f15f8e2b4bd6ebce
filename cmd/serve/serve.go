// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package serve

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sevlyar/go-daemon"
	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/config"
	"github.com/stratastor/dropboxd/internal/constants"
	"github.com/stratastor/dropboxd/pkg/dropbox"
	"github.com/stratastor/dropboxd/pkg/lifecycle"
	"github.com/stratastor/dropboxd/pkg/scheduler"
)

var detached bool

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dropboxd daemon",
		Run:   runServe,
	}

	cmd.Flags().BoolVarP(&detached, "detach", "d", false, "Run as a daemon")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.GetConfig()
	pidFile := constants.DropboxdPIDFile
	if err := lifecycle.EnsureSingleInstance(pidFile); err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}

	if detached || cfg.Server.Daemonize {
		dctx := &daemon.Context{
			PidFileName: pidFile,
			PidFilePerm: 0644,
			WorkDir:     "/",
			Umask:       027,
			Args:        []string{"dropboxd", "serve"},
		}

		d, err := dctx.Reborn()
		if err != nil {
			fmt.Printf("Failed to start daemon: %v\n", err)
			os.Exit(1)
		}

		if d != nil {
			fmt.Println("dropboxd is running as a daemon")
			return
		}
		defer dctx.Release()
	}

	startScheduler(cfg)
}

// startScheduler builds the Finder over the configured search roots and
// launches the scheduler, wiring signal-driven shutdown through
// pkg/lifecycle.
func startScheduler(cfg *config.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lifecycle.RegisterContextCanceller(cancel)

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	finder := dropbox.NewFinder(cfg.Search.Paths, cfg.Search.MaxDirectoryDepth, cfg.Search.ConfigFileGlob)
	if _, _, _, err := finder.Update(false); err != nil {
		fmt.Printf("initial dropbox discovery failed: %v\n", err)
	}

	sched, err := scheduler.New(schedulerConfig(host, cfg), finder)
	if err != nil {
		fmt.Printf("Failed to build scheduler: %v\n", err)
		os.Exit(1)
	}

	lifecycle.RegisterShutdownHook(func() {
		fmt.Println("Shutting down scheduler")
		if err := sched.Stop(); err != nil {
			fmt.Printf("Error during scheduler shutdown: %v\n", err)
		}
	})

	lifecycle.RegisterReloadHook(func() {
		fmt.Println("Re-discovering dropbox configurations")
		if _, _, _, err := finder.Update(false); err != nil {
			fmt.Printf("Dropbox re-discovery failed: %v\n", err)
		}
	})

	go lifecycle.HandleSignals(ctx)

	fmt.Println("Starting dropboxd scheduler")
	if err := sched.Start(ctx); err != nil {
		fmt.Printf("Failed to start scheduler: %v\n", err)
		os.Exit(1)
	}

	<-ctx.Done()
}

func schedulerConfig(host string, cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Host:                   host,
		DSN:                    cfg.DB.URL,
		LogConfig:              config.NewLoggerConfig(cfg),
		PrivilegedGroup:        cfg.Authentication.PrivilegedGroup,
		AuthCacheTTL:           parseDuration(cfg.Authentication.CacheTTL, constants.DefaultAuthCacheTTL),
		CheckDropboxesEvery:    parseDuration(cfg.Check.DropboxesEvery, constants.DefaultCheckDropboxesEvery),
		CheckPackagesEvery:     parseDuration(cfg.Check.PackagesEvery, constants.DefaultCheckPackagesEvery),
		CheckTransactionsEvery: parseDuration(cfg.Check.TransactionsEvery, constants.DefaultCheckTransactionsEvery),
		NumUpdateThreads:       cfg.Threads.NumUpdateThreads,
		NumOperationThreads:    cfg.Threads.NumOperationThreads,
	}
}

func parseDuration(value, fallback string) time.Duration {
	if value == "" {
		value = fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}
