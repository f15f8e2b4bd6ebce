// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package zfssync converts zpool/zfs listing output from the command line.
// It reads tab-separated "zpool list -H -p" / "zfs list -H -p" output
// (from a file, or live via pkg/zfscmd) and converts it to one of: a CSV
// report, a state-store sync, or a graphite carbon submission.
package zfssync

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stratastor/dropboxd/config"
	"github.com/stratastor/dropboxd/pkg/graphite"
	"github.com/stratastor/dropboxd/pkg/zfscmd"
	"github.com/stratastor/dropboxd/pkg/zfsmodel"
	"github.com/stratastor/dropboxd/pkg/zfsparse"
)

// NewSyncCmd returns the "zfs-sync" command tree.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "zfs-sync",
		Short: "Parse zpool/zfs listing output and convert it to CSV, the state store, or graphite",
	}
	cmd.AddCommand(newPoolsCmd())
	cmd.AddCommand(newDatasetsCmd())
	return cmd
}

// poolSchema matches "zpool list -H -p -o name,size,free,alloc,cap,dedupratio,health".
var poolSchema = []zfsparse.Field{
	{Name: "name", Convert: zfsparse.String},
	{Name: "size", Convert: zfsparse.Size},
	{Name: "free", Convert: zfsparse.Size},
	{Name: "alloc", Convert: zfsparse.Size},
	{Name: "cap", Convert: zfsparse.Int},
	{Name: "dedupratio", Convert: zfsparse.Ratio},
	{Name: "health", Convert: zfsparse.String},
}

// datasetSchema matches "zfs list -H -p -o name,used,avail,refer,compressratio,type".
var datasetSchema = []zfsparse.Field{
	{Name: "name", Convert: zfsparse.String},
	{Name: "used", Convert: zfsparse.Size},
	{Name: "avail", Convert: zfsparse.Size},
	{Name: "refer", Convert: zfsparse.Size},
	{Name: "compressratio", Convert: zfsparse.Ratio},
	{Name: "type", Convert: zfsparse.String},
}

func openInput(ctx context.Context, file string, live []string) (io.Reader, error) {
	if len(live) > 0 {
		cfg := config.GetConfig()
		ex, err := zfscmd.New(false, config.NewLoggerConfig(cfg))
		if err != nil {
			return nil, err
		}
		out, err := ex.Run(ctx, live[0], live[1:]...)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(out), nil
	}
	if file == "" || file == "-" {
		return os.Stdin, nil
	}
	return os.Open(file)
}

func asString(m map[string]any, k string) string {
	v, _ := m[k].(string)
	return v
}

func asInt64(m map[string]any, k string) int64 {
	v, _ := m[k].(int64)
	return v
}

func asFloat(m map[string]any, k string) float64 {
	switch v := m[k].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func poolsFromRecords(host string, recs []map[string]any, now time.Time) []zfsmodel.Pool {
	pools := make([]zfsmodel.Pool, 0, len(recs))
	for _, r := range recs {
		pools = append(pools, zfsmodel.Pool{
			Host:       host,
			Name:       asString(r, "name"),
			Size:       asInt64(r, "size"),
			Free:       asInt64(r, "free"),
			Alloc:      asInt64(r, "alloc"),
			Cap:        int(asInt64(r, "cap")),
			DedupRatio: asFloat(r, "dedupratio"),
			Health:     asString(r, "health"),
			UpdatedAt:  now,
		})
	}
	return pools
}

func datasetsFromRecords(host string, recs []map[string]any, now time.Time) []zfsmodel.Dataset {
	datasets := make([]zfsmodel.Dataset, 0, len(recs))
	for _, r := range recs {
		datasets = append(datasets, zfsmodel.Dataset{
			Host:             host,
			Name:             asString(r, "name"),
			Type:             asString(r, "type"),
			Used:             asInt64(r, "used"),
			AvailNull:        r["avail"] == nil,
			Avail:            asInt64(r, "avail"),
			Refer:            asInt64(r, "refer"),
			CompressionRatio: asFloat(r, "compressratio"),
			UpdatedAt:        now,
		})
	}
	return datasets
}

func newPoolsCmd() *cobra.Command {
	var file, host, to string
	var live []string
	cmd := &cobra.Command{
		Use:   "pools",
		Short: "Convert \"zpool list -H -p\" output to csv, sql-sync, or graphite",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd.Context(), file, live)
			if err != nil {
				return err
			}
			recs, err := zfsparse.NewTabParser(poolSchema).ParseAll(in)
			if err != nil {
				return err
			}
			pools := poolsFromRecords(host, recs, time.Now())

			switch to {
			case "csv":
				return writePoolsCSV(pools)
			case "sql-sync":
				cfg := config.GetConfig()
				store, err := zfsmodel.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
				if err != nil {
					return err
				}
				defer store.Close()
				return store.SyncPools(host, pools, time.Now())
			case "graphite":
				cfg := config.GetConfig()
				sub, err := graphite.NewSubmitter(cfg.Graphite.Host, cfg.Graphite.Port, config.NewLoggerConfig(cfg))
				if err != nil {
					return err
				}
				samples := graphite.PoolSamples(time.Now().Unix(), host, pools)
				return sub.Submit(cmd.Context(), samples)
			default:
				return errUnknownFormat(to)
			}
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "path to captured zpool list output, or - for stdin")
	cmd.Flags().StringArrayVar(&live, "exec", nil, "run this command (e.g. zpool,list,-H,-p,-o,...) instead of reading a file")
	cmd.Flags().StringVar(&host, "host", "", "host name to attribute these pools to")
	cmd.Flags().StringVar(&to, "to", "csv", "output: csv, sql-sync, or graphite")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func newDatasetsCmd() *cobra.Command {
	var file, host, to string
	var live []string
	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "Convert \"zfs list -H -p\" output to csv, sql-sync, or graphite",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd.Context(), file, live)
			if err != nil {
				return err
			}
			recs, err := zfsparse.NewTabParser(datasetSchema).ParseAll(in)
			if err != nil {
				return err
			}
			datasets := datasetsFromRecords(host, recs, time.Now())

			switch to {
			case "csv":
				return writeDatasetsCSV(datasets)
			case "sql-sync":
				cfg := config.GetConfig()
				store, err := zfsmodel.Open(cfg.DB.URL, config.NewLoggerConfig(cfg))
				if err != nil {
					return err
				}
				defer store.Close()
				return store.SyncDatasets(host, datasets, time.Now())
			case "graphite":
				cfg := config.GetConfig()
				sub, err := graphite.NewSubmitter(cfg.Graphite.Host, cfg.Graphite.Port, config.NewLoggerConfig(cfg))
				if err != nil {
					return err
				}
				samples := graphite.DatasetSamples(time.Now().Unix(), host, datasets)
				return sub.Submit(cmd.Context(), samples)
			default:
				return errUnknownFormat(to)
			}
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "path to captured zfs list output, or - for stdin")
	cmd.Flags().StringArrayVar(&live, "exec", nil, "run this command (e.g. zfs,list,-H,-p,-o,...) instead of reading a file")
	cmd.Flags().StringVar(&host, "host", "", "host name to attribute these datasets to")
	cmd.Flags().StringVar(&to, "to", "csv", "output: csv, sql-sync, or graphite")
	_ = cmd.MarkFlagRequired("host")
	return cmd
}

func writePoolsCSV(pools []zfsmodel.Pool) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err := w.Write([]string{"host", "name", "size", "free", "alloc", "cap", "dedupratio", "health"}); err != nil {
		return err
	}
	for _, p := range pools {
		if err := w.Write([]string{
			p.Host, p.Name,
			itoa(p.Size), itoa(p.Free), itoa(p.Alloc), itoa(int64(p.Cap)),
			ftoa(p.DedupRatio), p.Health,
		}); err != nil {
			return err
		}
	}
	return nil
}

func writeDatasetsCSV(datasets []zfsmodel.Dataset) error {
	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err := w.Write([]string{"host", "name", "type", "used", "avail", "refer", "compressratio"}); err != nil {
		return err
	}
	for _, d := range datasets {
		if err := w.Write([]string{
			d.Host, d.Name, d.Type,
			itoa(d.Used), itoa(d.Avail), itoa(d.Refer), ftoa(d.CompressionRatio),
		}); err != nil {
			return err
		}
	}
	return nil
}
