// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// MovePlugin implements the "move" transaction: in-filesystem relocation
// to a path computed from a stat-time field via a Y/M/D/H/MIN placeholder
// template.
//
// The stat-derived time is formatted in local time, not UTC: the rendered
// destination path is operator-facing and should read naturally in the
// deployment's own timezone. See DESIGN.md.
type MovePlugin struct{}

func (MovePlugin) Name() string { return "move" }

// CanEnqueue always returns true. This permits repeated moves of a
// re-discovered destination; prevention is left to upstream re-discovery
// in the tree.
func (MovePlugin) CanEnqueue(pkg PackageView, sp *SQLPackage, cfg map[string]any) bool {
	return true
}

func (MovePlugin) Operations(pkg PackageView, cfg map[string]any) ([]Operation, error) {
	field, _ := cfg["time_field"].(string)
	template, _ := cfg["destination_template"].(string)
	if template == "" {
		return nil, errors.New(errors.InvalidConfig, "move transaction requires destination_template")
	}

	info, err := os.Stat(pkg.AbsPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.FSError)
	}
	t := statTime(info, field)
	dest := RenderDateTemplate(template, t)

	return []Operation{&moveOp{src: pkg.AbsPath, dest: dest}}, nil
}

func statTime(info os.FileInfo, field string) time.Time {
	switch field {
	case "ctime":
		if ctime, _, ok := platformStatTimes(info); ok {
			return ctime
		}
	case "atime":
		if _, atime, ok := platformStatTimes(info); ok {
			return atime
		}
	}
	return info.ModTime()
}

// RenderDateTemplate substitutes Y/M/D/H/MIN placeholders in template with
// t's components in t's own location; it does not convert t. Stat-derived
// times from statTime are already in local time.
func RenderDateTemplate(template string, t time.Time) string {
	r := strings.NewReplacer(
		"MIN", fmt.Sprintf("%02d", t.Minute()),
		"Y", fmt.Sprintf("%04d", t.Year()),
		"M", fmt.Sprintf("%02d", int(t.Month())),
		"D", fmt.Sprintf("%02d", t.Day()),
		"H", fmt.Sprintf("%02d", t.Hour()),
	)
	return r.Replace(template)
}

type moveOp struct {
	src, dest string
}

// Describe renders the rename Apply would perform, for dry-run script
// output.
func (o *moveOp) Describe() string {
	return fmt.Sprintf("mkdir -p %s && mv %s",
		shellquote.Join(filepath.Dir(o.dest)), shellquote.Join(o.src, o.dest))
}

func (o *moveOp) Apply(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(o.dest), 0755); err != nil {
		return errors.Wrap(err, errors.FSError)
	}
	if err := os.Rename(o.src, o.dest); err != nil {
		return errors.Wrap(err, errors.FSError)
	}
	return nil
}

func (o *moveOp) Rollback(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(o.src), 0755); err != nil {
		return errors.Wrap(err, errors.FSError)
	}
	return os.Rename(o.dest, o.src)
}

func init() { Register(MovePlugin{}) }
