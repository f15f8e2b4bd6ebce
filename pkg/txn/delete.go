// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"fmt"
	"os"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// DeletePlugin implements the "delete" transaction: enqueue once the
// package has been stable for at least AfterBeingStableFor, then run a
// single (non-compensatable) delete operation.
type DeletePlugin struct{}

func (DeletePlugin) Name() string { return "delete" }

func (DeletePlugin) CanEnqueue(pkg PackageView, sp *SQLPackage, cfg map[string]any) bool {
	after, _ := cfg["after_being_stable_for"].(time.Duration)
	return time.Now().Unix()-pkg.StableSince >= int64(after.Seconds())
}

func (DeletePlugin) Operations(pkg PackageView, cfg map[string]any) ([]Operation, error) {
	return []Operation{&deleteOp{path: pkg.AbsPath}}, nil
}

type deleteOp struct {
	path    string
	removed bool
}

// Describe renders the rm Apply would perform, for dry-run script output.
func (o *deleteOp) Describe() string {
	return fmt.Sprintf("rm -rf %s", shellquote.Join(o.path))
}

func (o *deleteOp) Apply(ctx context.Context) error {
	if err := os.RemoveAll(o.path); err != nil {
		return errors.Wrap(err, errors.FSError)
	}
	o.removed = true
	return nil
}

// Rollback cannot restore a deleted path; delete is documented as
// the one operation with no compensation.
func (o *deleteOp) Rollback(ctx context.Context) error { return nil }

func init() { Register(DeletePlugin{}) }
