// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// TransferMode is the rsync mode of a transfer transaction.
type TransferMode string

const (
	TransferMove TransferMode = "move"
	TransferCopy TransferMode = "copy"
	TransferSync TransferMode = "sync"
)

// TransferHistory is the subset of prior transfer outcomes CanEnqueue needs
// (the plugin is stateless; the scheduler supplies this from persisted
// Records of the same type for the same input package).
type TransferHistory struct {
	AnyRejected            bool
	CopySucceededForStable map[int64]bool // in_package_stable_since -> succeeded
	// RecentFailureCooldownActive is true when any transfer of this type
	// failed within the last transferCooldown, so CanEnqueue holds off a
	// retry that would likely hit the same transient condition.
	RecentFailureCooldownActive bool
}

// TransferPlugin implements the "transfer" transaction: rsync-over-SSH,
// modes move|copy|sync, optional keep_package_subdir, creating an
// out_package SQLPackage tracked against the destination.
type TransferPlugin struct {
	// History is injected by the scheduler per-call since CanEnqueue needs
	// cross-record state that the plugin itself does not persist.
	History func(pkg PackageView, cfg map[string]any) TransferHistory
}

func (TransferPlugin) Name() string { return "transfer" }

func (p TransferPlugin) CanEnqueue(pkg PackageView, sp *SQLPackage, cfg map[string]any) bool {
	var hist TransferHistory
	if p.History != nil {
		hist = p.History(pkg, cfg)
	}
	if hist.AnyRejected || hist.RecentFailureCooldownActive {
		return false
	}
	mode, _ := cfg["mode"].(string)
	if TransferMode(mode) == TransferCopy && hist.CopySucceededForStable[pkg.StableSince] {
		return false
	}
	return true
}

func (TransferPlugin) Operations(pkg PackageView, cfg map[string]any) ([]Operation, error) {
	mode, _ := cfg["mode"].(string)
	destRoot, _ := cfg["destination"].(string)
	host, _ := cfg["host"].(string) // "" = local destination
	keepSubdir, _ := cfg["keep_package_subdir"].(bool)

	if destRoot == "" {
		return nil, errors.New(errors.InvalidConfig, "transfer transaction requires destination")
	}

	src := pkg.AbsPath
	dest := destRoot
	if keepSubdir {
		dest = filepath.Join(destRoot, filepath.Base(src))
	}

	return []Operation{&transferOp{
		src: src, dest: dest, host: host,
		mode: TransferMode(mode), keepSubdir: keepSubdir,
	}}, nil
}

type transferOp struct {
	src, dest, host string
	mode            TransferMode
	keepSubdir      bool

	applied bool
}

// argv builds the rsync invocation: --delete only when mode==sync
// (or mode==move with keep_package_subdir, which needs an exact mirror of
// the moved subtree to then be safely removed at the source).
func (o *transferOp) argv() []string {
	args := []string{"rsync", "-a"}
	if o.mode == TransferSync || (o.mode == TransferMove && o.keepSubdir) {
		args = append(args, "--delete")
	}

	src := o.src
	if !strings.HasSuffix(src, "/") {
		src += "/"
	}
	dest := o.dest
	if o.host != "" {
		dest = o.host + ":" + dest
	}

	return append(args, src, dest)
}

// Describe renders the rsync invocation argv would build, for dry-run
// script output; it never runs the command.
func (o *transferOp) Describe() string {
	return shellquote.Join(o.argv()...)
}

func (o *transferOp) Apply(ctx context.Context) error {
	args := o.argv()
	cmdLine := shellquote.Join(args...)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errors.NewCommandError(cmdLine, exitCode(cmd), string(out))
	}
	o.applied = true

	if o.mode == TransferMove {
		rmArgs := []string{"rm", "-rf", o.src}
		rmCmd := exec.CommandContext(ctx, rmArgs[0], rmArgs[1:]...)
		if rmOut, rmErr := rmCmd.CombinedOutput(); rmErr != nil {
			return errors.NewCommandError(shellquote.Join(rmArgs...), exitCode(rmCmd), string(rmOut))
		}
	}
	return nil
}

// exitCode is safe against a command that never started (nil ProcessState).
func exitCode(cmd *exec.Cmd) int {
	if cmd.ProcessState == nil {
		return -1
	}
	return cmd.ProcessState.ExitCode()
}

// Rollback removes the copied destination. It cannot restore a moved
// source once the source-side rm has run; in that case rollback is a
// best-effort no-op, matching rsync/mv transports generally (there's no
// atomic two-phase move over a network transport).
func (o *transferOp) Rollback(ctx context.Context) error {
	if !o.applied || o.mode == TransferMove {
		return nil
	}
	args := []string{"rm", "-rf", o.dest}
	if o.host != "" {
		args = []string{"ssh", o.host, "rm", "-rf", o.dest}
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.NewCommandError(shellquote.Join(args...), exitCode(cmd), string(out))
	}
	return nil
}

func init() { Register(TransferPlugin{}) }

// transferCooldown bounds how quickly a just-failed transfer may be
// retried by the scheduler (kept here as the plugin's own policy constant
// rather than duplicated at call sites).
const transferCooldown = 30 * time.Second

// BuildTransferHistory derives a TransferHistory from every prior transfer
// Record for one input package, so the caller (the scheduler) never needs
// to know transferCooldown or the rejection/success predicates itself.
func BuildTransferHistory(records []*Record) TransferHistory {
	hist := TransferHistory{CopySucceededForStable: map[int64]bool{}}
	for _, r := range records {
		if r.ApprovedByLogin == RejectedLogin {
			hist.AnyRejected = true
		}
		if r.FinishedAt == nil {
			continue
		}
		if r.Error == "" {
			hist.CopySucceededForStable[r.InPackageStableSince] = true
		} else if time.Since(*r.FinishedAt) < transferCooldown {
			hist.RecentFailureCooldownActive = true
		}
	}
	return hist
}
