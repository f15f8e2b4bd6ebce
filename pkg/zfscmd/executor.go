// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package zfscmd provides safe execution of read-only zpool/zfs listing
// commands (and the ssh/rsync subprocesses spawned by the snapshot sender
// and transfer transaction), with argument validation, timeouts, and
// structured logging. It never executes a mutating zpool/zfs command
// directly: the daemon's contract is to sync observed state and to emit
// operator-approved scripts, not to issue privileged ZFS operations itself.
package zfscmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/stratastor/logger"

	rerrors "github.com/stratastor/dropboxd/pkg/errors"
)

// dangerousChars are rejected outright in any argument to prevent shell
// metacharacter injection, even though commands are exec'd without a shell.
const dangerousChars = "&|><$`;{}"

// DefaultTimeout bounds any subprocess that doesn't specify its own.
const DefaultTimeout = 30 * time.Second

// Executor runs external commands (zpool, zfs, ssh, rsync) with validation,
// a timeout, and tagged logging. One Executor is safe for concurrent use.
type Executor struct {
	UseSudo bool
	Timeout time.Duration
	log     logger.Logger
}

// New creates an Executor that logs under the "zfscmd" tag.
func New(useSudo bool, logCfg logger.Config) (*Executor, error) {
	l, err := logger.NewTag(logCfg, "zfscmd")
	if err != nil {
		return nil, rerrors.Wrap(err, rerrors.CommandExecution)
	}
	return &Executor{UseSudo: useSudo, Timeout: DefaultTimeout, log: l}, nil
}

// Run executes name with args and returns combined stdout+stderr. Non-zero
// exit is reported as a FatalIO RodentError carrying the command's output
// for callers to inspect via "output" metadata.
func (e *Executor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if err := validate(name, args); err != nil {
		return nil, err
	}

	if _, ok := ctx.Deadline(); !ok {
		timeout := e.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmdArgs := append([]string{}, args...)
	binary := name
	if e.UseSudo {
		binary = "sudo"
		cmdArgs = append([]string{name}, cmdArgs...)
	}

	cmdLine := name + " " + strings.Join(args, " ")
	e.log.Debug("executing command", "cmd", cmdLine)

	cmd := exec.CommandContext(ctx, binary, cmdArgs...)
	cmd.Env = []string{}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			e.log.Error("command failed", "cmd", cmdLine, "exit_code", exitErr.ExitCode())
			return out.Bytes(), rerrors.NewCommandError(cmdLine, exitErr.ExitCode(), out.String())
		}
		e.log.Error("command failed to start", "cmd", cmdLine, "err", err)
		return out.Bytes(), rerrors.Wrap(err, rerrors.CommandExecution).WithMetadata("command", cmdLine)
	}

	return out.Bytes(), nil
}

func validate(name string, args []string) error {
	if name == "" {
		return rerrors.New(rerrors.CommandInvalidInput, "empty command")
	}
	if strings.ContainsAny(name, dangerousChars) {
		return rerrors.New(rerrors.CommandInvalidInput, "command contains invalid characters")
	}
	for _, a := range args {
		if strings.ContainsAny(a, dangerousChars) {
			return rerrors.New(rerrors.CommandInvalidInput,
				fmt.Sprintf("argument %q contains invalid characters", a))
		}
	}
	if len(args) > 256 {
		return rerrors.New(rerrors.CommandInvalidInput, "too many arguments")
	}
	return nil
}
