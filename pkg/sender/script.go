// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"fmt"
	"strings"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/stratastor/dropboxd/pkg/zfsurl"
)

// doitMagic is the argument an operator must pass to actually run the
// emitted script; absent it, every destructive command is prefixed with
// `echo` so a plain invocation is a safe dry run.
const doitMagic = "DOIT"

// Script renders the operator-runnable transport shell for p. It never
// executes anything itself; it only produces text for an operator to
// review and run.
func (p *Plan) Script() (string, error) {
	var b strings.Builder

	b.WriteString("#!/bin/sh\n")
	b.WriteString("# generated transport script: " + p.Source.Host + "/" + p.Source.Name +
		" -> " + p.DestHost + "/" + p.DestName + "\n")
	b.WriteString("set -e\n\n")
	b.WriteString("if [ \"$(id -u)\" != \"0\" ]; then\n  echo \"must run as root\" >&2\n  exit 1\nfi\n\n")
	b.WriteString(fmt.Sprintf("prefix=\"echo\"\nif [ \"$1\" = %q ]; then\n  prefix=\"\"\nfi\n\n", doitMagic))
	b.WriteString("if [ -z \"$prefix\" ]; then\n")
	b.WriteString("  printf 'about to execute the plan below against %s/%s. continue? [y/N] ' ")
	b.WriteString(shellquote.Join(p.DestHost, p.DestName) + "\n")
	b.WriteString("  read ans\n  case \"$ans\" in y|Y) ;; *) exit 1 ;; esac\nfi\n\n")

	if p.NoCommonSnapshot {
		b.WriteString("# refused: no common snapshot between source and an existing destination;\n")
		b.WriteString("# a replicated send would have to overwrite unrelated destination history.\n")
		return b.String(), nil
	}
	if p.NothingToSend {
		b.WriteString("# nothing to send: source has no snapshot newer than the common snapshot.\n")
		return b.String(), nil
	}

	if p.DestSnapshotsDropped > 0 {
		b.WriteString("$prefix zfs rollback -r " + shellquote.Join(p.DestHost+":"+p.DestName+"@"+p.SsFrom) + "\n")
	}

	sendArgs := []string{"zfs", "send"}
	if p.Sync == zfsurl.SyncReplicate || p.Sync == zfsurl.SyncReplicateForce {
		sendArgs = append(sendArgs, "-R")
	}
	if p.SsFrom != "" {
		sendArgs = append(sendArgs, "-I", p.SsFrom)
	}
	toSnap := p.Source.Name
	if len(p.SnapshotsToSend) > 0 {
		toSnap = p.SnapshotsToSend[len(p.SnapshotsToSend)-1].Name
	}
	sendArgs = append(sendArgs, toSnap)
	sendCmd := shellquote.Join(sendArgs...)

	recvArgs := []string{"zfs", "receive", "-v"}
	if p.Sync == zfsurl.SyncReplicateForce {
		recvArgs = append(recvArgs, "-F")
	}
	recvArgs = append(recvArgs, p.DestName)
	recvCmd := shellquote.Join(recvArgs...)

	if p.Source.Host == p.DestHost {
		b.WriteString(fmt.Sprintf("$prefix sh -c %s\n", shellquote.Join(sendCmd+" | "+recvCmd)))
		return b.String(), nil
	}

	pipeline := sendCmd + " | lz4 | ssh " + shellquote.Join(p.DestHost) +
		" 'lz4 -d | pv | " + recvCmd + "'"
	b.WriteString(fmt.Sprintf("$prefix sh -c %s\n", shellquote.Join(pipeline)))
	return b.String(), nil
}
