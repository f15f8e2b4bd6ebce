// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package zfsurl implements the ZFSURL value object:
// zfs://<host>/<pool>[/<filesystem>[@<snapshot>]][?k=v(&k=v)*]
package zfsurl

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/stratastor/dropboxd/pkg/errors"
)

const (
	SyncReplicate      = "replicate"
	SyncReplicateForce = "replicate_force"
)

// QueryFields holds the recognized query parameters of a ZFSURL.
type QueryFields struct {
	Sync         string
	ChildrenOnly bool
}

// URL is the parsed form of a ZFSURL. Trailing records whether the address
// carried an explicit trailing slash: on a bare pool this distinguishes the
// pool itself from its mirror pool-filesystem; Parent also sets it to
// mark "this exact filesystem".
type URL struct {
	Host       string
	Pool       string
	Filesystem string
	Snapshot   string
	Trailing   bool
	Query      QueryFields
}

// Parse parses a raw ZFSURL string.
func Parse(raw string) (*URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New(errors.InvalidZFSURL, fmt.Sprintf("malformed url %q: %v", raw, err))
	}
	if u.Scheme != "zfs" {
		return nil, errors.New(errors.InvalidZFSURL, fmt.Sprintf("unsupported scheme %q", u.Scheme))
	}
	if u.Host == "" {
		return nil, errors.New(errors.InvalidZFSURL, "missing host")
	}

	out := &URL{Host: u.Host}

	path := strings.TrimPrefix(u.Path, "/")
	if path == "" {
		return nil, errors.New(errors.InvalidZFSURL, "missing pool")
	}

	out.Trailing = strings.HasSuffix(path, "/")
	path = strings.TrimSuffix(path, "/")

	segs := strings.SplitN(path, "/", 2)
	out.Pool = segs[0]
	if out.Pool == "" {
		return nil, errors.New(errors.InvalidZFSURL, "empty pool segment")
	}

	if len(segs) == 2 && segs[1] != "" {
		fsPart := segs[1]
		if idx := strings.Index(fsPart, "@"); idx >= 0 {
			out.Filesystem = fsPart[:idx]
			out.Snapshot = fsPart[idx+1:]
		} else {
			out.Filesystem = fsPart
		}
	}

	q := u.Query()
	out.Query.Sync = q.Get("sync")
	if out.Query.Sync != "" && out.Query.Sync != SyncReplicate && out.Query.Sync != SyncReplicateForce {
		return nil, errors.New(errors.InvalidZFSURL, fmt.Sprintf("invalid sync value %q", out.Query.Sync))
	}
	out.Query.ChildrenOnly = q.Get("children_only") == "1"

	return out, nil
}

// Name returns the dataset name this URL addresses, e.g. "poolA/fs/sub@snap".
func (u *URL) Name() string {
	name := u.Pool
	if u.Filesystem != "" {
		name = name + "/" + u.Filesystem
	}
	if u.Snapshot != "" {
		name = name + "@" + u.Snapshot
	}
	return name
}

// SnapshotName returns the snapshot component, or "" if this URL does not
// address a snapshot.
func (u *URL) SnapshotName() string {
	return u.Snapshot
}

// IsPoolFilesystem reports whether this URL addresses a pool's own mirror
// dataset rather than the pool itself.
func (u *URL) IsPoolFilesystem() bool {
	return u.Filesystem == "" && u.Trailing
}

// Parent returns the URL of the containing filesystem. For a snapshot this
// is the exact filesystem it was taken of; for a nested filesystem it is one
// path component up; for a top-level filesystem or the pool-filesystem
// itself, it is the pool-filesystem form of the same pool.
func (u *URL) Parent() *URL {
	parent := &URL{Host: u.Host, Pool: u.Pool, Trailing: true}

	if u.Snapshot != "" {
		parent.Filesystem = u.Filesystem
		return parent
	}

	if u.Filesystem == "" {
		return parent
	}

	idx := strings.LastIndex(u.Filesystem, "/")
	if idx < 0 {
		return parent
	}
	parent.Filesystem = u.Filesystem[:idx]
	return parent
}

// String reconstructs the canonical ZFSURL form.
func (u *URL) String() string {
	var b strings.Builder
	b.WriteString("zfs://")
	b.WriteString(u.Host)
	b.WriteString("/")
	b.WriteString(u.Pool)

	if u.Filesystem != "" {
		b.WriteString("/")
		b.WriteString(u.Filesystem)
	}
	if u.Snapshot != "" {
		b.WriteString("@")
		b.WriteString(u.Snapshot)
	} else if u.Trailing {
		b.WriteString("/")
	}

	q := url.Values{}
	if u.Query.Sync != "" {
		q.Set("sync", u.Query.Sync)
	}
	if u.Query.ChildrenOnly {
		q.Set("children_only", "1")
	}
	if enc := q.Encode(); enc != "" {
		b.WriteString("?")
		b.WriteString(enc)
	}

	return b.String()
}
