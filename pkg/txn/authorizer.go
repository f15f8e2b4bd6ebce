// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"context"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Token is one of the authorization outcomes.
type Token string

const (
	TokenOK        Token = "OK"
	TokenWait      Token = "WAIT"
	TokenRejected  Token = "REJECTED"
	TokenFailure   Token = "FAILURE"
	TokenNotNeeded Token = "NOT_NEEDED"
)

// idGroupsPattern matches a group name inside parentheses in `id` output,
// e.g. "4(adm)" or "1001(dropbox-operators)".
var idGroupsPattern = regexp.MustCompile(`\((\w[\w.-]*)\)`)

// idCacheEntry is one memoized `id <login>` parse.
type idCacheEntry struct {
	groups    map[string]bool
	resolved  bool
	expiresAt time.Time
}

// Authorizer resolves group membership via the platform `id` command,
// caching results for TTL. The cache is process-wide and lock-guarded to
// serialize subprocess spawns.
type Authorizer struct {
	mu    sync.Mutex
	cache map[string]*idCacheEntry
	ttl   time.Duration

	// runID is overridable in tests to avoid spawning a real `id` process.
	runID func(ctx context.Context, login string) (string, error)
}

// NewAuthorizer creates an Authorizer caching `id` results for ttl
// (default 60s).
func NewAuthorizer(ttl time.Duration) *Authorizer {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Authorizer{cache: map[string]*idCacheEntry{}, ttl: ttl, runID: runIDCommand}
}

func runIDCommand(ctx context.Context, login string) (string, error) {
	out, err := exec.CommandContext(ctx, "id", login).CombinedOutput()
	return string(out), err
}

// groupsFor holds the cache lock across the `id` spawn, not just the map
// accesses: two concurrent lookups for an uncached login must not spawn
// overlapping `id` processes, and the second arrival reads the first
// one's freshly written entry instead.
func (a *Authorizer) groupsFor(ctx context.Context, login string) (groups map[string]bool, resolved bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if entry, ok := a.cache[login]; ok && time.Now().Before(entry.expiresAt) {
		return entry.groups, entry.resolved
	}

	out, err := a.runID(ctx, login)
	entry := &idCacheEntry{expiresAt: time.Now().Add(a.ttl)}
	if err == nil {
		entry.resolved = true
		entry.groups = map[string]bool{}
		for _, m := range idGroupsPattern.FindAllStringSubmatch(out, -1) {
			entry.groups[m[1]] = true
		}
	}
	a.cache[login] = entry

	return entry.groups, entry.resolved
}

// Token returns the authorization outcome for r's ApprovedByLogin against
// group (the daemon's configured privileged group).
func (a *Authorizer) Token(ctx context.Context, r *Record, group string) (Token, error) {
	switch r.ApprovedByLogin {
	case "":
		return TokenWait, nil
	case RejectedLogin:
		return TokenRejected, nil
	}
	if group == "" {
		return TokenNotNeeded, nil
	}

	login := strings.TrimSpace(r.ApprovedByLogin)
	groups, resolved := a.groupsFor(ctx, login)
	if !resolved {
		return TokenFailure, errors.New(errors.AuthFailure, "could not resolve login "+login)
	}
	if groups[group] {
		return TokenOK, nil
	}
	return TokenFailure, nil
}
