// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package dropbox implements dropboxes and their finder: watched
// directory configuration, and glob-based discovery of dropbox roots with
// add/remove/change events.
package dropbox

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stratastor/dropboxd/pkg/errors"
	"github.com/stratastor/dropboxd/pkg/tree"
)

// Settings is the per-dropbox YAML schema (".dropbox.yaml").
type Settings struct {
	Package struct {
		StableAfter  string   `yaml:"stable_after"`
		SearchPaths  []string `yaml:"search_paths"`
	} `yaml:"package"`
	AutoApprove        []string                   `yaml:"auto_approve"`
	OnePackagePerFile  bool                       `yaml:"one_package_per_file"`
	UpdatePackagesEvery string                    `yaml:"update_packages_every"`
	Transactions       map[string]yaml.Node       `yaml:"transactions"`
}

// StableAfterDuration parses Package.StableAfter, defaulting to 60s.
func (s *Settings) StableAfterDuration() time.Duration {
	if s.Package.StableAfter == "" {
		return 60 * time.Second
	}
	d, err := time.ParseDuration(s.Package.StableAfter)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// UpdateInterval parses UpdatePackagesEvery; zero means "use the daemon
// default".
func (s *Settings) UpdateInterval() time.Duration {
	if s.UpdatePackagesEvery == "" {
		return 0
	}
	d, err := time.ParseDuration(s.UpdatePackagesEvery)
	if err != nil {
		return 0
	}
	return d
}

// Dropbox is a watched directory tree with its configuration and cached
// last tree sample.
type Dropbox struct {
	ConfigPath string
	Settings   Settings

	lastSample map[string]*tree.Tree // search-path -> last sampled tree
	lastUpdate time.Time

	busy atomic.Bool // update-in-flight flag; the cached tree is single-writer
}

// Load reads and parses a dropbox's YAML configuration file.
func Load(configPath string) (*Dropbox, error) {
	raw, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.FSError)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, errors.New(errors.InvalidConfig, "failed to parse dropbox config: "+err.Error())
	}
	return &Dropbox{ConfigPath: configPath, Settings: s, lastSample: map[string]*tree.Tree{}}, nil
}

// ResolvedSearchPaths returns search_paths resolved against the config
// file's directory when relative.
func (d *Dropbox) ResolvedSearchPaths() []string {
	base := filepath.Dir(d.ConfigPath)
	out := make([]string, len(d.Settings.Package.SearchPaths))
	for i, p := range d.Settings.Package.SearchPaths {
		if filepath.IsAbs(p) {
			out[i] = p
		} else {
			out[i] = filepath.Join(base, p)
		}
	}
	return out
}

// ContainsPath reports whether path lies under one of d's search paths.
func (d *Dropbox) ContainsPath(path string) bool {
	for _, root := range d.ResolvedSearchPaths() {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel == "." || (len(rel) > 0 && rel[0] != '.' && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

// TryBeginUpdate atomically sets the busy flag if it was clear, returning
// false if an update was already outstanding.
func (d *Dropbox) TryBeginUpdate() bool {
	return d.busy.CompareAndSwap(false, true)
}

// EndUpdate clears the busy flag.
func (d *Dropbox) EndUpdate() { d.busy.Store(false) }

// LastSample returns the cached tree for a search path, if any.
func (d *Dropbox) LastSample(searchPath string) (*tree.Tree, bool) {
	t, ok := d.lastSample[searchPath]
	return t, ok
}

// SetLastSample replaces the cached tree for a search path, releasing the
// previous one so its registry entry doesn't leak.
func (d *Dropbox) SetLastSample(searchPath string, t *tree.Tree) {
	if prev, ok := d.lastSample[searchPath]; ok {
		prev.Release()
	}
	d.lastSample[searchPath] = t
	d.lastUpdate = time.Now()
}

// LastUpdate returns the time of the most recent SetLastSample call.
func (d *Dropbox) LastUpdate() time.Time { return d.lastUpdate }
