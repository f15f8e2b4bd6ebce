// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package dropbox

import (
	"os"
	"path/filepath"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Finder indexes Dropboxes by their configuration-file path, discovering
// new/removed/changed ones by glob-walking a set of search roots.
type Finder struct {
	Roots    []string
	MaxDepth int
	Glob     string

	known map[string]*Dropbox // config path -> Dropbox
	stat  map[string]os.FileInfo
}

// NewFinder creates a Finder over roots, matching files named glob up to
// maxDepth below each root.
func NewFinder(roots []string, maxDepth int, glob string) *Finder {
	return &Finder{
		Roots: roots, MaxDepth: maxDepth, Glob: glob,
		known: map[string]*Dropbox{}, stat: map[string]os.FileInfo{},
	}
}

// Update re-walks the roots (or, when knownOnly, only re-stats already
// known config paths) and returns the config paths that were added,
// removed (missing on disk now), or changed (stat differs).
func (f *Finder) Update(knownOnly bool) (added, removed, changed []string, err error) {
	var found map[string]os.FileInfo
	if knownOnly {
		found = map[string]os.FileInfo{}
		for p := range f.known {
			if info, statErr := os.Stat(p); statErr == nil {
				found[p] = info
			}
		}
	} else {
		found, err = f.walk()
		if err != nil {
			return nil, nil, nil, err
		}
	}

	for p, info := range found {
		prev, wasKnown := f.stat[p]
		if !wasKnown {
			added = append(added, p)
			db, loadErr := Load(p)
			if loadErr == nil {
				f.known[p] = db
			}
		} else if !prev.ModTime().Equal(info.ModTime()) || prev.Size() != info.Size() {
			changed = append(changed, p)
			if db, loadErr := Load(p); loadErr == nil {
				f.known[p] = db
			}
		}
		f.stat[p] = info
	}

	for p := range f.stat {
		if _, ok := found[p]; !ok {
			removed = append(removed, p)
			delete(f.known, p)
			delete(f.stat, p)
		}
	}

	return added, removed, changed, nil
}

func (f *Finder) walk() (map[string]os.FileInfo, error) {
	found := map[string]os.FileInfo{}
	for _, root := range f.Roots {
		if err := walkDepth(root, 0, f.MaxDepth, func(path string, info os.FileInfo) {
			if matched, _ := filepath.Match(f.Glob, info.Name()); matched {
				found[path] = info
			}
		}); err != nil {
			return nil, errors.Wrap(err, errors.FSError)
		}
	}
	return found, nil
}

func walkDepth(dir string, depth, maxDepth int, visit func(string, os.FileInfo)) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsPermission(err) || os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		if e.IsDir() {
			if err := walkDepth(full, depth+1, maxDepth, visit); err != nil {
				return err
			}
			continue
		}
		visit(full, info)
	}
	return nil
}

// Known returns the Dropbox registered under configPath, if any.
func (f *Finder) Known(configPath string) (*Dropbox, bool) {
	d, ok := f.known[configPath]
	return d, ok
}

// All returns every currently known Dropbox.
func (f *Finder) All() []*Dropbox {
	out := make([]*Dropbox, 0, len(f.known))
	for _, d := range f.known {
		out = append(out, d)
	}
	return out
}

// DropboxByContainedPath searches dropboxes by their search paths (not
// their config path) and returns NotFound if none contains path.
func (f *Finder) DropboxByContainedPath(path string) (*Dropbox, error) {
	for _, d := range f.known {
		if d.ContainsPath(path) {
			return d, nil
		}
	}
	return nil, errors.New(errors.DropboxNotFound, path)
}
