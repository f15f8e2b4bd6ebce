// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package tree samples and diffs directory trees: a
// depth-first recursive sample of a directory into an in-memory map, and a
// diff between two samples that detects package-level add/remove/change.
package tree

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// StatRecord is the sampled metadata for one file.
type StatRecord struct {
	Size    int64
	Mode    os.FileMode
	ModTime time.Time
}

// Node is either a file (Stat != nil) or a directory (Children != nil).
type Node struct {
	Stat     *StatRecord
	Children map[string]*Node
}

func (n *Node) isDir() bool { return n.Children != nil }

// Equal reports whether two nodes carry the same sampled content: for
// files, identical (size, mode, mod time); for directories, identical
// child sets each recursively equal.
func (n *Node) Equal(o *Node) bool {
	if n == nil || o == nil {
		return n == o
	}
	if n.isDir() != o.isDir() {
		return false
	}
	if !n.isDir() {
		return n.Stat.Size == o.Stat.Size && n.Stat.Mode == o.Stat.Mode && n.Stat.ModTime.Equal(o.Stat.ModTime)
	}
	if len(n.Children) != len(o.Children) {
		return false
	}
	for name, child := range n.Children {
		oc, ok := o.Children[name]
		if !ok || !child.Equal(oc) {
			return false
		}
	}
	return true
}

var treeRegistry sync.Map // id -> *Tree, a process-local lookup so Package
// holds a non-owning handle to its Tree rather than a direct pointer
// that would extend the tree's lifetime.

var nextTreeID int64
var treeIDMu sync.Mutex

// Tree is one immutable, recursively sampled directory root.
type Tree struct {
	id       int64
	Root     string
	SampledAt time.Time
	Top      map[string]*Node
}

// Sample performs a depth-first os.ReadDir/os.Lstat walk of root, silently
// skipping entries that return EACCES/ENOENT, recording stat results for
// files and recursive maps for directories. SampledAt is set after the
// recursion completes, so stability checks measure completion, not
// start.
func Sample(root string) (*Tree, error) {
	top, err := sampleDir(root)
	if err != nil {
		return nil, err
	}

	treeIDMu.Lock()
	nextTreeID++
	id := nextTreeID
	treeIDMu.Unlock()

	t := &Tree{id: id, Root: root, Top: top, SampledAt: time.Now()}
	treeRegistry.Store(id, t)
	return t, nil
}

// Release removes t from the process-local registry, invalidating any
// Package handles still referencing it.
func (t *Tree) Release() { treeRegistry.Delete(t.id) }

func lookupTree(id int64) (*Tree, bool) {
	v, ok := treeRegistry.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Tree), true
}

func sampleDir(path string) (map[string]*Node, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if isSkippable(err) {
			return map[string]*Node{}, nil
		}
		return nil, errors.Wrap(err, errors.FSError)
	}

	out := make(map[string]*Node, len(entries))
	for _, e := range entries {
		full := filepath.Join(path, e.Name())
		info, err := os.Lstat(full)
		if err != nil {
			if isSkippable(err) {
				continue
			}
			return nil, errors.Wrap(err, errors.FSError)
		}

		if info.IsDir() {
			children, err := sampleDir(full)
			if err != nil {
				return nil, err
			}
			out[e.Name()] = &Node{Children: children}
			continue
		}

		out[e.Name()] = &Node{Stat: &StatRecord{
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		}}
	}
	return out, nil
}

func isSkippable(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err)
}
