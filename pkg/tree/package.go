// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package tree

import "path"

// Package is a pointer (tree, root-relative path) representing either a
// file or a directory that contains at least one file. It holds
// a non-owning handle to its Tree (a tree ID plus registry lookup) rather
// than a direct pointer, so that releasing the tree cannot be masked by a
// live Package keeping it reachable.
type Package struct {
	treeID      int64
	Root        string
	RelPath     string
	Node        *Node
	StableSince int64 // seconds since epoch
}

// Tree resolves p's non-owning back-reference, or (nil, false) if the tree
// has since been released.
func (p *Package) Tree() (*Tree, bool) { return lookupTree(p.treeID) }

// AbsPath returns the package's absolute path.
func (p *Package) AbsPath() string {
	if p.RelPath == "" {
		return p.Root
	}
	return path.Join(p.Root, p.RelPath)
}

// Packages implements the discovery rule: every file directly
// beneath the tree root is a Package, and every directory containing at
// least one file (directly or transitively) is a Package. The walk does
// not descend past the first directory level that contains files. In
// onePerFile mode, every file anywhere in the tree is its own Package.
func (t *Tree) Packages(onePerFile bool) []*Package {
	var out []*Package
	for name, node := range t.Top {
		collectPackages(t, name, node, onePerFile, &out)
	}
	return out
}

func collectPackages(t *Tree, relPath string, node *Node, onePerFile bool, out *[]*Package) {
	if !node.isDir() {
		*out = append(*out, &Package{treeID: t.id, Root: t.Root, RelPath: relPath, Node: node})
		return
	}

	if onePerFile {
		for name, child := range node.Children {
			collectPackages(t, path.Join(relPath, name), child, onePerFile, out)
		}
		return
	}

	if containsFile(node) {
		*out = append(*out, &Package{treeID: t.id, Root: t.Root, RelPath: relPath, Node: node})
		return
	}

	// No file at or below this directory (containsFile searched every
	// level), so descending into its empty subdirectories emits no Package.
	for name, child := range node.Children {
		collectPackages(t, path.Join(relPath, name), child, onePerFile, out)
	}
}

func containsFile(node *Node) bool {
	if !node.isDir() {
		return true
	}
	for _, child := range node.Children {
		if containsFile(child) {
			return true
		}
	}
	return false
}
