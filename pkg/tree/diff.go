// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package tree

// PackagePair associates a package from each side of a diff at the same
// absolute path (lhs/rhs may each be nil for pure add/remove).
type PackagePair struct {
	Path     string
	LHS, RHS *Package
	Modified bool
}

// DiffResult partitions two package sets:
// Added = RHS\LHS, Removed = LHS\RHS, Changed/Unchanged partition the
// intersection by sampled-content equality.
type DiffResult struct {
	Added     []*Package
	Removed   []*Package
	Changed   []PackagePair
	Unchanged []PackagePair
}

// Diff compares two package slices by absolute root-relative path. For the
// intersection it compares sampled map content and emits Changed
// (Modified=true) or Unchanged (Modified=false); on Unchanged, rhs inherits
// lhs's StableSince, propagating stability across samples.
func Diff(lhs, rhs []*Package) DiffResult {
	byPath := func(pkgs []*Package) map[string]*Package {
		m := make(map[string]*Package, len(pkgs))
		for _, p := range pkgs {
			m[p.AbsPath()] = p
		}
		return m
	}

	lm := byPath(lhs)
	rm := byPath(rhs)

	var result DiffResult
	for path, rp := range rm {
		lp, ok := lm[path]
		if !ok {
			result.Added = append(result.Added, rp)
			continue
		}
		modified := !lp.Node.Equal(rp.Node)
		pair := PackagePair{Path: path, LHS: lp, RHS: rp, Modified: modified}
		if modified {
			result.Changed = append(result.Changed, pair)
		} else {
			rp.StableSince = lp.StableSince
			result.Unchanged = append(result.Unchanged, pair)
		}
	}
	for path, lp := range lm {
		if _, ok := rm[path]; !ok {
			result.Removed = append(result.Removed, lp)
		}
	}

	return result
}
