// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package sender

import (
	"github.com/stratastor/dropboxd/pkg/errors"
	"github.com/stratastor/dropboxd/pkg/zfsmodel"
	"github.com/stratastor/dropboxd/pkg/zfsurl"
)

// ResolutionMode selects how a destination is found for a source
// filesystem.
type ResolutionMode string

const (
	ModeProperty   ResolutionMode = "property"
	ModeSearch     ResolutionMode = "search"
	ModeAuto       ResolutionMode = "auto"
	ModeConfigured ResolutionMode = "configured"
)

// Destination names one resolved (host, dataset-name) target.
type Destination struct {
	Host string
	Name string
}

// ResolveProperty reads src's zfs_receive_url property, failing if the
// property is inherited from a parent rather than set directly on src.
func (p *Planner) ResolveProperty(src *zfsmodel.Dataset) (*Destination, error) {
	raw, ok := src.ReceiveURL()
	if !ok {
		return nil, errors.New(errors.NoCommonSnapshot, "zfs_receive_url not set on "+src.Name)
	}
	inherited, err := p.Store.PropertyIsInherited(src, "zfs_receive_url")
	if err != nil {
		return nil, err
	}
	if inherited {
		return nil, errors.New(errors.InvalidConfig, "zfs_receive_url is inherited, not set directly on "+src.Name)
	}
	u, err := zfsurl.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &Destination{Host: u.Host, Name: u.Name()}, nil
}

// ResolveSearch enumerates destination candidates on other hosts and picks
// the one with the smallest estimated send size: a
// candidate that already shares a recent snapshot with src needs only an
// incremental send, while one with no shared history needs a full send of
// the baseline plus every snapshot.
func (p *Planner) ResolveSearch(src *zfsmodel.Dataset) (*Destination, error) {
	candidates, err := p.Candidates(src)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, errors.New(errors.NoCommonSnapshot, "no destination candidate found for "+src.Name)
	}

	var best *Destination
	var bestSize int64
	for i, c := range candidates {
		plan, err := p.Compute(src, c.Host, c.Name, "")
		if err != nil {
			return nil, err
		}
		if best == nil || plan.SendSize < bestSize {
			best = &candidates[i]
			bestSize = plan.SendSize
		}
	}
	return best, nil
}

// ResolveAuto tries property resolution, then falls back to search.
func (p *Planner) ResolveAuto(src *zfsmodel.Dataset) (*Destination, error) {
	if dest, err := p.ResolveProperty(src); err == nil {
		return dest, nil
	}
	return p.ResolveSearch(src)
}

// ResolveConfigured recursively walks src for descendants whose
// zfs_receive_url is set and not inherited from their parent, optionally
// restricted to immediate children only ("configured" mode with the
// children_only query flag).
func (p *Planner) ResolveConfigured(src *zfsmodel.Dataset, childrenOnly bool) ([]*Destination, error) {
	descendants, err := p.Store.Descendants(src)
	if err != nil {
		return nil, err
	}

	prefix := src.Name + "/"
	var out []*Destination
	for _, d := range descendants {
		if childrenOnly {
			rest := d.Name[len(prefix):]
			if containsSlash(rest) {
				continue
			}
		}
		raw, ok := d.ReceiveURL()
		if !ok {
			continue
		}
		inherited, err := p.Store.PropertyIsInherited(d, "zfs_receive_url")
		if err != nil {
			return nil, err
		}
		if inherited {
			continue
		}
		u, err := zfsurl.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, &Destination{Host: u.Host, Name: u.Name()})
	}
	return out, nil
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

// Candidates enumerates destination candidates: existing filesystems on
// other hosts sharing src's basename
// (ordered by avail descending), plus pools on other hosts with enough free
// space for the estimated transfer, joined with src's path suffix and
// de-duplicated against the basename matches.
func (p *Planner) Candidates(src *zfsmodel.Dataset) ([]Destination, error) {
	basename := basenameOf(src.Name)

	byName, err := p.Store.FilesystemsByBasename(basename, src.Host)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(byName))
	out := make([]Destination, 0, len(byName))
	for _, d := range byName {
		key := d.Host + "/" + d.Name
		seen[key] = true
		out = append(out, Destination{Host: d.Host, Name: d.Name})
	}

	srcSnaps, err := p.Store.Snapshots(src)
	if err != nil {
		return nil, err
	}
	_, transferSize := sumDeltas(srcSnaps)
	minFree := src.Used + transferSize

	pools, err := p.Store.PoolsWithFreeAtLeast(minFree, src.Host)
	if err != nil {
		return nil, err
	}
	suffix := pathSuffix(src.Name)
	for _, pool := range pools {
		name := pool.Name
		if suffix != "" {
			name = pool.Name + "/" + suffix
		}
		key := pool.Host + "/" + name
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Destination{Host: pool.Host, Name: name})
	}
	return out, nil
}

func basenameOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

// pathSuffix returns src's path components below its pool, e.g.
// "pool/a/b" -> "a/b", "pool" -> "".
func pathSuffix(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return ""
}
