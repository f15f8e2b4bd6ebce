// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package txn

import (
	"sync"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// PackageView is the subset of tree.Package state a plugin needs, decoupled
// from the tree package to avoid an import cycle and to let plugins reason
// about both a live sample and a persisted SQLPackage uniformly.
type PackageView struct {
	AbsPath     string
	StableSince int64
}

// Plugin is a closed-registry transaction type: a stable wire identifier
// (stored as Record.TypeName), an enqueue gate, and an operation factory.
type Plugin interface {
	Name() string
	CanEnqueue(pkg PackageView, sp *SQLPackage, cfg map[string]any) bool
	Operations(pkg PackageView, cfg map[string]any) ([]Operation, error)
}

var (
	registryMu sync.Mutex
	registry   = map[string]Plugin{}
)

// Register adds a plugin to the closed registry, keyed by its stable name.
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[p.Name()] = p
}

// Lookup returns the registered plugin by name, or NotFound.
func Lookup(name string) (Plugin, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := registry[name]
	if !ok {
		return nil, errors.New(errors.TransactionNotFound, "no transaction plugin named "+name)
	}
	return p, nil
}

// Names returns every registered plugin name.
func Names() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	return out
}
