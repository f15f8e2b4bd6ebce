// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package scheduler

import (
	"time"

	"gopkg.in/yaml.v3"
)

// durationConfigKeys names the per-plugin config keys that hold duration
// strings in the dropbox YAML but that plugins consume as time.Duration
// (e.g. DeletePlugin.CanEnqueue).
var durationConfigKeys = map[string]bool{
	"after_being_stable_for": true,
}

// decodePluginConfig turns one "transactions.<name>" YAML node into the
// map[string]any a txn.Plugin expects, parsing known duration fields from
// their string form.
func decodePluginConfig(node yaml.Node) map[string]any {
	raw := map[string]any{}
	if err := node.Decode(&raw); err != nil {
		return raw
	}
	for key := range durationConfigKeys {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(s); err == nil {
			raw[key] = d
		}
	}
	return raw
}
