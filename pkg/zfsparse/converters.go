// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

// Package zfsparse parses the human-readable and tab-separated listing
// formats emitted by the zpool/zfs command-line tools.
package zfsparse

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Converter turns a raw token (or joined multi-token string) into a typed
// value. The parsers do not invoke it for columns they have already
// identified as NULL.
type Converter func(raw string) (any, error)

// NullValues is the null-value set recognized by both parser families.
var NullValues = map[string]bool{"-": true, "none": true}

var sizeUnits = map[byte]float64{
	'k': 1 << 10,
	'm': 1 << 20,
	'g': 1 << 30,
	't': 1 << 40,
	'p': 1 << 50,
}

// Size converts a zfs/zpool size string such as "1.5G" into bytes.
func Size(raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty size")
	}
	last := raw[len(raw)-1]
	mult, ok := sizeUnits[strings.ToLower(string(last))[0]]
	if !ok {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid size %q: %w", raw, err)
		}
		return int64(n), nil
	}
	n, err := strconv.ParseFloat(raw[:len(raw)-1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid size %q: %w", raw, err)
	}
	return int64(n * mult), nil
}

// Ratio converts a "1.23x" style compression/dedup ratio into a float64.
func Ratio(raw string) (any, error) {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(raw), "x"))
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ratio %q: %w", raw, err)
	}
	return n, nil
}

var truthy = map[string]bool{"yes": true, "on": true, "active": true, "enabled": true}
var falsy = map[string]bool{"no": true, "off": true, "inactive": true, "disabled": true}

// Bool converts a zfs/zpool yes/no-style token into a bool.
func Bool(raw string) (any, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if truthy[lower] {
		return true, nil
	}
	if falsy[lower] {
		return false, nil
	}
	return nil, fmt.Errorf("invalid bool token %q", raw)
}

// DateLayout is the fixed zfs/zpool creation-date layout, five whitespace
// tokens wide: "Mon Jan  2 15:04 2006".
const DateLayout = "Mon Jan  2 15:04 2006"

// Date parses the fixed zfs/zpool date format.
func Date(raw string) (any, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return t, nil
}

// Int parses an integer token, falling back to Bool (as 0/1) when the token
// isn't numeric; some zfs properties report either depending on version.
func Int(raw string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err == nil {
		return n, nil
	}
	b, berr := Bool(raw)
	if berr != nil {
		return nil, fmt.Errorf("invalid int %q", raw)
	}
	if b.(bool) {
		return int64(1), nil
	}
	return int64(0), nil
}

// String is the identity converter.
func String(raw string) (any, error) { return raw, nil }
