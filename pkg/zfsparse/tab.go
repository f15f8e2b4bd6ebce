// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package zfsparse

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/stratastor/dropboxd/pkg/errors"
)

// Field describes one column of a TabParser schema.
type Field struct {
	Name    string
	Convert Converter
}

// TabParser parses machine-oriented, tab-separated listings (e.g. "zfs list
// -H -p -o ...") against a fixed (name, converter) schema.
type TabParser struct {
	Schema []Field
	Delim  string
}

// NewTabParser builds a TabParser with the default tab delimiter.
func NewTabParser(schema []Field) *TabParser {
	return &TabParser{Schema: schema, Delim: "\t"}
}

// ParseLine parses a single record line against the schema, validating
// column count and applying the null-value set {"-", "none"}.
func (p *TabParser) ParseLine(line string) (map[string]any, error) {
	delim := p.Delim
	if delim == "" {
		delim = "\t"
	}
	cols := strings.Split(line, delim)
	if len(cols) != len(p.Schema) {
		return nil, errors.New(errors.CommandOutputParse,
			fmt.Sprintf("expected %d columns, got %d in line %q", len(p.Schema), len(cols), line))
	}

	record := make(map[string]any, len(p.Schema))
	for i, field := range p.Schema {
		raw := strings.TrimSpace(cols[i])
		if NullValues[strings.ToLower(raw)] {
			record[field.Name] = nil
			continue
		}
		convert := field.Convert
		if convert == nil {
			convert = String
		}
		v, err := convert(raw)
		if err != nil {
			return nil, errors.New(errors.CommandOutputParse,
				fmt.Sprintf("column %q: %v", field.Name, err))
		}
		record[field.Name] = v
	}
	return record, nil
}

// ParseAll parses every non-empty line from r.
func (p *TabParser) ParseAll(r io.Reader) ([]map[string]any, error) {
	var out []map[string]any
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := p.ParseLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CommandOutputParse)
	}
	return out, nil
}
