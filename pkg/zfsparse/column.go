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

// ColumnSpec describes one adaptive-column field. Tokens is the number of
// whitespace-delimited sub-tokens this column spans in a data line (e.g. 5
// for a "Mon Jan  2 15:04 2006" creation date); it defaults to 1.
type ColumnSpec struct {
	Name    string
	Tokens  int
	Convert Converter
}

// ColumnParser parses human-oriented listings (e.g. "zpool list", "zfs
// list" without -H) whose schema is learned from a header line rather than
// declared up front.
type ColumnParser struct {
	specs   []ColumnSpec
	offsets []int
}

type tokenPos struct {
	text   string
	offset int
}

func tokenizeWithOffsets(line string) []tokenPos {
	var out []tokenPos
	inToken := false
	start := 0
	for i, r := range line {
		if r == ' ' || r == '\t' {
			if inToken {
				out = append(out, tokenPos{line[start:i], start})
				inToken = false
			}
		} else if !inToken {
			start = i
			inToken = true
		}
	}
	if inToken {
		out = append(out, tokenPos{line[start:], start})
	}
	return out
}

// NewColumnParser learns column start offsets from header, a line whose
// whitespace-separated tokens correspond 1:1 with specs in order.
func NewColumnParser(header string, specs []ColumnSpec) (*ColumnParser, error) {
	headerTokens := tokenizeWithOffsets(header)
	if len(headerTokens) != len(specs) {
		return nil, errors.New(errors.CommandOutputParse,
			fmt.Sprintf("header has %d columns, schema declares %d", len(headerTokens), len(specs)))
	}

	offsets := make([]int, len(specs))
	for i := range specs {
		offsets[i] = headerTokens[i].offset
	}

	return &ColumnParser{specs: specs, offsets: offsets}, nil
}

// Parse parses one data line. A column whose next token begins at or past
// the following column's learned offset is treated as NULL, and the cursor
// is left in place (not consumed) so the next column's check sees the same
// token, i.e. the cursor resets to the column boundary.
func (p *ColumnParser) Parse(line string) (map[string]any, error) {
	tokens := tokenizeWithOffsets(line)
	ti := 0
	record := make(map[string]any, len(p.specs))

	for i, spec := range p.specs {
		nextOffset := -1
		if i+1 < len(p.specs) {
			nextOffset = p.offsets[i+1]
		}

		if ti >= len(tokens) {
			record[spec.Name] = nil
			continue
		}
		if nextOffset >= 0 && tokens[ti].offset >= nextOffset {
			record[spec.Name] = nil
			continue
		}

		tokensNeeded := spec.Tokens
		if tokensNeeded <= 0 {
			tokensNeeded = 1
		}
		end := ti + tokensNeeded
		if end > len(tokens) {
			end = len(tokens)
		}
		// Never consume past the next column's boundary even if that
		// leaves fewer than tokensNeeded tokens for this one.
		for end > ti+1 && nextOffset >= 0 && tokens[end-1].offset >= nextOffset {
			end--
		}

		parts := make([]string, 0, end-ti)
		for ; ti < end; ti++ {
			parts = append(parts, tokens[ti].text)
		}
		raw := strings.Join(parts, " ")

		if NullValues[strings.ToLower(raw)] {
			record[spec.Name] = nil
			continue
		}

		convert := spec.Convert
		if convert == nil {
			convert = String
		}
		v, err := convert(raw)
		if err != nil {
			return nil, errors.New(errors.CommandOutputParse, fmt.Sprintf("column %q: %v", spec.Name, err))
		}
		record[spec.Name] = v
	}

	return record, nil
}

// ParseAllColumns parses header (first line of r) then every subsequent non-empty
// line against the schema.
func ParseAllColumns(r io.Reader, specs []ColumnSpec) ([]map[string]any, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, nil
	}
	parser, err := NewColumnParser(scanner.Text(), specs)
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, err := parser.Parse(line)
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
