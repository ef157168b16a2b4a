// EPTS: Expected Post-Transplant Survival Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// the LICENSE.txt file at the root of this repository.

package score

import (
	"bufio"
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
)

// The raw score to percentile mapping is a versioned data artifact, not
// code: 100 ascending thresholds, one per percentile 0..99, stored as a tab
// separated file. Raw scores above the last threshold map to percentile 100.
// A new score version ships a new table file, the lookup never changes.

//go:embed epts_mapping_2015.tsv
var mapping2015 string

// NofBreakpoints is the number of thresholds a mapping table must contain.
const NofBreakpoints = 100

// Breakpoint associates the upper raw-score threshold of one percentile with
// that percentile.
type Breakpoint struct {
	Threshold  float64
	Percentile int
}

// Table is an immutable raw score to percentile mapping for one score
// version.
type Table struct {
	Version     string
	breakpoints []Breakpoint
}

// NewTable validates a breakpoint sequence and wraps it in a Table. The
// sequence must contain exactly NofBreakpoints entries, strictly ascending
// thresholds, and percentiles 0..99 in order. A malformed table is a
// structural error that must abort the whole run, unlike per-patient errors.
func NewTable(version string, breakpoints []Breakpoint) (*Table, error) {
	if len(breakpoints) != NofBreakpoints {
		return nil, fmt.Errorf("score table %s: expected %d breakpoints, got %d", version,
			NofBreakpoints, len(breakpoints))
	}
	for i, bp := range breakpoints {
		if bp.Percentile != i {
			return nil, fmt.Errorf("score table %s: breakpoint %d carries percentile %d", version,
				i, bp.Percentile)
		}
		if i > 0 && breakpoints[i-1].Threshold >= bp.Threshold {
			return nil, fmt.Errorf("score table %s: thresholds not strictly ascending at percentile %d",
				version, i)
		}
	}
	return &Table{Version: version, breakpoints: breakpoints}, nil
}

// Lookup maps a raw score onto its percentile: the percentile of the first
// breakpoint whose threshold is greater than or equal to the raw score, or
// 100 when the raw score exceeds all thresholds. A raw score exactly on a
// threshold maps to that threshold's percentile. A missing raw score (NaN)
// yields a missing percentile, never an error.
func (t *Table) Lookup(raw float64) (int, bool) {
	if math.IsNaN(raw) {
		return 0, false
	}
	i := sort.Search(len(t.breakpoints), func(i int) bool {
		return t.breakpoints[i].Threshold >= raw
	})
	if i == len(t.breakpoints) {
		return 100, true
	}
	return t.breakpoints[i].Percentile, true
}

// Breakpoints returns a copy of the table's breakpoint sequence.
func (t *Table) Breakpoints() []Breakpoint {
	bps := make([]Breakpoint, len(t.breakpoints))
	copy(bps, t.breakpoints)
	return bps
}

// parseTable parses the tab separated threshold/percentile lines of a
// mapping artifact.
func parseTable(version, data string) (*Table, error) {
	var breakpoints []Breakpoint
	scanner := bufio.NewScanner(strings.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("score table %s: line %d: expected 2 fields, got %d", version,
				line, len(fields))
		}
		threshold, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("score table %s: line %d: %v", version, line, err)
		}
		percentile, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, fmt.Errorf("score table %s: line %d: %v", version, line, err)
		}
		breakpoints = append(breakpoints, Breakpoint{Threshold: threshold, Percentile: percentile})
	}
	return NewTable(version, breakpoints)
}

// LoadTable loads a raw score to percentile mapping from a tab separated
// file. This is how future score versions are picked up without code
// changes.
func LoadTable(version, path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseTable(version, string(data))
}

// DefaultTable returns the embedded 2015 revision of the EPTS mapping. The
// embedded artifact is validated at startup; failure to parse it is a
// programming error.
func DefaultTable() *Table {
	table, err := parseTable("EPTS-2015", mapping2015)
	if err != nil {
		panic(err)
	}
	return table
}
