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
	"github.com/exascience/pargo/parallel"

	"epts/waitlist"
)

// ScorePanel fills the raw score and percentile fields of every monthly
// record in place. Rows are independent of each other, so the pass runs in
// parallel over the panel. This is the only mutation monthly records see
// after construction.
func ScorePanel(table *Table, rows []*waitlist.MonthlyRecord) {
	parallel.Range(0, len(rows), 0, func(low, high int) {
		for _, row := range rows[low:high] {
			raw := Compute(row.AgeYears, row.Diabetes, row.PreviousTransplant, row.DialysisYears)
			percentile, ok := table.Lookup(raw)
			row.RawScore = raw
			row.HasRawScore = ok
			row.Percentile = percentile
			row.HasPercentile = ok
		}
	})
}
