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

package app

import (
	"fmt"
	"os"
	"strconv"

	"epts/match"
	"epts/waitlist"
)

// Emission of the scored panel and the run diagnostics as tab separated
// files, one value convention throughout: booleans as 0/1, missing
// percentiles as an empty field.

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WritePanel writes the scored monthly panel to a tab file, one row per
// candidate-month, ordered by candidate and time index.
func WritePanel(path string, rows []*waitlist.MonthlyRecord) {
	file, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintln(file, "patient_id\ttime_index\tage_years\tdialysis_time_years\ton_dialysis\tdiabetes\tprevious_transplant\trace\traw_score\tpercentile_score")
	for _, row := range rows {
		raw := ""
		percentile := ""
		if row.HasRawScore {
			raw = strconv.FormatFloat(row.RawScore, 'f', 6, 64)
		}
		if row.HasPercentile {
			percentile = strconv.Itoa(row.Percentile)
		}
		fmt.Fprintf(file, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.PIDString, row.TimeIndex,
			strconv.FormatFloat(row.AgeYears, 'f', 6, 64),
			strconv.FormatFloat(row.DialysisYears, 'f', 6, 64),
			formatBool(row.OnDialysis), formatBool(row.Diabetes),
			formatBool(row.PreviousTransplant), row.Race, raw, percentile)
	}
}

// WriteExclusions writes the per-patient exclusions and data-quality
// warnings of a run to a tab file.
func WriteExclusions(path string, report *waitlist.Report) {
	file, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintln(file, "patient_id\tkind\treason\tdetail")
	for _, e := range report.Excluded {
		fmt.Fprintf(file, "%s\texcluded\t%s\t%s\n", e.PIDString, e.Reason, e.Detail)
	}
	for _, w := range report.Warnings {
		fmt.Fprintf(file, "%s\twarning\t%s\t%s\n", w.PIDString, w.Reason, w.Detail)
	}
}

// PrintExclusionSummary prints the per-reason exclusion counts of a run to
// standard output.
func PrintExclusionSummary(report *waitlist.Report) {
	fmt.Println("Excluded ", len(report.Excluded), " patients, ", len(report.Warnings), " data-quality warnings.")
	for reason, count := range report.CountsByReason() {
		fmt.Println(reason, ": ", count)
	}
}

// WriteMatchedPairs writes the 1:1 matched pairs to a tab file: the treated
// candidate, its matched control, and both propensity scores.
func WriteMatchedPairs(path string, pairs []*match.Pair) {
	file, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintln(file, "treated_id\tcontrol_id\ttreated_propensity\tcontrol_propensity")
	for _, pair := range pairs {
		fmt.Fprintf(file, "%s\t%s\t%s\t%s\n", pair.Treated.PIDString, pair.Control.PIDString,
			strconv.FormatFloat(pair.Treated.Propensity, 'f', 6, 64),
			strconv.FormatFloat(pair.Control.Propensity, 'f', 6, 64))
	}
}

// WriteBalanceTable writes the pre- and post-matching balance diagnostics to
// a tab file, one row per matching covariate.
func WriteBalanceTable(path string, rows []*match.BalanceRow) {
	file, err := os.Create(path)
	if err != nil {
		panic(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			panic(err)
		}
	}()
	fmt.Fprintln(file, "covariate\tsmd_before\tsmd_after\tpermutation_pvalue\tsign_test")
	for _, row := range rows {
		fmt.Fprintf(file, "%s\t%s\t%s\t%s\t%s\n", row.Covariate,
			strconv.FormatFloat(row.SMDBefore, 'f', 6, 64),
			strconv.FormatFloat(row.SMDAfter, 'f', 6, 64),
			strconv.FormatFloat(row.PValue, 'f', 6, 64),
			strconv.FormatFloat(row.SignTest, 'f', 6, 64))
	}
}
