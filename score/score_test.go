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

package score_test

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"epts/score"
	"epts/waitlist"
)

func TestBaselineRawScore(t *testing.T) {
	// age 25, no diabetes, no previous transplant, never dialyzed:
	// every term vanishes except the never-dialyzed constant
	raw := score.Compute(25.0, false, false, 0.0)
	if math.Abs(raw-0.130) > 1e-12 {
		t.Fatal("expected baseline raw score 0.130, got ", raw)
	}
}

func TestRawScoreFormula(t *testing.T) {
	age, dialysis := 50.0, 3.0
	want := 0.047*(age-25) - 0.015*(age-25) +
		0.398 - 0.237 +
		0.315*math.Log(dialysis+1) - 0.099*math.Log(dialysis+1) +
		1.262
	raw := score.Compute(age, true, true, dialysis)
	if math.Abs(raw-want) > 1e-12 {
		t.Error("expected raw score ", want, " for a diabetic retransplant candidate, got ", raw)
	}
	// age below 25 contributes nothing
	young := score.Compute(20.0, false, false, 2.0)
	wantYoung := 0.315 * math.Log(3.0)
	if math.Abs(young-wantYoung) > 1e-12 {
		t.Error("expected raw score ", wantYoung, " for a young candidate, got ", young)
	}
}

func TestMissingInputs(t *testing.T) {
	if !math.IsNaN(score.Compute(math.NaN(), false, false, 0.0)) {
		t.Error("missing age must yield a missing raw score")
	}
	if !math.IsNaN(score.Compute(40.0, false, false, math.NaN())) {
		t.Error("missing dialysis time must yield a missing raw score")
	}
	table := score.DefaultTable()
	if _, ok := table.Lookup(math.NaN()); ok {
		t.Error("missing raw score must yield a missing percentile")
	}
}

func TestLookupBoundaries(t *testing.T) {
	table := score.DefaultTable()
	breakpoints := table.Breakpoints()
	if len(breakpoints) != score.NofBreakpoints {
		t.Fatal("expected ", score.NofBreakpoints, " breakpoints, got ", len(breakpoints))
	}
	// a raw score exactly on a threshold maps to that threshold's percentile
	for _, bp := range breakpoints {
		got, ok := table.Lookup(bp.Threshold)
		if !ok || got != bp.Percentile {
			t.Error("expected percentile ", bp.Percentile, " at threshold ", bp.Threshold, ", got ", got)
		}
	}
	if got, _ := table.Lookup(-5.0); got != 0 {
		t.Error("expected percentile 0 below all thresholds, got ", got)
	}
	if got, _ := table.Lookup(breakpoints[99].Threshold + 0.001); got != 100 {
		t.Error("expected percentile 100 above all thresholds, got ", got)
	}
}

func TestLookupMonotonic(t *testing.T) {
	table := score.DefaultTable()
	last := 0
	for raw := -1.0; raw < 6.0; raw += 0.003 {
		got, ok := table.Lookup(raw)
		if !ok {
			t.Fatal("unexpected missing percentile at raw ", raw)
		}
		if got < last {
			t.Fatal("percentile decreased from ", last, " to ", got, " at raw ", raw)
		}
		last = got
	}
}

func TestTableValidation(t *testing.T) {
	breakpoints := score.DefaultTable().Breakpoints()
	if _, err := score.NewTable("short", breakpoints[:99]); err == nil {
		t.Error("expected an error for a table with too few breakpoints")
	}
	swapped := score.DefaultTable().Breakpoints()
	swapped[10].Threshold, swapped[11].Threshold = swapped[11].Threshold, swapped[10].Threshold
	if _, err := score.NewTable("swapped", swapped); err == nil {
		t.Error("expected an error for non-ascending thresholds")
	}
	wrong := score.DefaultTable().Breakpoints()
	wrong[5].Percentile = 6
	if _, err := score.NewTable("wrong", wrong); err == nil {
		t.Error("expected an error for an out-of-order percentile")
	}
}

func TestLoadTable(t *testing.T) {
	breakpoints := score.DefaultTable().Breakpoints()
	path := filepath.Join(t.TempDir(), "mapping.tsv")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, bp := range breakpoints {
		if _, err := file.WriteString(strconv.FormatFloat(bp.Threshold, 'f', 5, 64) + "\t" +
			strconv.Itoa(bp.Percentile) + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	if err := file.Close(); err != nil {
		t.Fatal(err)
	}
	table, err := score.LoadTable("reload", path)
	if err != nil {
		t.Fatal(err)
	}
	for _, bp := range breakpoints {
		got, ok := table.Lookup(bp.Threshold)
		if !ok || got != bp.Percentile {
			t.Error("reloaded table disagrees at threshold ", bp.Threshold, ": ", got)
		}
	}
}

func TestScorePanel(t *testing.T) {
	rows := []*waitlist.MonthlyRecord{
		{PID: 1, PIDString: "p1", TimeIndex: 0, AgeYears: 25.0, DialysisYears: 0.0},
		{PID: 1, PIDString: "p1", TimeIndex: 1, AgeYears: 60.0, DialysisYears: 4.0, OnDialysis: true, Diabetes: true},
	}
	table := score.DefaultTable()
	score.ScorePanel(table, rows)
	for _, row := range rows {
		if !row.HasRawScore || !row.HasPercentile {
			t.Fatal("expected a score for time index ", row.TimeIndex)
		}
	}
	if math.Abs(rows[0].RawScore-0.130) > 1e-12 {
		t.Error("expected baseline raw score 0.130, got ", rows[0].RawScore)
	}
	if rows[1].Percentile <= rows[0].Percentile {
		t.Error("expected the older diabetic candidate-month to rank higher, got ",
			rows[0].Percentile, " and ", rows[1].Percentile)
	}
}
