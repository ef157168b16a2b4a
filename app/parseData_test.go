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

package app_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"epts/app"
	"epts/score"
	"epts/waitlist"
)

const testHeader = "PX_ID,CAN_LISTING_DT,CAN_LISTING_DT_LAST,CAN_REM_DT," +
	"CAN_AGE_IN_MONTHS_AT_LISTING,CAN_DIAL_STAT,CAN_DIAL_YEARS,CAN_DIAL_DT," +
	"CAN_PREV_TX,CAN_DIAB,CAN_RACE\n"

func writeTestFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "candidates.csv")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseWaitlistData(t *testing.T) {
	content := testHeader +
		"c1,2019-01-01,2019-03-01,2020-01-01,540,Y,2.5,,N,Y,White\n" +
		"c2,2020-02-15,2020-02-15,,300,N,0,2020-06-01,N,N,Black\n" +
		"c3,2018-05-01,2018-05-01,2019-05-01,480,U,0,,Y,N,Other\n"
	patients, report, err := app.ParseWaitlistData(writeTestFile(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if patients.Ctr != 3 || len(report.Excluded) != 0 {
		t.Fatal("expected 3 usable candidates, got ", patients.Ctr, " with ", len(report.Excluded), " exclusions")
	}
	p1, ok := waitlist.GetPatient("c1", patients)
	if !ok {
		t.Fatal("candidate c1 not parsed")
	}
	if !p1.OnDialysisAtListing || p1.DialysisYearsAtListing != 2.5 || !p1.Diabetes || p1.PreviousTransplant {
		t.Error("candidate c1 covariates mismapped: ", p1)
	}
	if p1.RemovalDate == nil || p1.RemovalDate.Year != 2020 {
		t.Error("candidate c1 removal date mismapped: ", p1.RemovalDate)
	}
	p2, _ := waitlist.GetPatient("c2", patients)
	if p2.StartedOnWaitlist != waitlist.DialysisYes || p2.DialysisStartDate == nil {
		t.Error("candidate c2 dialysis onset mismapped")
	}
	if p2.RemovalDate != nil {
		t.Error("candidate c2 has no removal date, got ", p2.RemovalDate)
	}
	p3, _ := waitlist.GetPatient("c3", patients)
	if p3.StartedOnWaitlist != waitlist.DialysisUnknown {
		t.Error("candidate c3 unknown dialysis state mismapped")
	}
	if !p3.PreviousTransplant {
		t.Error("candidate c3 previous transplant flag mismapped")
	}
}

func TestParseWaitlistDataExclusions(t *testing.T) {
	content := testHeader +
		"b1,,2019-03-01,2020-01-01,540,Y,2.5,,N,Y,White\n" + //no listing date
		"b2,2020-02-15,2020-03-15,,,N,0,,N,N,Black\n" + //no age
		"b3,2018-05-01,2018-05-01,2019-05-01,480,N,0,,Y,U,Other\n" + //unresolved diabetes
		"ok,2018-05-01,2018-05-01,2019-05-01,480,N,0,,N,N,Other\n"
	patients, report, err := app.ParseWaitlistData(writeTestFile(t, content))
	if err != nil {
		t.Fatal(err)
	}
	if patients.Ctr != 1 {
		t.Error("expected 1 usable candidate, got ", patients.Ctr)
	}
	if len(report.Excluded) != 3 {
		t.Fatal("expected 3 parse exclusions, got ", len(report.Excluded))
	}
	for _, e := range report.Excluded {
		if e.Reason != waitlist.ReasonMissingRequiredField {
			t.Error("expected MissingRequiredField for ", e.PIDString, ", got ", e.Reason)
		}
	}
}

func TestParseWaitlistDataMissingColumn(t *testing.T) {
	content := "PX_ID,CAN_LISTING_DT\nc1,2019-01-01\n"
	if _, _, err := app.ParseWaitlistData(writeTestFile(t, content)); err == nil {
		t.Fatal("expected a structural error for a missing required column")
	}
}

func TestWritePanel(t *testing.T) {
	patients := waitlist.NewPatientMap()
	waitlist.AddPatient(patients, &waitlist.Patient{
		PIDString:          "c1",
		ListingDate:        waitlist.Date{Year: 2020, Month: 1, Day: 1},
		RemovalDate:        &waitlist.Date{Year: 2020, Month: 4, Day: 1},
		AgeAtListingMonths: 50 * 12,
	})
	rows, report := waitlist.ExpandAll(patients)
	if len(report.Excluded) != 0 {
		t.Fatal("unexpected exclusions")
	}
	score.ScorePanel(score.DefaultTable(), rows)
	path := filepath.Join(t.TempDir(), "panel.tsv")
	app.WritePanel(path, rows)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != len(rows)+1 {
		t.Fatal("expected ", len(rows)+1, " lines including header, got ", len(lines))
	}
	if !strings.HasPrefix(lines[0], "patient_id\ttime_index") {
		t.Error("unexpected panel header: ", lines[0])
	}
	for _, line := range lines[1:] {
		fields := strings.Split(line, "\t")
		if len(fields) != 10 {
			t.Error("expected 10 fields per panel row, got ", len(fields))
		}
		if fields[9] == "" {
			t.Error("expected a percentile for every scored row")
		}
	}
}
