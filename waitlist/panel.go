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

package waitlist

import (
	"fmt"
	"sort"

	"github.com/exascience/pargo/parallel"

	"epts/utils"
)

const (
	daysPerYear = 365
	// A dialysis start date may precede the listing date by a few days in
	// the registry extracts, e.g. when the listing was registered after
	// the first session.
	dialysisDateToleranceDays = 3
)

// MonthlyRecord is one row of the expanded panel: one waitlist month of one
// patient, with the fields that accrue over time. The score fields are
// filled in a single pass right after row construction and are the only
// fields ever written after creation.
type MonthlyRecord struct {
	PID                int
	PIDString          string
	TimeIndex          int     //0 = listing month, contiguous per patient
	AgeYears           float64 //accrues by 1/12 per month
	DialysisYears      float64 //accrues by 1/12 per month once dialysis started
	OnDialysis         bool    //true iff DialysisYears > 0
	Diabetes           bool
	PreviousTransplant bool
	Race               string
	RawScore           float64
	HasRawScore        bool
	Percentile         int
	HasPercentile      bool
}

// Exclusion reasons. ReasonAmbiguousDialysisOnset is a data-quality warning,
// the other reasons drop the patient from the output.
const (
	ReasonMissingRequiredField    = "MissingRequiredField"
	ReasonInvalidTemporalOrder    = "InvalidTemporalOrder"
	ReasonAmbiguousDialysisOnset  = "AmbiguousDialysisOnset"
	ReasonUnknownDialysisCoercion = "UnknownDialysisTreatedAsNever"
)

// Exclusion records why a patient was dropped from, or flagged in, the
// expanded panel.
type Exclusion struct {
	PIDString string
	Reason    string
	Detail    string
}

func (e *Exclusion) String() string {
	return fmt.Sprint(e.PIDString, ": ", e.Reason, ": ", e.Detail)
}

// Report aggregates per-patient exclusions and warnings for one expansion
// run. One bad patient never halts the processing of the others.
type Report struct {
	Excluded []*Exclusion
	Warnings []*Exclusion
}

// CountsByReason returns the number of exclusions per reason.
func (r *Report) CountsByReason() map[string]int {
	counts := map[string]int{}
	for _, e := range r.Excluded {
		counts[e.Reason]++
	}
	return counts
}

// resolveEndDate returns the waitlist exit date for a patient: the removal
// date when recorded, otherwise the last listing date as exit proxy.
func resolveEndDate(p *Patient) (Date, bool) {
	if p.RemovalDate != nil {
		return *p.RemovalDate, true
	}
	if p.LastListingDate != nil {
		return *p.LastListingDate, true
	}
	return Date{}, false
}

// monthsOnWaitlist converts the wait time in days into a number of whole
// waitlist months.
func monthsOnWaitlist(waitDays int) int {
	return waitDays * 12 / daysPerYear
}

// dialysisOnset computes whether dialysis started while the patient was on
// the waitlist, and at which month offset. Absence of an onset date means no
// mid-waitlist onset, which deliberately conflates "never started" with
// "unknown"; callers surface the latter via the report.
func dialysisOnset(p *Patient) (bool, int) {
	if p.DialysisStartDate == nil {
		return false, 0
	}
	if !DateBefore(p.ListingDate, *p.DialysisStartDate) {
		return false, 0
	}
	return true, monthsOnWaitlist(DaysBetween(p.ListingDate, *p.DialysisStartDate))
}

// monthlyRecord derives the panel row for one time index directly from the
// static record. There is no running accumulator: the row for index t never
// depends on the row for index t-1, so rows can be computed in any order.
func monthlyRecord(p *Patient, timeIndex, monthsTotal, onsetOffset int, onsetOnWaitlist bool) *MonthlyRecord {
	t := utils.MinInt(timeIndex, monthsTotal) //clamp, never carry forward
	// The age accrual starts from month 1 even for the t=0 row. This
	// off-by-one matches the reference score definition and is kept as is.
	age := p.AgeAtListingYears() + float64(t+1)/12.0
	accrued := 0
	if onsetOnWaitlist {
		if t >= onsetOffset {
			accrued = t - onsetOffset
		}
	} else if p.OnDialysisAtListing {
		accrued = t
	}
	dialysisYears := p.DialysisYearsAtListing + float64(accrued)/12.0
	return &MonthlyRecord{
		PID:                p.PID,
		PIDString:          p.PIDString,
		TimeIndex:          t,
		AgeYears:           age,
		DialysisYears:      dialysisYears,
		OnDialysis:         dialysisYears > 0,
		Diabetes:           p.Diabetes,
		PreviousTransplant: p.PreviousTransplant,
		Race:               p.Race,
	}
}

// ExpandPatient turns one static patient record into the ordered sequence of
// monthly records covering the patient's waitlist period: months_total+1
// rows with contiguous time indexes starting at 0. It returns an exclusion
// instead of rows when the record cannot be expanded, and an optional
// data-quality warning.
func ExpandPatient(p *Patient) ([]*MonthlyRecord, *Exclusion, *Exclusion) {
	var warning *Exclusion
	end, ok := resolveEndDate(p)
	if !ok {
		return nil, &Exclusion{PIDString: p.PIDString, Reason: ReasonMissingRequiredField,
			Detail: "no removal date and no last listing date to resolve an end date"}, nil
	}
	waitDays := DaysBetween(p.ListingDate, end)
	if waitDays < 0 {
		return nil, &Exclusion{PIDString: p.PIDString, Reason: ReasonInvalidTemporalOrder,
			Detail: fmt.Sprint("negative wait time of ", waitDays, " days")}, nil
	}
	if p.DialysisStartDate != nil &&
		DaysBetween(*p.DialysisStartDate, p.ListingDate) > dialysisDateToleranceDays {
		return nil, &Exclusion{PIDString: p.PIDString, Reason: ReasonInvalidTemporalOrder,
			Detail: "dialysis start date precedes listing date beyond tolerance"}, nil
	}
	if p.StartedOnWaitlist == DialysisYes && p.DialysisStartDate == nil {
		warning = &Exclusion{PIDString: p.PIDString, Reason: ReasonAmbiguousDialysisOnset,
			Detail: "dialysis flagged as started on the waitlist but the onset date is missing; treated as not yet started"}
	}
	if p.StartedOnWaitlist == DialysisUnknown && p.DialysisStartDate == nil && !p.OnDialysisAtListing {
		warning = &Exclusion{PIDString: p.PIDString, Reason: ReasonUnknownDialysisCoercion,
			Detail: "unknown mid-waitlist dialysis state treated as never dialyzed"}
	}
	monthsTotal := monthsOnWaitlist(waitDays)
	onsetOnWaitlist, onsetOffset := dialysisOnset(p)
	rows := make([]*MonthlyRecord, 0, monthsTotal+1)
	for t := 0; t <= monthsTotal; t++ {
		rows = append(rows, monthlyRecord(p, t, monthsTotal, onsetOffset, onsetOnWaitlist))
	}
	return rows, nil, warning
}

// ExpandAll expands every patient in the map into monthly records. The
// expansion runs in parallel over patients since rows of one patient never
// depend on another patient. The returned panel is ordered by PID, then by
// time index, so repeated runs on the same input produce identical output.
func ExpandAll(patients *PatientMap) ([]*MonthlyRecord, *Report) {
	pids := make([]int, 0, len(patients.PIDMap))
	for pid := range patients.PIDMap {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	type expansion struct {
		rows   []*MonthlyRecord
		report *Report
	}
	result := parallel.RangeReduce(0, len(pids), 0, func(low, high int) interface{} {
		local := &expansion{report: &Report{}}
		for _, pid := range pids[low:high] {
			p := patients.PIDMap[pid]
			rows, excluded, warning := ExpandPatient(p)
			if excluded != nil {
				local.report.Excluded = append(local.report.Excluded, excluded)
				continue
			}
			if warning != nil {
				local.report.Warnings = append(local.report.Warnings, warning)
			}
			local.rows = append(local.rows, rows...)
		}
		return local
	}, func(result1, result2 interface{}) interface{} {
		r1 := result1.(*expansion)
		r2 := result2.(*expansion)
		r1.rows = append(r1.rows, r2.rows...)
		r1.report.Excluded = append(r1.report.Excluded, r2.report.Excluded...)
		r1.report.Warnings = append(r1.report.Warnings, r2.report.Warnings...)
		return r1
	})
	combined := result.(*expansion)
	sort.SliceStable(combined.rows, func(i, j int) bool {
		if combined.rows[i].PID != combined.rows[j].PID {
			return combined.rows[i].PID < combined.rows[j].PID
		}
		return combined.rows[i].TimeIndex < combined.rows[j].TimeIndex
	})
	sort.Slice(combined.report.Excluded, func(i, j int) bool {
		return combined.report.Excluded[i].PIDString < combined.report.Excluded[j].PIDString
	})
	sort.Slice(combined.report.Warnings, func(i, j int) bool {
		return combined.report.Warnings[i].PIDString < combined.report.Warnings[j].PIDString
	})
	return combined.rows, combined.report
}
