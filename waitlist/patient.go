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
	"time"
)

// DialysisStatus distinguishes a confirmed dialysis state from an unknown
// one. Legacy registry extracts conflate "never dialyzed" with "unknown";
// keeping the tag at the boundary lets the expander apply the documented
// missing-as-zero behavior while still reporting it in the data-quality
// diagnostics.
type DialysisStatus int

const (
	DialysisNo DialysisStatus = iota
	DialysisYes
	DialysisUnknown
)

// Date represents a waitlist event date, with fields for representing the
// year, month, and day of the event.
type Date struct {
	Year, Month, Day int
}

// DateBefore returns true when d1 falls strictly before d2.
func DateBefore(d1, d2 Date) bool {
	if d1.Year < d2.Year {
		return true
	}
	if d1.Year > d2.Year {
		return false
	}
	if d1.Month < d2.Month {
		return true
	}
	if d1.Month > d2.Month {
		return false
	}
	return d1.Day < d2.Day
}

// DaysBetween returns the number of calendar days from d1 to d2. The result
// is negative when d2 falls before d1.
func DaysBetween(d1, d2 Date) int {
	t1 := time.Date(d1.Year, time.Month(d1.Month), d1.Day, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(d2.Year, time.Month(d2.Month), d2.Day, 0, 0, 0, 0, time.UTC)
	return int(t2.Sub(t1).Hours() / 24)
}

// Patient represents the static waitlist registration of one transplant
// candidate: the covariates known at listing plus the dates that bound the
// observation window. Monthly records are derived from this, never the other
// way around.
type Patient struct {
	PID                    int            //analysis ID
	PIDString              string         //ID from the registry extract
	ListingDate            Date           //earliest listing date across concurrent listings
	LastListingDate        *Date          //latest listing date, backfills a missing removal date
	RemovalDate            *Date          //date of transplant or removal, may be absent
	AgeAtListingMonths     int            //age at listing in months
	OnDialysisAtListing    bool           //already on dialysis when listed
	DialysisYearsAtListing float64        //years on dialysis at listing, 0 if never dialyzed
	DialysisStartDate      *Date          //onset date when dialysis started at or after listing
	StartedOnWaitlist      DialysisStatus //did dialysis start while waiting; Unknown when the extract cannot tell
	PreviousTransplant     bool
	Diabetes               bool
	Race                   string //carried through to the output, not used in scoring
}

// AgeAtListingYears returns the candidate's age at listing in years.
func (p *Patient) AgeAtListingYears() float64 {
	return float64(p.AgeAtListingMonths) / 12.0
}

// PatientMap contains all patient information parsed from the input.
type PatientMap struct {
	PIDStringMap map[string]int   //maps patient string id onto an int PID
	Ctr          int              //total nr of patients parsed, also used for creating PIDs
	PIDMap       map[int]*Patient //maps PID onto a patient object
	// optional info for logging
	DiabeticCtr int
	DialysisCtr int
}

// NewPatientMap creates an empty patient map.
func NewPatientMap() *PatientMap {
	return &PatientMap{PIDStringMap: map[string]int{}, PIDMap: map[int]*Patient{}}
}

// AddPatient registers a patient in a patient map and assigns its analysis
// PID. Patients already present keep their original entry.
func AddPatient(patients *PatientMap, p *Patient) *Patient {
	if pid, ok := patients.PIDStringMap[p.PIDString]; ok {
		return patients.PIDMap[pid]
	}
	patients.Ctr++ // avoid using 0 as PID
	p.PID = patients.Ctr
	patients.PIDStringMap[p.PIDString] = p.PID
	patients.PIDMap[p.PID] = p
	if p.Diabetes {
		patients.DiabeticCtr++
	}
	if p.OnDialysisAtListing {
		patients.DialysisCtr++
	}
	return p
}

// GetPatient retrieves from a patient map the patient object associated with
// a given patient ID. The patient ID is passed as a string and refers to the
// ID that occurs in the input.
func GetPatient(pidString string, patients *PatientMap) (*Patient, bool) {
	pid, ok := patients.PIDStringMap[pidString]
	if !ok {
		return &Patient{}, false
	}
	patient, ok := patients.PIDMap[pid]
	return patient, ok
}
