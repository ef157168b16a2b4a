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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"epts/waitlist"
)

//The epts program has one tabular data input: a csv file with one row per
//candidate, in the registry extract's legacy column naming. The header row
//is mapped onto the normalized patient record here, so the core packages
//never see the legacy names. Expected columns:
//PX_ID                          candidate identifier
//CAN_LISTING_DT                 earliest listing date, yyyy-mm-dd
//CAN_LISTING_DT_LAST            latest listing date across centers
//CAN_REM_DT                     removal/transplant date, may be empty
//CAN_AGE_IN_MONTHS_AT_LISTING   age at listing in months
//CAN_DIAL_STAT                  on dialysis at listing: Y, N, or U
//CAN_DIAL_YEARS                 years on dialysis at listing
//CAN_DIAL_DT                    dialysis start date when started at or after listing
//CAN_PREV_TX                    previous transplant: Y or N
//CAN_DIAB                       diabetes: Y, N, or U
//CAN_RACE                       race category, carried through unused

var requiredColumns = []string{
	"PX_ID", "CAN_LISTING_DT", "CAN_LISTING_DT_LAST", "CAN_REM_DT",
	"CAN_AGE_IN_MONTHS_AT_LISTING", "CAN_DIAL_STAT", "CAN_DIAL_YEARS",
	"CAN_DIAL_DT", "CAN_PREV_TX", "CAN_DIAB", "CAN_RACE",
}

// parseRegistryDate turns a yyyy-mm-dd date string into a waitlist date.
// Empty or malformed strings yield no date.
func parseRegistryDate(date string) (*waitlist.Date, bool) {
	if len(date) != 10 {
		return nil, false
	}
	year, err := strconv.Atoi(date[0:4])
	if err != nil {
		return nil, false
	}
	month, err := strconv.Atoi(date[5:7])
	if err != nil {
		return nil, false
	}
	day, err := strconv.Atoi(date[8:10])
	if err != nil {
		return nil, false
	}
	return &waitlist.Date{Year: year, Month: month, Day: day}, true
}

// columnIndex maps the legacy header onto column positions. A missing
// required column is a structural error that fails the whole run.
func columnIndex(header []string) (map[string]int, error) {
	index := map[string]int{}
	for i, name := range header {
		index[name] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("input is missing required column %s", name)
		}
	}
	return index, nil
}

// ParseWaitlistData parses a csv file with candidate registrations in the
// legacy registry format into a patient map. Rows that lack a required field
// are excluded and recorded with their reason; one bad row never aborts the
// parse. Structural problems with the file itself return an error.
func ParseWaitlistData(file string) (*waitlist.PatientMap, *waitlist.Report, error) {
	csvFile, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := csvFile.Close(); err != nil {
			panic(err)
		}
	}()
	reader := csv.NewReader(csvFile)
	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("cannot read header of %s: %v", file, err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, nil, err
	}
	patients := waitlist.NewPatientMap()
	report := &waitlist.Report{}
	ctr := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		ctr++
		pidString := record[index["PX_ID"]]
		listingDate, ok := parseRegistryDate(record[index["CAN_LISTING_DT"]])
		if !ok {
			report.Excluded = append(report.Excluded, &waitlist.Exclusion{PIDString: pidString,
				Reason: waitlist.ReasonMissingRequiredField, Detail: "no parsable listing date"})
			continue
		}
		ageMonths, err := strconv.Atoi(record[index["CAN_AGE_IN_MONTHS_AT_LISTING"]])
		if err != nil {
			report.Excluded = append(report.Excluded, &waitlist.Exclusion{PIDString: pidString,
				Reason: waitlist.ReasonMissingRequiredField, Detail: "no parsable age at listing"})
			continue
		}
		diab := record[index["CAN_DIAB"]]
		if diab != "Y" && diab != "N" {
			// The score formula assumes diabetes is always resolvable;
			// an unresolved flag is a data-quality error, not a zero.
			report.Excluded = append(report.Excluded, &waitlist.Exclusion{PIDString: pidString,
				Reason: waitlist.ReasonMissingRequiredField, Detail: "diabetes flag not resolvable"})
			continue
		}
		prevTx := record[index["CAN_PREV_TX"]]
		if prevTx != "Y" && prevTx != "N" {
			report.Excluded = append(report.Excluded, &waitlist.Exclusion{PIDString: pidString,
				Reason: waitlist.ReasonMissingRequiredField, Detail: "previous transplant flag not resolvable"})
			continue
		}
		dialysisYears := 0.0
		if s := record[index["CAN_DIAL_YEARS"]]; s != "" {
			if dialysisYears, err = strconv.ParseFloat(s, 64); err != nil {
				report.Excluded = append(report.Excluded, &waitlist.Exclusion{PIDString: pidString,
					Reason: waitlist.ReasonMissingRequiredField, Detail: "no parsable dialysis duration"})
				continue
			}
		}
		lastListingDate, _ := parseRegistryDate(record[index["CAN_LISTING_DT_LAST"]])
		removalDate, _ := parseRegistryDate(record[index["CAN_REM_DT"]])
		dialysisStartDate, _ := parseRegistryDate(record[index["CAN_DIAL_DT"]])
		dialStat := record[index["CAN_DIAL_STAT"]]
		started := waitlist.DialysisNo
		switch {
		case dialysisStartDate != nil:
			started = waitlist.DialysisYes
		case dialStat == "U":
			started = waitlist.DialysisUnknown
		}
		patient := &waitlist.Patient{
			PIDString:              pidString,
			ListingDate:            *listingDate,
			LastListingDate:        lastListingDate,
			RemovalDate:            removalDate,
			AgeAtListingMonths:     ageMonths,
			OnDialysisAtListing:    dialStat == "Y",
			DialysisYearsAtListing: dialysisYears,
			DialysisStartDate:      dialysisStartDate,
			StartedOnWaitlist:      started,
			PreviousTransplant:     prevTx == "Y",
			Diabetes:               diab == "Y",
			Race:                   record[index["CAN_RACE"]],
		}
		waitlist.AddPatient(patients, patient)
	}
	fmt.Println("Parsed waitlist data.")
	fmt.Print("Parsed ", ctr, " candidate rows of which ", patients.Ctr, " usable, ")
	fmt.Println(len(report.Excluded), " excluded at parse time.")
	fmt.Println("Candidates on dialysis at listing: ", patients.DialysisCtr, ", diabetic: ", patients.DiabeticCtr)
	return patients, report, nil
}
