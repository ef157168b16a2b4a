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

// PatientFilter prescribes a function type for implementing filters on
// waitlist patients, to be able to expand and score specific subpopulations.
// E.g. pediatric candidates, diabetic candidates, pre-emptively listed
// candidates, etc.
type PatientFilter func(patient *Patient) bool

// ApplyPatientFilters returns a new patient map containing the patients that
// pass all given filters.
func ApplyPatientFilters(filters []PatientFilter, pMap *PatientMap) *PatientMap {
	newPMap := &PatientMap{PIDStringMap: map[string]int{}, PIDMap: map[int]*Patient{}, Ctr: pMap.Ctr}
	for pid, p := range pMap.PIDMap {
		res := true
		for _, filter := range filters {
			res = filter(p) && res
			if !res {
				break
			}
		}
		if res {
			newPMap.PIDStringMap[p.PIDString] = pid
			newPMap.PIDMap[pid] = p
			if p.Diabetes {
				newPMap.DiabeticCtr++
			}
			if p.OnDialysisAtListing {
				newPMap.DialysisCtr++
			}
		}
	}
	return newPMap
}

// PediatricFilter keeps candidates younger than 18 years at listing.
func PediatricFilter() PatientFilter {
	return func(p *Patient) bool {
		return p.AgeAtListingMonths < 18*12
	}
}

// AdultFilter keeps candidates of 18 years or older at listing.
func AdultFilter() PatientFilter {
	return func(p *Patient) bool {
		return p.AgeAtListingMonths >= 18*12
	}
}

// DiabeticFilter keeps candidates with diabetes.
func DiabeticFilter() PatientFilter {
	return func(p *Patient) bool {
		return p.Diabetes
	}
}

// NonDiabeticFilter keeps candidates without diabetes.
func NonDiabeticFilter() PatientFilter {
	return func(p *Patient) bool {
		return !p.Diabetes
	}
}

// PreemptiveFilter keeps candidates that were not yet on dialysis when
// listed.
func PreemptiveFilter() PatientFilter {
	return func(p *Patient) bool {
		return !p.OnDialysisAtListing
	}
}

// DialysisAtListingFilter keeps candidates that were on dialysis when
// listed.
func DialysisAtListingFilter() PatientFilter {
	return func(p *Patient) bool {
		return p.OnDialysisAtListing
	}
}

// RetransplantFilter keeps candidates with a previous transplant.
func RetransplantFilter() PatientFilter {
	return func(p *Patient) bool {
		return p.PreviousTransplant
	}
}
