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

import "math"

// Collecting summary metrics for the parsed population

// MetricsFromPatients computes:
// * mean age at listing + standard deviation for the parsed population
// * mean years on dialysis at listing + standard deviation
// * #diabetic patients, #patients on dialysis at listing
func MetricsFromPatients(patients *PatientMap) (float64, float64, float64, float64, int, int) {
	meanAge := 0.0
	meanDialysis := 0.0
	ctr := 0
	dCtr := 0
	hCtr := 0
	for _, p := range patients.PIDMap {
		ctr++
		meanAge = meanAge + p.AgeAtListingYears()
		meanDialysis = meanDialysis + p.DialysisYearsAtListing
		if p.Diabetes {
			dCtr++
		}
		if p.OnDialysisAtListing {
			hCtr++
		}
	}
	if ctr == 0 {
		return 0, 0, 0, 0, 0, 0
	}
	meanAge = meanAge / float64(ctr)
	meanDialysis = meanDialysis / float64(ctr)
	stdDevAge := 0.0
	stdDevDialysis := 0.0
	for _, p := range patients.PIDMap {
		age := p.AgeAtListingYears()
		stdDevAge = stdDevAge + ((meanAge - age) * (meanAge - age))
		dial := p.DialysisYearsAtListing
		stdDevDialysis = stdDevDialysis + ((meanDialysis - dial) * (meanDialysis - dial))
	}
	stdDevAge = math.Sqrt(stdDevAge / float64(ctr))
	stdDevDialysis = math.Sqrt(stdDevDialysis / float64(ctr))
	return meanAge, stdDevAge, meanDialysis, stdDevDialysis, dCtr, hCtr
}
