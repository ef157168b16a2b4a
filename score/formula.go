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

import "math"

// Compute returns the raw EPTS score for one candidate-month. The
// coefficients are fixed by the score definition and must not be altered;
// changing any of them silently shifts every candidate's percentile.
// A missing age or dialysis time (NaN) yields a missing score (NaN).
// Diabetes and previous transplant are assumed resolvable for every
// candidate; records where they are not must be excluded upstream.
func Compute(ageYears float64, diabetes, previousTransplant bool, dialysisYears float64) float64 {
	if math.IsNaN(ageYears) || math.IsNaN(dialysisYears) {
		return math.NaN()
	}
	d := 0.0
	if diabetes {
		d = 1.0
	}
	prevTx := 0.0
	if previousTransplant {
		prevTx = 1.0
	}
	neverDialyzed := 0.0
	if dialysisYears == 0 {
		neverDialyzed = 1.0
	}
	ageOver25 := math.Max(ageYears-25.0, 0.0)
	logDialysis := math.Log(dialysisYears + 1.0)
	return 0.047*ageOver25 - 0.015*d*ageOver25 +
		0.398*prevTx - 0.237*d*prevTx +
		0.315*logDialysis - 0.099*d*logDialysis +
		0.130*neverDialyzed - 0.348*d*neverDialyzed +
		1.262*d
}
