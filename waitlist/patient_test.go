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

package waitlist_test

import (
	"testing"

	"epts/waitlist"
)

func TestDateBefore(t *testing.T) {
	d1 := waitlist.Date{Year: 2020, Month: 3, Day: 15}
	d2 := waitlist.Date{Year: 2020, Month: 3, Day: 16}
	if !waitlist.DateBefore(d1, d2) || waitlist.DateBefore(d2, d1) {
		t.Error("day comparison broken")
	}
	if waitlist.DateBefore(d1, d1) {
		t.Error("a date must not be before itself")
	}
	if !waitlist.DateBefore(waitlist.Date{Year: 2019, Month: 12, Day: 31}, waitlist.Date{Year: 2020, Month: 1, Day: 1}) {
		t.Error("year comparison broken")
	}
}

func TestDaysBetween(t *testing.T) {
	listing := waitlist.Date{Year: 2020, Month: 1, Day: 1}
	removal := waitlist.Date{Year: 2020, Month: 4, Day: 1}
	// 2020 is a leap year: 31 + 29 + 31 days
	if got := waitlist.DaysBetween(listing, removal); got != 91 {
		t.Error("expected 91 days, got ", got)
	}
	if got := waitlist.DaysBetween(removal, listing); got != -91 {
		t.Error("expected -91 days, got ", got)
	}
	if got := waitlist.DaysBetween(listing, listing); got != 0 {
		t.Error("expected 0 days, got ", got)
	}
}

func TestAddPatient(t *testing.T) {
	patients := waitlist.NewPatientMap()
	p := waitlist.AddPatient(patients, &waitlist.Patient{PIDString: "a", Diabetes: true})
	if p.PID != 1 {
		t.Error("expected PID 1, got ", p.PID)
	}
	dup := waitlist.AddPatient(patients, &waitlist.Patient{PIDString: "a"})
	if dup != p || patients.Ctr != 1 {
		t.Error("duplicate registration must keep the original entry")
	}
	if patients.DiabeticCtr != 1 {
		t.Error("diabetic counter not updated")
	}
	if _, ok := waitlist.GetPatient("missing", patients); ok {
		t.Error("lookup of an unknown patient must fail")
	}
}
