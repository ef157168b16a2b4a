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

package match

import (
	"fmt"
	"math"
	"sort"

	"github.com/kshedden/statmodel/glm"
	"github.com/kshedden/statmodel/statmodel"

	"epts/waitlist"
)

// Propensity score matching of waitlist candidates. A logistic regression on
// the listing covariates estimates each candidate's probability of belonging
// to the treated group, and every treated candidate is paired with its
// nearest untreated neighbor in propensity, without replacement. The
// covariates are candidate characteristics only, never donor
// characteristics, since those are exogenous to treatment assignment.

// CovariateNames lists the matching covariates, in the order they appear in
// every candidate's covariate vector.
var CovariateNames = []string{"ageAtListing", "dialysisYears", "neverDialyzed", "diabetes", "previousTransplant"}

// Candidate is one matching unit: a candidate's covariates at listing, the
// treatment indicator, and the fitted propensity score.
type Candidate struct {
	PID        int
	PIDString  string
	Treated    bool
	X          []float64 //covariate vector, ordered as CovariateNames
	Propensity float64
}

// Pair is one matched treated/control couple.
type Pair struct {
	Treated, Control *Candidate
}

// NewCandidate builds the matching unit for a patient from its listing
// covariates.
func NewCandidate(p *waitlist.Patient, treated bool) *Candidate {
	neverDialyzed := 0.0
	if !p.OnDialysisAtListing && p.DialysisYearsAtListing == 0 {
		neverDialyzed = 1.0
	}
	diabetes := 0.0
	if p.Diabetes {
		diabetes = 1.0
	}
	prevTx := 0.0
	if p.PreviousTransplant {
		prevTx = 1.0
	}
	return &Candidate{
		PID:       p.PID,
		PIDString: p.PIDString,
		Treated:   treated,
		X:         []float64{p.AgeAtListingYears(), p.DialysisYearsAtListing, neverDialyzed, diabetes, prevTx},
	}
}

// EstimatePropensity fits a logistic regression of the treatment indicator
// on the matching covariates and fills in the propensity score of every
// candidate. The intercept column is explicit, as the glm library requires.
func EstimatePropensity(candidates []*Candidate) error {
	if len(candidates) == 0 {
		return fmt.Errorf("propensity model: no candidates")
	}
	nTreated := 0
	for _, c := range candidates {
		if c.Treated {
			nTreated++
		}
	}
	if nTreated == 0 || nTreated == len(candidates) {
		return fmt.Errorf("propensity model: need both treated and untreated candidates, got %d treated out of %d",
			nTreated, len(candidates))
	}
	names := append([]string{"icept"}, CovariateNames...)
	names = append(names, "treated")
	da := make([][]float64, len(names))
	for _, c := range candidates {
		da[0] = append(da[0], 1.0)
		for j, x := range c.X {
			da[1+j] = append(da[1+j], x)
		}
		treated := 0.0
		if c.Treated {
			treated = 1.0
		}
		da[len(names)-1] = append(da[len(names)-1], treated)
	}
	data := statmodel.NewDataset(da, names)
	xnames := append([]string{"icept"}, CovariateNames...)
	config := glm.DefaultConfig()
	config.Family = glm.NewFamily(glm.BinomialFamily)
	model, err := glm.NewGLM(data, "treated", xnames, config)
	if err != nil {
		return err
	}
	result := model.Fit()
	params := result.Params()
	for _, c := range candidates {
		eta := params[0]
		for j, x := range c.X {
			eta = eta + params[1+j]*x
		}
		c.Propensity = 1.0 / (1.0 + math.Exp(-eta))
	}
	return nil
}

// MatchPairs greedily pairs every treated candidate with the nearest
// untreated candidate in propensity, without replacement. Treated candidates
// are visited in descending propensity order, so the hardest-to-match
// candidates pick first. Unmatched candidates are dropped. The result is
// deterministic for a given input: ties break on the control's PID.
func MatchPairs(candidates []*Candidate) []*Pair {
	var treated, controls []*Candidate
	for _, c := range candidates {
		if c.Treated {
			treated = append(treated, c)
		} else {
			controls = append(controls, c)
		}
	}
	sort.SliceStable(treated, func(i, j int) bool {
		if treated[i].Propensity != treated[j].Propensity {
			return treated[i].Propensity > treated[j].Propensity
		}
		return treated[i].PID < treated[j].PID
	})
	sort.SliceStable(controls, func(i, j int) bool {
		if controls[i].Propensity != controls[j].Propensity {
			return controls[i].Propensity > controls[j].Propensity
		}
		return controls[i].PID < controls[j].PID
	})
	matched := make([]bool, len(controls))
	pairs := []*Pair{}
	for _, t := range treated {
		best := -1
		bestDist := math.Inf(1)
		for i, c := range controls {
			if matched[i] {
				continue
			}
			dist := math.Abs(t.Propensity - c.Propensity)
			if dist < bestDist {
				bestDist = dist
				best = i
			}
		}
		if best == -1 {
			break //controls exhausted
		}
		matched[best] = true
		pairs = append(pairs, &Pair{Treated: t, Control: controls[best]})
	}
	return pairs
}
