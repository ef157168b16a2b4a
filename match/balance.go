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
	"math"

	"github.com/valyala/fastrand"

	"epts/utils"
)

// Balance diagnostics for a matched cohort: the standardized mean difference
// per covariate before and after matching, a permutation p-value for the
// residual post-match imbalance, and a matched-pair sign test. The
// permutation p-values are estimated by resampling; with iter = 400 they are
// within 0.05 of the true p-values, with iter = 10000 within 0.01.

// BalanceRow reports the diagnostics of one matching covariate.
type BalanceRow struct {
	Covariate string
	SMDBefore float64 //standardized mean difference before matching
	SMDAfter  float64 //standardized mean difference on the matched subset
	PValue    float64 //permutation p-value for the post-match imbalance
	SignTest  float64 //binomial sign test on matched-pair differences
}

// meanAndVariance returns the sample mean and variance of a covariate
// column.
func meanAndVariance(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0.0, 0.0
	}
	mean := 0.0
	for _, x := range xs {
		mean = mean + x
	}
	mean = mean / float64(len(xs))
	variance := 0.0
	for _, x := range xs {
		variance = variance + ((x - mean) * (x - mean))
	}
	return mean, variance / float64(len(xs))
}

// standardizedMeanDifference computes the scale-free imbalance between a
// treated and a control column: the difference of means divided by the
// pooled standard deviation. Zero spread in both groups means zero
// imbalance.
func standardizedMeanDifference(treated, controls []float64) float64 {
	meanT, varT := meanAndVariance(treated)
	meanC, varC := meanAndVariance(controls)
	pooled := math.Sqrt((varT + varC) / 2.0)
	if pooled == 0 {
		return 0.0
	}
	return (meanT - meanC) / pooled
}

// covariateColumns splits one covariate of a candidate list into a treated
// and a control column.
func covariateColumns(candidates []*Candidate, j int) ([]float64, []float64) {
	var treated, controls []float64
	for _, c := range candidates {
		if c.Treated {
			treated = append(treated, c.X[j])
		} else {
			controls = append(controls, c.X[j])
		}
	}
	return treated, controls
}

// permutationPValue estimates the chance of observing an absolute
// standardized mean difference at least as large as the observed one when
// treatment labels are assigned at random within the matched subset.
func permutationPValue(treated, controls []float64, observed float64, iter int) float64 {
	pooled := append(append([]float64{}, treated...), controls...)
	nTreated := len(treated)
	observed = math.Abs(observed)
	hits := 0
	for i := 0; i < iter; i++ {
		// Fisher-Yates shuffle of the pooled column
		for k := len(pooled) - 1; k > 0; k-- {
			l := int(fastrand.Uint32n(uint32(k + 1)))
			pooled[k], pooled[l] = pooled[l], pooled[k]
		}
		smd := standardizedMeanDifference(pooled[:nTreated], pooled[nTreated:])
		if math.Abs(smd) >= observed {
			hits++
		}
	}
	return float64(hits) / float64(iter)
}

// signTest runs a binomial sign test on the matched-pair differences of one
// covariate: under balance, the treated member of a pair exceeds its control
// in about half of the pairs. Tied pairs are discarded.
func signTest(pairs []*Pair, j int) float64 {
	n := 0
	greater := 0
	for _, pair := range pairs {
		if pair.Treated.X[j] == pair.Control.X[j] {
			continue
		}
		n++
		if pair.Treated.X[j] > pair.Control.X[j] {
			greater++
		}
	}
	if n == 0 {
		return 1.0
	}
	return utils.BinomialCdf(0.5, n, utils.MaxInt(greater, n-greater))
}

// Balance computes per-covariate diagnostics for a matched cohort. The
// candidates slice is the full pre-match population; the pairs are the
// matched subset.
func Balance(candidates []*Candidate, pairs []*Pair, iter int) []*BalanceRow {
	matched := make([]*Candidate, 0, 2*len(pairs))
	for _, pair := range pairs {
		matched = append(matched, pair.Treated, pair.Control)
	}
	rows := make([]*BalanceRow, len(CovariateNames))
	for j, name := range CovariateNames {
		treatedBefore, controlsBefore := covariateColumns(candidates, j)
		treatedAfter, controlsAfter := covariateColumns(matched, j)
		smdBefore := standardizedMeanDifference(treatedBefore, controlsBefore)
		smdAfter := standardizedMeanDifference(treatedAfter, controlsAfter)
		rows[j] = &BalanceRow{
			Covariate: name,
			SMDBefore: smdBefore,
			SMDAfter:  smdAfter,
			PValue:    permutationPValue(treatedAfter, controlsAfter, smdAfter, iter),
			SignTest:  signTest(pairs, j),
		}
	}
	return rows
}
