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

package main

import (
	"bytes"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"epts/app"
	"epts/match"
	"epts/score"
	"epts/waitlist"
)

/*
Epts is a tool for computing time-varying EPTS scores over kidney waitlist data.

Usage:
	epts candidateFile outputPath [flags]

Example:
	epts candidates.csv ./results/ --name adults --pfilters adult --match --treated dialysis --iter 400

The flags are:

--scoreTable file
	Load the raw-score-to-percentile mapping from a tab separated file instead of using the
	embedded EPTS-2015 table. Each line holds one ascending threshold and its percentile 0..99.
	This is how future score revisions are used without code changes.
--scoreVersion string
	The version label for a table passed with --scoreTable.
--name string
	Sets the name of the run. This name is used to generate names for output files.
--pfilters id | pediatric | adult | diabetic | nondiabetic | preemptive | dialysis | retransplant
	A list of filters for selecting the candidates to expand and score.
--match
	If this flag is passed, a propensity-score matching step runs after scoring and the matched
	pairs and balance diagnostics are outputted to file.
--treated filter
	The filter that defines the treated group for matching, e.g. dialysis to match candidates on
	dialysis at listing against pre-emptively listed candidates.
--iter nr
	Sets the number of permutation iterations for the balance diagnostics. If iter is 400, the
	estimated p-values are within 0.05 of the true p-values. For iter = 10000, they are within
	0.01 of the true p-values.
--nrOfThreads nr
	The number of threads epts uses.
*/

const (
	programVersion = 0.1
	programName    = "epts"
)

func programMessage() string {
	return fmt.Sprint(programName, " version ", programVersion, " compiled with ", runtime.Version())
}

const eptsHelp = "\nepts parameters:\n" +
	"epts candidateFile outputPath\n" +
	"[--scoreTable file]\n" +
	"[--scoreVersion string]\n" +
	"[--name string]\n" +
	"[--pfilters id | pediatric | adult | diabetic | nondiabetic | preemptive | dialysis | retransplant]\n" +
	"[--match]\n" +
	"[--treated pediatric | adult | diabetic | nondiabetic | preemptive | dialysis | retransplant]\n" +
	"[--iter nr]\n" +
	"[--nrOfThreads nr]\n"

func parseFlags(flags flag.FlagSet, requiredArgs int, help string) {
	if len(os.Args) < requiredArgs {
		fmt.Fprintln(os.Stderr, "Incorrect number of parameters.")
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	flags.SetOutput(ioutil.Discard)
	if err := flags.Parse(os.Args[requiredArgs:]); err != nil {
		x := 0
		if err != flag.ErrHelp {
			fmt.Fprint(os.Stderr, err)
		}
		fmt.Fprint(os.Stderr, help)
		os.Exit(x)
	}
	if flags.NArg() > 0 {
		fmt.Fprint(os.Stderr, "Cannot parse remaining parameters:", flags.Args())
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
}

func getFileName(s, help string) string {
	switch s {
	case "-h", "--h", "-help", "--help":
		fmt.Fprint(os.Stderr, help)
		os.Exit(1)
	}
	return s
}

func getPatientFilter(s string) waitlist.PatientFilter {
	id := func(p *waitlist.Patient) bool { return true }
	switch s {
	case "id":
		return id
	case "pediatric":
		return waitlist.PediatricFilter()
	case "adult":
		return waitlist.AdultFilter()
	case "diabetic":
		return waitlist.DiabeticFilter()
	case "nondiabetic":
		return waitlist.NonDiabeticFilter()
	case "preemptive":
		return waitlist.PreemptiveFilter()
	case "dialysis":
		return waitlist.DialysisAtListingFilter()
	case "retransplant":
		return waitlist.RetransplantFilter()
	default:
		return id
	}
}

func getPatientFilters(f string) []waitlist.PatientFilter {
	fs := strings.Split(f, ",")
	result := []waitlist.PatientFilter{}
	for _, f := range fs {
		result = append(result, getPatientFilter(f))
	}
	return result
}

func main() {
	var (
		// required parameters
		candidateFile string //The file with candidate waitlist registrations
		outputPath    string //The path where output files are written.
		// optional flags
		scoreTable   string
		scoreVersion string
		name         string
		pfilters     string
		doMatch      bool
		treated      string
		iter         int
		nrOfThreads  int
	)
	var flags flag.FlagSet
	// options for the epts command
	flags.StringVar(&scoreTable, "scoreTable", "", "A tab separated file with the raw-score-to-"+
		"percentile mapping to use instead of the embedded EPTS-2015 table.")
	flags.StringVar(&scoreVersion, "scoreVersion", "custom", "The version label for a table "+
		"passed with --scoreTable.")
	flags.StringVar(&name, "name", "exp1", "The name of the run. This is used to generate the "+
		"names of the output files.")
	flags.StringVar(&pfilters, "pfilters", "id", "A list of pfilters to restrict analysis on specific "+
		"candidates.")
	flags.BoolVar(&doMatch, "match", false, "Run the propensity-score matching step and output "+
		"the matched pairs and balance diagnostics")
	flags.StringVar(&treated, "treated", "dialysis", "The filter that defines the treated group "+
		"for matching.")
	flags.IntVar(&iter, "iter", 10000, "The number of permutation iterations for the balance "+
		"diagnostics")
	flags.IntVar(&nrOfThreads, "nrOfThreads", 0, "The number of threads epts uses.")
	// parse optional arguments
	parseFlags(flags, 3, eptsHelp)
	// parse required arguments
	candidateFile = getFileName(os.Args[1], eptsHelp)
	outputPath, _ = filepath.Abs(getFileName(os.Args[2], eptsHelp))
	outputPath = outputPath + string(filepath.Separator)
	fmt.Println("Output path: ", outputPath)
	// create output directory
	err := os.MkdirAll(filepath.Dir(outputPath), 0700)
	if err != nil {
		panic(err)
	}
	// build an output command line
	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " ", candidateFile, " ", outputPath)
	if scoreTable != "" {
		fmt.Fprint(&command, " --scoreTable ", scoreTable)
		fmt.Fprint(&command, " --scoreVersion ", scoreVersion)
	}
	fmt.Fprint(&command, " --name ", name)
	fmt.Fprint(&command, " --pfilters ", pfilters)
	if doMatch {
		fmt.Fprint(&command, " --match")
		fmt.Fprint(&command, " --treated ", treated)
		fmt.Fprint(&command, " --iter ", iter)
	}
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nrOfThreads ", nrOfThreads)
	}
	// start execution
	log.Println(programMessage())
	log.Println("Executing command:\n", command.String())
	//1. Load the score table artifact. A table that fails to load is fatal to the whole run.
	table := score.DefaultTable()
	if scoreTable != "" {
		table, err = score.LoadTable(scoreVersion, scoreTable)
		if err != nil {
			log.Fatal("Cannot load score table: ", err)
		}
	}
	fmt.Println("Score table version: ", table.Version)
	//2. Parse the candidate registrations and restrict to the requested subpopulation.
	patients, parseReport, err := app.ParseWaitlistData(candidateFile)
	if err != nil {
		log.Fatal("Cannot parse candidate file: ", err)
	}
	patients = waitlist.ApplyPatientFilters(getPatientFilters(pfilters), patients)
	meanAge, stdDevAge, meanDialysis, stdDevDialysis, diabetic, dialysis := waitlist.MetricsFromPatients(patients)
	fmt.Println("Candidates after filtering: ", len(patients.PIDMap))
	fmt.Println("Age at listing: mean ", meanAge, " sd ", stdDevAge)
	fmt.Println("Dialysis years at listing: mean ", meanDialysis, " sd ", stdDevDialysis)
	fmt.Println("Diabetic: ", diabetic, " On dialysis at listing: ", dialysis)
	//3. Expand the panel and score each candidate-month.
	rows, report := waitlist.ExpandAll(patients)
	report.Excluded = append(parseReport.Excluded, report.Excluded...)
	report.Warnings = append(parseReport.Warnings, report.Warnings...)
	score.ScorePanel(table, rows)
	fmt.Println("Expanded ", len(patients.PIDMap)-countExcluded(patients, report), " candidates into ", len(rows), " candidate-months.")
	//4. Emit the scored panel and the exclusion report.
	app.WritePanel(filepath.Join(outputPath, fmt.Sprintf("%s.panel.tsv", name)), rows)
	app.WriteExclusions(filepath.Join(outputPath, fmt.Sprintf("%s.exclusions.tsv", name)), report)
	app.PrintExclusionSummary(report)
	//5. Optionally run the propensity-score matching step.
	if doMatch {
		fmt.Println("Propensity-score matching with treated group: ", treated)
		candidates := matchingCandidates(patients, report, getPatientFilter(treated))
		if err := match.EstimatePropensity(candidates); err != nil {
			log.Fatal("Cannot estimate propensity scores: ", err)
		}
		pairs := match.MatchPairs(candidates)
		fmt.Println("Matched ", len(pairs), " treated/control pairs from ", len(candidates), " candidates.")
		balance := match.Balance(candidates, pairs, iter)
		app.WriteMatchedPairs(filepath.Join(outputPath, fmt.Sprintf("%s.pairs.tsv", name)), pairs)
		app.WriteBalanceTable(filepath.Join(outputPath, fmt.Sprintf("%s.balance.tsv", name)), balance)
	}
}

// countExcluded counts the patients of the map that the report excludes.
func countExcluded(patients *waitlist.PatientMap, report *waitlist.Report) int {
	ctr := 0
	for _, e := range report.Excluded {
		if _, ok := patients.PIDStringMap[e.PIDString]; ok {
			ctr++
		}
	}
	return ctr
}

// matchingCandidates builds the matching units for all patients that
// survived expansion, with the treated group defined by the given filter.
func matchingCandidates(patients *waitlist.PatientMap, report *waitlist.Report, treatedFilter waitlist.PatientFilter) []*match.Candidate {
	excluded := map[string]bool{}
	for _, e := range report.Excluded {
		excluded[e.PIDString] = true
	}
	pids := make([]int, 0, len(patients.PIDMap))
	for pid := range patients.PIDMap {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	candidates := []*match.Candidate{}
	for _, pid := range pids {
		p := patients.PIDMap[pid]
		if excluded[p.PIDString] {
			continue
		}
		candidates = append(candidates, match.NewCandidate(p, treatedFilter(p)))
	}
	return candidates
}
