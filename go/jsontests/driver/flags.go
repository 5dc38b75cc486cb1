// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"
	"regexp"
	"runtime"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/urfave/cli/v2"
)

type engineFlagType struct {
	flag cli.StringFlag
}

var EngineFlag = engineFlagType{
	cli.StringFlag{
		Name:    "engine",
		Aliases: []string{"e"},
		Usage:   "the interpreter to run the fixtures on",
		Value:   "geth",
	},
}

func (f *engineFlagType) Fetch(context *cli.Context) (tosca.Interpreter, error) {
	name := context.String(f.flag.Name)
	interpreter, err := tosca.NewInterpreter(name)
	if err != nil {
		return nil, fmt.Errorf("invalid engine %q, use one of %v: %w", name, tosca.GetRegisteredInterpreterNames(), err)
	}
	return interpreter, nil
}

func (f *engineFlagType) name(context *cli.Context) string {
	return context.String(f.flag.Name)
}

type revisionFlagType struct {
	flag cli.StringFlag
}

var RevisionFlag = revisionFlagType{
	cli.StringFlag{
		Name:    "revision",
		Aliases: []string{"r"},
		Usage:   "the revision whose rules the fixtures are run with",
		Value:   tosca.R00_Frontier.String(),
	},
}

func (f *revisionFlagType) Fetch(context *cli.Context) (tosca.Revision, error) {
	return tosca.ParseRevision(context.String(f.flag.Name))
}

type filterFlagType struct {
	flag cli.StringFlag
}

var FilterFlag = filterFlagType{
	cli.StringFlag{
		Name:    "filter",
		Aliases: []string{"f"},
		Usage:   "process only fixtures which name matches the given regex",
		Value:   "",
	},
}

func (f *filterFlagType) Fetch(context *cli.Context) (*regexp.Regexp, error) {
	return regexp.Compile(context.String(f.flag.Name))
}

type jobsFlagType struct {
	flag cli.IntFlag
}

var JobsFlag = jobsFlagType{
	cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of fixtures run simultaneously",
		Value:   runtime.NumCPU(),
	},
}

func (f *jobsFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.flag.Name)
}

type failFastFlagType struct {
	flag cli.BoolFlag
}

var FailFastFlag = failFastFlagType{
	cli.BoolFlag{
		Name:  "fail-fast",
		Usage: "stop running fixtures after the first failure",
	},
}

func (f *failFastFlagType) Fetch(context *cli.Context) bool {
	return context.Bool(f.flag.Name)
}

type verbosityFlagType struct {
	flag cli.IntFlag
}

var VerbosityFlag = verbosityFlagType{
	cli.IntFlag{
		Name:  "verbosity",
		Usage: "log level: 0=crit, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value: 3,
	},
}

func (f *verbosityFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.flag.Name)
}

type cpuProfileType struct {
	flag cli.StringFlag
}

var CpuProfileFlag = cpuProfileType{
	cli.StringFlag{
		Name:      "cpuprofile",
		Usage:     "store CPU profile in the provided filename",
		TakesFile: true,
	},
}

func (f *cpuProfileType) Fetch(context *cli.Context) string {
	return context.String(f.flag.Name)
}

var RecordRevisionFlag = revisionFlagType{
	cli.StringFlag{
		Name:    "revision",
		Aliases: []string{"r"},
		Usage:   "the revision whose rules the fixtures are recorded with",
		Value:   tosca.R07_Istanbul.String(),
	},
}

type gasFlagType struct {
	flag cli.Uint64Flag
}

var GasFlag = gasFlagType{
	cli.Uint64Flag{
		Name:  "gas",
		Usage: "the gas provided to each recorded call",
		Value: 10_000_000,
	},
}

func (f *gasFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.flag.Name)
}

type argumentsFlagType struct {
	flag cli.IntSliceFlag
}

var ArgumentsFlag = argumentsFlagType{
	cli.IntSliceFlag{
		Name:    "arguments",
		Aliases: []string{"a"},
		Usage:   "the arguments each example is called with",
		Value:   cli.NewIntSlice(1, 10),
	},
}

func (f *argumentsFlagType) Fetch(context *cli.Context) []int {
	return context.IntSlice(f.flag.Name)
}

type outputFlagType struct {
	flag cli.StringFlag
}

var OutputFlag = outputFlagType{
	cli.StringFlag{
		Name:      "output",
		Aliases:   []string{"o"},
		Usage:     "the file recorded fixtures are written to, stdout if empty",
		TakesFile: true,
	},
}

func (f *outputFlagType) Fetch(context *cli.Context) string {
	return context.String(f.flag.Name)
}
