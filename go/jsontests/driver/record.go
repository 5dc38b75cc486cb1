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
	"os"

	"github.com/Fantom-foundation/vmtests/go/examples"
	"github.com/Fantom-foundation/vmtests/go/jsontests"
	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var RecordCmd = cli.Command{
	Action: doRecord,
	Name:   "record",
	Usage:  "Record fixtures for the example contracts using an interpreter as a reference",
	Flags: []cli.Flag{
		&EngineFlag.flag,
		&RecordRevisionFlag.flag,
		&FilterFlag.flag,
		&GasFlag.flag,
		&ArgumentsFlag.flag,
		&OutputFlag.flag,
	},
}

func doRecord(context *cli.Context) error {
	interpreter, err := EngineFlag.Fetch(context)
	if err != nil {
		return err
	}
	revision, err := RecordRevisionFlag.Fetch(context)
	if err != nil {
		return err
	}
	filter, err := FilterFlag.Fetch(context)
	if err != nil {
		return err
	}

	cfg := jsontests.DefaultConfig(interpreter)
	cfg.Revision = revision
	gas := GasFlag.Fetch(context)

	fixtures := []*fixture.Fixture{}
	for _, example := range examples.GetAllExamples() {
		if !filter.MatchString(example.Name) {
			continue
		}
		if example.MinRevision > revision {
			log.Warn("Skipping example", "name", example.Name, "required", example.MinRevision, "revision", revision)
			continue
		}
		for _, argument := range ArgumentsFlag.Fetch(context) {
			recorded, err := recordExample(example, argument, gas, cfg)
			if err != nil {
				return err
			}
			log.Debug("Recorded fixture", "name", recorded.Name)
			fixtures = append(fixtures, recorded)
		}
	}

	data, err := fixture.Marshal(fixtures)
	if err != nil {
		return err
	}

	path := OutputFlag.Fetch(context)
	if path == "" {
		_, err := context.App.Writer.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write fixtures: %w", err)
	}
	fmt.Fprintf(context.App.Writer, "Recorded %d fixtures in %s\n", len(fixtures), path)
	return nil
}

// recordExample records the call of an example with the given argument and
// checks the recorded result against the example's reference function.
func recordExample(example examples.Example, argument int, gas uint64, cfg jsontests.Config) (*fixture.Fixture, error) {
	recorded, outcome, err := jsontests.Record(example.Fixture(argument, gas), cfg)
	if err != nil {
		return nil, err
	}
	if !outcome.Reason.IsSucceed() {
		return nil, fmt.Errorf("example %s(%d) ended with %v", example.Name, argument, outcome.Reason)
	}
	got, err := examples.DecodeOutput(outcome.Output)
	if err != nil {
		return nil, fmt.Errorf("example %s(%d): %w", example.Name, argument, err)
	}
	if want := example.RunReference(argument); want != got {
		return nil, fmt.Errorf("example %s(%d) produced %d, reference computes %d", example.Name, argument, got, want)
	}
	return recorded, nil
}
