// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package jsontests_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/Fantom-foundation/vmtests/go/examples"
	"github.com/Fantom-foundation/vmtests/go/jsontests"
	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/Fantom-foundation/vmtests/go/tosca"
)

func TestRecording_ExamplesRecordedOnGethPassAfterRoundTrip(t *testing.T) {
	cfg := newGethConfig(t)
	cfg.Revision = tosca.R07_Istanbul

	recorded := []*fixture.Fixture{}
	for _, example := range examples.GetAllExamples() {
		for _, argument := range []int{0, 1, 10} {
			t.Run(fmt.Sprintf("%s/%d", example.Name, argument), func(t *testing.T) {
				f, outcome, err := jsontests.Record(example.Fixture(argument, 10_000_000), cfg)
				if err != nil {
					t.Fatalf("failed to record fixture: %v", err)
				}
				if !outcome.Reason.IsSucceed() {
					t.Fatalf("unexpected exit reason %v", outcome.Reason)
				}
				got, err := examples.DecodeOutput(outcome.Output)
				if err != nil {
					t.Fatalf("failed to decode output: %v", err)
				}
				if want := example.RunReference(argument); want != got {
					t.Errorf("unexpected result, wanted %d, got %d", want, got)
				}
				recorded = append(recorded, f)
			})
		}
	}

	data, err := fixture.Marshal(recorded)
	if err != nil {
		t.Fatalf("failed to encode fixtures: %v", err)
	}
	fixtures, err := fixture.Parse(data)
	if err != nil {
		t.Fatalf("failed to parse encoded fixtures: %v", err)
	}
	if want, got := len(recorded), len(fixtures); want != got {
		t.Fatalf("unexpected number of fixtures, wanted %d, got %d", want, got)
	}

	report, err := jsontests.RunSuite(context.Background(), fixtures, cfg, nil)
	if err != nil {
		t.Fatalf("failed to run suite: %v", err)
	}
	if want, got := len(fixtures), report.Passed; want != got {
		t.Errorf("unexpected number of passed fixtures, wanted %d, got %d: %v", want, got, report.Failures())
	}
}

func TestRecording_ExamplesRequiringNewerRevisionsFail(t *testing.T) {
	cfg := newGethConfig(t)
	cfg.Revision = tosca.R00_Frontier

	for _, example := range examples.GetAllExamples() {
		if example.MinRevision <= cfg.Revision {
			continue
		}
		t.Run(example.Name, func(t *testing.T) {
			_, outcome, err := jsontests.Record(example.Fixture(1, 10_000_000), cfg)
			if err != nil {
				t.Fatalf("failed to record fixture: %v", err)
			}
			if outcome.Reason.IsSucceed() {
				t.Errorf("example should not succeed on %v", cfg.Revision)
			}
		})
	}
}
