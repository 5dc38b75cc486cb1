// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package jsontests

import (
	"bytes"
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// Record runs the given fixture on the configured interpreter and returns a
// copy of it expecting the observed outcome. The fixture is run twice and
// differing outcomes are reported as an ExecutionError. Executions ending with an error
// produce a fixture expecting a failure; all others produce a fixture
// expecting the observed output, gas left, full post state, and logs.
func Record(f *fixture.Fixture, cfg Config) (*fixture.Fixture, *Outcome, error) {
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}
	inputs, err := BuildInputs(f)
	if err != nil {
		return nil, nil, err
	}
	outcome, err := Execute(cfg.Interpreter, inputs, cfg.Revision, cfg.Limits)
	if err != nil {
		return nil, nil, err
	}
	repeated, err := Execute(cfg.Interpreter, inputs, cfg.Revision, cfg.Limits)
	if err != nil {
		return nil, nil, err
	}
	if err := compareOutcomes(outcome, repeated); err != nil {
		return nil, nil, &ExecutionError{Cause: err}
	}

	res := *f
	res.Expected = nil
	if outcome.Reason.IsError() {
		return &res, outcome, nil
	}

	logsHash, err := LogsHash(outcome.Logs)
	if err != nil {
		return nil, nil, &ExecutionError{Cause: err}
	}
	output := bytes.Clone(outcome.Output)
	if output == nil {
		output = []byte{}
	}
	res.Expected = &fixture.ExpectedOutcome{
		Output:   output,
		GasLeft:  fixture.NewQuantity(uint64(outcome.GasLeft)),
		Post:     toFixtureState(outcome.PostState),
		LogsHash: &logsHash,
	}
	return &res, outcome, nil
}

// compareOutcomes reports differences in the reason, output, gas left, and
// post state of two outcomes.
func compareOutcomes(a, b *Outcome) error {
	if a.Reason != b.Reason || !bytes.Equal(a.Output, b.Output) || a.GasLeft != b.GasLeft {
		return fmt.Errorf("non-deterministic result: %v with output 0x%x and %d gas left, then %v with output 0x%x and %d gas left",
			a.Reason, []byte(a.Output), a.GasLeft, b.Reason, []byte(b.Output), b.GasLeft)
	}
	if !a.PostState.Equal(b.PostState) {
		return fmt.Errorf("non-deterministic post state:\n\t%s", strings.Join(a.PostState.Diff(b.PostState), "\n\t"))
	}
	return nil
}

// toFixtureState converts a world state into the representation used by
// fixtures. Empty accounts and zero slots are omitted.
func toFixtureState(state WorldState) fixture.State {
	res := fixture.State{}
	for address, account := range state {
		if account.IsEmpty() && len(account.Storage) == 0 {
			continue
		}
		storage := fixture.Storage{}
		for key, value := range account.Storage {
			if value == (tosca.Word{}) {
				continue
			}
			storage = append(storage, fixture.Slot{
				Key:   fixture.QuantityFromBig(new(big.Int).SetBytes(key[:])),
				Value: fixture.QuantityFromBig(new(big.Int).SetBytes(value[:])),
			})
		}
		slices.SortFunc(storage, func(a, b fixture.Slot) int {
			return a.Key.Cmp(b.Key)
		})
		res[address] = fixture.Account{
			Balance: fixture.QuantityFromBig(account.Balance.ToBig()),
			Nonce:   fixture.QuantityFromBig(account.Nonce.ToBig()),
			Code:    bytes.Clone(account.Code),
			Storage: storage,
		}
	}
	return res
}
