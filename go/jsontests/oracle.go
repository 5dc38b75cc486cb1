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

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
)

// Verify checks the outcome of an execution against the expectations of the
// given fixture. A fixture without an expected outcome requires the execution
// to end with an error. Otherwise the return value, the post state, the gas
// left, and, if given, the logs hash are checked in this order. The first
// failing check is reported as an OutcomeMismatchError.
func Verify(f *fixture.Fixture, outcome *Outcome) error {
	if err := f.Validate(); err != nil {
		return err
	}

	if f.ExpectsFailure() {
		if !outcome.Reason.IsError() {
			return &OutcomeMismatchError{
				Check:    CheckExitReason,
				Expected: "an error",
				Actual:   outcome.Reason.String(),
			}
		}
		return nil
	}

	expected := f.Expected
	if !bytes.Equal(expected.Output, outcome.Output) {
		return &OutcomeMismatchError{
			Check:    CheckOutput,
			Expected: fmt.Sprintf("0x%x", expected.Output),
			Actual:   fmt.Sprintf("0x%x", []byte(outcome.Output)),
		}
	}

	post, err := BuildWorldState("post", expected.Post)
	if err != nil {
		return err
	}
	if diffs := outcome.PostState.Expect(post); len(diffs) > 0 {
		return &OutcomeMismatchError{
			Check:    CheckPostState,
			Expected: fmt.Sprintf("%d listed accounts", len(post)),
			Actual:   fmt.Sprintf("%d differences", len(diffs)),
			Diffs:    diffs,
		}
	}

	gasLeft, err := toGas("gas", expected.GasLeft)
	if err != nil {
		return err
	}
	if gasLeft != outcome.GasLeft {
		return &OutcomeMismatchError{
			Check:    CheckGasLeft,
			Expected: fmt.Sprintf("%d", gasLeft),
			Actual:   fmt.Sprintf("%d", outcome.GasLeft),
		}
	}

	if expected.LogsHash != nil {
		hash, err := LogsHash(outcome.Logs)
		if err != nil {
			return &ExecutionError{Cause: fmt.Errorf("failed to hash logs: %w", err)}
		}
		if hash != *expected.LogsHash {
			return &OutcomeMismatchError{
				Check:    CheckLogs,
				Expected: expected.LogsHash.String(),
				Actual:   fmt.Sprintf("%v (%d logs)", hash, len(outcome.Logs)),
			}
		}
	}
	return nil
}
