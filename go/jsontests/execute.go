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
	"fmt"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// Outcome is the observable result of executing the inputs of a fixture.
type Outcome struct {
	Reason    tosca.ExitReason
	Output    tosca.Data
	GasLeft   tosca.Gas
	PostState WorldState
	Logs      []tosca.Log
}

// Execute runs the code of the given inputs on the given interpreter using a
// fresh memory backend. Changes reported by the interpreter are applied to
// the backend only for successful runs. Failures of the interpreter and
// results violating basic gas constraints are reported as ExecutionErrors.
func Execute(interpreter tosca.Interpreter, inputs *Inputs, revision tosca.Revision, limits tosca.Limits) (*Outcome, error) {
	if interpreter == nil {
		return nil, &ExecutionError{Cause: ErrNoInterpreter}
	}
	backend := NewMemoryBackend(inputs.State, inputs.Block)

	result, err := interpreter.Run(tosca.Parameters{
		BlockParameters:       inputs.Block,
		TransactionParameters: inputs.Transaction,
		CallContext:           inputs.Call,
		Context:               backend,
		Revision:              revision,
		Limits:                limits,
		Gas:                   inputs.Gas,
		Input:                 inputs.Data,
		Code:                  inputs.Code,
	})
	if err != nil {
		return nil, &ExecutionError{Cause: err}
	}
	if result.GasLeft < 0 || result.GasLeft > inputs.Gas {
		return nil, &ExecutionError{
			Cause: fmt.Errorf("invalid gas left %d for gas limit %d", result.GasLeft, inputs.Gas),
		}
	}

	if result.Reason.IsSucceed() {
		backend.Apply(result.Changes, result.Logs)
	}

	return &Outcome{
		Reason:    result.Reason,
		Output:    result.Output,
		GasLeft:   result.GasLeft,
		PostState: backend.State(),
		Logs:      backend.Logs(),
	}, nil
}
