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
	"strings"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// StateConversionError is reported if a field of a fixture can not be
// represented in the range required by the execution engine.
type StateConversionError struct {
	// Field is the path of the offending field, e.g. "pre/0x01../balance".
	Field string
	Value string
	// Limit names the violated range.
	Limit string
}

func (e *StateConversionError) Error() string {
	return fmt.Sprintf("failed to convert %s: value %s exceeds %s range", e.Field, e.Value, e.Limit)
}

// ExecutionError is reported if the execution of a fixture could not be
// conducted, e.g. because the engine failed or reported an invalid result.
type ExecutionError struct {
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed: %v", e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ErrNoInterpreter is the cause of ExecutionErrors of runs lacking an
// interpreter.
const ErrNoInterpreter = tosca.ConstError("no interpreter")

// The checks conducted by the oracle, named in OutcomeMismatchErrors.
const (
	CheckExitReason = "exit reason"
	CheckOutput     = "return value"
	CheckPostState  = "post state"
	CheckGasLeft    = "gas left"
	CheckLogs       = "logs"
)

// OutcomeMismatchError is reported if the outcome of an execution does not
// satisfy the expectations of a fixture.
type OutcomeMismatchError struct {
	Check    string
	Expected string
	Actual   string
	// Diffs lists the individual mismatching fields, if applicable.
	Diffs []string
}

func (e *OutcomeMismatchError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s mismatch: expected %s, got %s", e.Check, e.Expected, e.Actual)
	for _, diff := range e.Diffs {
		builder.WriteString("\n\t")
		builder.WriteString(diff)
	}
	return builder.String()
}
