// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package tosca

import "fmt"

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package tosca

// Interpreter is a component capable of executing EVM byte-code. It is the
// only capability of an EVM implementation the test harness depends on: code,
// input, call context, gas, and configuration go in; an exit reason, the
// return value, the remaining gas, and the pending state changes come out.
// To obtain an Interpreter instance, client code should use NewInterpreter()
// provided by the registry file in this package.
type Interpreter interface {
	// Run executes the code provided by the parameters in the specified context
	// and returns the processing result. The resulting error is nil whenever the
	// code was correctly executed (even if the execution was aborted due do to
	// a code-internal issue, which is reported through the exit reason). The
	// error is not nil if some problem within the interpreter caused the
	// execution to fail to correctly process the provided program. In such a
	// case the result is undefined. During a call with an unsupported Revision
	// an ErrUnsupportedRevision Error is returned.
	// Interpreters are required to be thread-safe. Thus, multiple runs may be
	// conducted in parallel.
	Run(Parameters) (Result, error)
}

// Parameters summarizes the list of input parameters required for executing code.
type Parameters struct {
	BlockParameters
	TransactionParameters
	CallContext
	Context  RunContext
	Revision Revision
	Limits   Limits
	Gas      Gas
	Input    Data
	CodeHash *Hash // < optional, computed by the interpreter if missing
	Code     Code
}

// BlockParameters contains information about the current block, also known
// as the vicinity of an execution.
type BlockParameters struct {
	BlockNumber Value
	Coinbase    Address
	Timestamp   Value
	Difficulty  Value
	GasLimit    Value
	// BlockHashes lists the hashes of preceding blocks, the most recent one
	// (BlockNumber-1) first.
	BlockHashes []Hash
}

// TransactionParameters contains information about current transaction.
type TransactionParameters struct {
	Origin   Address
	GasPrice Value
}

// CallContext defines the identity of the running code: the account whose
// code is executed, the account calling it, and the value passed along.
type CallContext struct {
	Address       Address
	Caller        Address
	ApparentValue Value
}

// Limits defines the resource bounds of the machine running the code.
type Limits struct {
	StackDepth int
	MemorySize int
}

const (
	// DefaultStackLimit is the maximum number of entries on the stack.
	DefaultStackLimit = 1024
	// DefaultMemoryLimit is the maximum number of addressable bytes in memory.
	DefaultMemoryLimit = 1_000_000
)

// DefaultLimits are the limits of a machine as defined by the EVM.
var DefaultLimits = Limits{
	StackDepth: DefaultStackLimit,
	MemorySize: DefaultMemoryLimit,
}

// Result summarizes the result of a EVM code computation.
type Result struct {
	Reason  ExitReason
	Output  Data
	GasLeft Gas
	// Changes lists the pending modifications of the world state. Runs that
	// do not succeed report no changes.
	Changes []Change
	Logs    []Log
}

// ErrUnsupportedRevision is reported for runs with a revision not covered
// by an interpreter.
type ErrUnsupportedRevision struct {
	Revision Revision
}

func (e *ErrUnsupportedRevision) Error() string {
	return fmt.Sprintf("unsupported revision %v", e.Revision)
}
