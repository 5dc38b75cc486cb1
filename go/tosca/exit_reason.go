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

// ExitReason is the terminal classification of a single execution.
type ExitReason int

const (
	// Normal completion.
	ExitStopped ExitReason = iota
	ExitReturned
	ExitSelfDestructed

	// Explicit revert.
	ExitReverted

	// Code-internal errors.
	ExitOutOfGas
	ExitInvalidOpCode
	ExitInvalidJump
	ExitStackUnderflow
	ExitStackOverflow
	ExitMemoryLimit
	ExitCallTooDeep
	ExitOutOfFund
	ExitCreateCollision
	ExitCreateContractLimit
	ExitWriteProtection
	ExitReturnDataOutOfBounds
	ExitGasUintOverflow
	ExitInvalidCode

	// Failures of the interpreter itself.
	ExitFatal

	numExitReasons int = iota
)

// IsSucceed is true for reasons indicating a normal completion.
func (r ExitReason) IsSucceed() bool {
	return ExitStopped <= r && r <= ExitSelfDestructed
}

// IsRevert is true if the code ended with an explicit revert.
func (r ExitReason) IsRevert() bool {
	return r == ExitReverted
}

// IsError is true for every reason that is neither a normal completion nor
// an explicit revert.
func (r ExitReason) IsError() bool {
	return !r.IsSucceed() && !r.IsRevert()
}

// IsFatal is true if the interpreter itself failed.
func (r ExitReason) IsFatal() bool {
	return r == ExitFatal
}

func (r ExitReason) String() string {
	switch r {
	case ExitStopped:
		return "Succeed(Stopped)"
	case ExitReturned:
		return "Succeed(Returned)"
	case ExitSelfDestructed:
		return "Succeed(SelfDestructed)"
	case ExitReverted:
		return "Revert(Reverted)"
	case ExitOutOfGas:
		return "Error(OutOfGas)"
	case ExitInvalidOpCode:
		return "Error(InvalidOpCode)"
	case ExitInvalidJump:
		return "Error(InvalidJump)"
	case ExitStackUnderflow:
		return "Error(StackUnderflow)"
	case ExitStackOverflow:
		return "Error(StackOverflow)"
	case ExitMemoryLimit:
		return "Error(MemoryLimit)"
	case ExitCallTooDeep:
		return "Error(CallTooDeep)"
	case ExitOutOfFund:
		return "Error(OutOfFund)"
	case ExitCreateCollision:
		return "Error(CreateCollision)"
	case ExitCreateContractLimit:
		return "Error(CreateContractLimit)"
	case ExitWriteProtection:
		return "Error(WriteProtection)"
	case ExitReturnDataOutOfBounds:
		return "Error(ReturnDataOutOfBounds)"
	case ExitGasUintOverflow:
		return "Error(GasUintOverflow)"
	case ExitInvalidCode:
		return "Error(InvalidCode)"
	case ExitFatal:
		return "Fatal(Other)"
	}
	return fmt.Sprintf("ExitReason(%d)", int(r))
}

// GetAllExitReasons lists all known exit reasons.
func GetAllExitReasons() []ExitReason {
	res := make([]ExitReason, 0, numExitReasons)
	for r := ExitReason(0); int(r) < numExitReasons; r++ {
		res = append(res, r)
	}
	return res
}
