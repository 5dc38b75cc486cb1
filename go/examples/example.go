// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package examples provides contracts with a (int)->int entry point and Go
// reference implementations of the computed functions. They are the source
// of recorded fixtures.
package examples

import (
	"fmt"

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// Example is an executable description of a contract and an entry point with
// a (int)->int signature.
type Example struct {
	Name string
	Code []byte
	// MinRevision is the oldest revision supporting all instructions of Code.
	MinRevision tosca.Revision
	function    uint32        // identifier of the function in the contract to be called
	reference   func(int) int // a reference function computing the same function
}

// Address is the account the example code is installed at in fixtures.
var Address = tosca.Address{0x0f, 0x57, 0x2e, 0x52, 0x95, 0xc5, 0x7f, 0x15, 0x88, 0x6f}

// sender is the caller and origin of the transaction in fixtures.
var sender = tosca.Address{0xcd, 0x17, 0x22, 0xf3, 0x94, 0x7d, 0xef, 0x4c, 0xf1, 0x44}

// GetAllExamples lists all examples, sorted by name.
func GetAllExamples() []Example {
	return []Example{
		GetArithmeticExample(),
		GetGasBurnerExample(),
		GetJumpdestAnalysisExample(),
		GetPush1AnalysisExample(),
		GetPush32AnalysisExample(),
		GetSha3Example(),
		GetStaticOverheadExample(),
		GetStopAnalysisExample(),
	}
}

// Input encodes the call of the example's entry point with the given argument.
func (e *Example) Input(argument int) []byte {
	// see details of argument encoding: t.ly/kBl6
	data := make([]byte, 4+32) // parameter is padded up to 32 bytes

	// encode function selector in big-endian format
	data[0] = byte(e.function >> 24)
	data[1] = byte(e.function >> 16)
	data[2] = byte(e.function >> 8)
	data[3] = byte(e.function)

	// encode argument as a big-endian value
	data[4+28] = byte(argument >> 24)
	data[5+28] = byte(argument >> 16)
	data[6+28] = byte(argument >> 8)
	data[7+28] = byte(argument)

	return data
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

// Fixture creates a fixture calling the example's entry point with the given
// argument and gas. The fixture carries no expected outcome.
func (e *Example) Fixture(argument int, gas uint64) *fixture.Fixture {
	return &fixture.Fixture{
		Name: fmt.Sprintf("%s_%d", e.Name, argument),
		Env: fixture.Environment{
			Difficulty: fixture.NewQuantity(0x0100),
			GasLimit:   fixture.NewQuantity(gas),
			Number:     fixture.NewQuantity(0),
			Timestamp:  fixture.NewQuantity(1),
		},
		Pre: fixture.State{
			Address: {
				Balance: fixture.NewQuantity(0),
				Nonce:   fixture.NewQuantity(0),
				Code:    e.Code,
			},
		},
		Transaction: fixture.Transaction{
			Address:  Address,
			Caller:   sender,
			Origin:   sender,
			Value:    fixture.NewQuantity(0),
			GasPrice: fixture.NewQuantity(1),
			Gas:      fixture.NewQuantity(gas),
			Code:     e.Code,
			Data:     e.Input(argument),
		},
	}
}

// DecodeOutput extracts the integer result of an example from its output.
func DecodeOutput(output []byte) (int, error) {
	if len(output) != 32 {
		return 0, fmt.Errorf("unexpected length of output; wanted 32, got %d", len(output))
	}
	return (int(output[28]) << 24) | (int(output[29]) << 16) | (int(output[30]) << 8) | (int(output[31]) << 0), nil
}
