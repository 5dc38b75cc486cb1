// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package fixture provides the typed model of VM conformance test fixtures
// and their decoding from the JSON format of the ethereum/tests VMTests.
package fixture

import (
	"fmt"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// Fixture is a single conformance test: an initial world state, the
// environment and the transaction to execute, and, optionally, the expected
// outcome. A fixture without an expected outcome requires the execution to
// fail.
type Fixture struct {
	Name        string
	Env         Environment
	Pre         State
	Transaction Transaction
	Expected    *ExpectedOutcome
}

// Environment describes the block an execution is embedded in.
type Environment struct {
	Coinbase   tosca.Address
	Difficulty *Quantity
	GasLimit   *Quantity
	Number     *Quantity
	Timestamp  *Quantity
}

// Transaction describes the single call executed by a fixture. The code is
// run as the code of the target account.
type Transaction struct {
	Address  tosca.Address
	Caller   tosca.Address
	Origin   tosca.Address
	Value    *Quantity
	GasPrice *Quantity
	Gas      *Quantity
	Code     []byte
	Data     []byte
}

// ExpectedOutcome is the result a successful execution has to produce. Post
// may be partial: only the accounts and slots it lists are checked.
type ExpectedOutcome struct {
	Output  []byte
	GasLeft *Quantity
	Post    State
	// LogsHash is the optional keccak256 hash of the RLP encoded logs.
	LogsHash *tosca.Hash
}

// State is a world state snapshot as given by a fixture.
type State map[tosca.Address]Account

// Account is the state of a single account as given by a fixture.
type Account struct {
	Balance *Quantity
	Nonce   *Quantity
	Code    []byte
	Storage Storage
}

// Storage lists the slots of an account ordered by their key.
type Storage []Slot

// Slot is a single storage entry.
type Slot struct {
	Key   *Quantity
	Value *Quantity
}

// ExpectsFailure is true if the fixture requires the execution to fail.
func (f *Fixture) ExpectsFailure() bool {
	return f.Expected == nil
}

// Validate checks the structural invariants of a fixture. The decoder
// enforces them for fixtures read from files; fixtures assembled in code
// are checked before they are run.
func (f *Fixture) Validate() error {
	fail := func(format string, args ...any) error {
		return newMalformedFixtureError(f.Name, format, args...)
	}

	env := f.Env
	if env.Difficulty == nil || env.GasLimit == nil || env.Number == nil || env.Timestamp == nil {
		return fail("incomplete environment")
	}
	tx := f.Transaction
	if tx.Value == nil || tx.GasPrice == nil || tx.Gas == nil {
		return fail("incomplete transaction")
	}
	if err := f.Pre.validate(); err != nil {
		return fail("invalid pre state: %v", err)
	}

	if f.Expected == nil {
		return nil
	}
	if f.Expected.GasLeft == nil {
		return fail("expected output without expected gas left")
	}
	if f.Expected.Post == nil {
		return fail("expected output without expected post state")
	}
	if err := f.Expected.Post.validate(); err != nil {
		return fail("invalid post state: %v", err)
	}
	return nil
}

func (s State) validate() error {
	for addr, account := range s {
		if account.Balance == nil || account.Nonce == nil {
			return fmt.Errorf("account %v lacks balance or nonce", addr)
		}
		for _, slot := range account.Storage {
			if slot.Key == nil || slot.Value == nil {
				return fmt.Errorf("account %v has an incomplete storage slot", addr)
			}
		}
	}
	return nil
}
