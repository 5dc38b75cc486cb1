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

//go:generate mockgen -source world_state.go -destination world_state_mock.go -package tosca

// WorldState is a read-only view on the state of the block chain as it is
// seen by an interpreter during a single run. The state of the chain is a
// collection of accounts, each with a balance, a nonce, optional code and
// storage. Non-existing accounts report zero values for all their fields.
//
// Modifications are never written through this interface. Instead, an
// interpreter reports its pending modifications as a list of Change records
// in its Result, which are applied by the owner of the state afterwards.
type WorldState interface {
	AccountExists(Address) bool

	GetBalance(Address) Value
	GetNonce(Address) Value

	GetCode(Address) Code
	GetCodeHash(Address) Hash
	GetCodeSize(Address) int

	GetStorage(Address, Key) Word
}

// RunContext extends the world state by the block-level information an
// interpreter may query while running code.
type RunContext interface {
	WorldState

	// GetBlockHash returns the hash of the block with the given number, or
	// the zero hash if the block is not covered by the environment.
	GetBlockHash(number Value) Hash
}

// Change describes the modification of a single account resulting from an
// execution. Changes are applied in order by the owner of the world state.
type Change struct {
	Address Address
	// Deleted marks an account to be removed from the state. All other
	// fields are to be ignored if set.
	Deleted bool
	Balance Value
	Nonce   Value
	// Code is the new code of the account, nil if the code is unchanged.
	Code Code
	// Storage lists the updated slots. A zero word removes a slot.
	Storage map[Key]Word
	// ResetStorage requests the removal of all slots not listed in Storage.
	ResetStorage bool
}
