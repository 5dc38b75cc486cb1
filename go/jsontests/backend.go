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
	"slices"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// MemoryBackend is an in-memory world state serving as the run context of a
// single execution. It is read-only for the engine; the changes reported by
// the engine are applied afterwards.
type MemoryBackend struct {
	state WorldState
	block tosca.BlockParameters
	logs  []tosca.Log
}

var _ tosca.RunContext = (*MemoryBackend)(nil)

// NewMemoryBackend creates a backend holding a copy of the given state.
func NewMemoryBackend(state WorldState, block tosca.BlockParameters) *MemoryBackend {
	if state == nil {
		state = WorldState{}
	}
	return &MemoryBackend{
		state: state.Clone(),
		block: block,
	}
}

// AccountExists is false for absent and for empty accounts.
func (b *MemoryBackend) AccountExists(address tosca.Address) bool {
	account, found := b.state[address]
	return found && !account.IsEmpty()
}

func (b *MemoryBackend) GetBalance(address tosca.Address) tosca.Value {
	return b.state[address].Balance
}

func (b *MemoryBackend) GetNonce(address tosca.Address) tosca.Value {
	return b.state[address].Nonce
}

func (b *MemoryBackend) GetCode(address tosca.Address) tosca.Code {
	return b.state[address].Code
}

func (b *MemoryBackend) GetCodeHash(address tosca.Address) tosca.Hash {
	if !b.AccountExists(address) {
		return tosca.Hash{}
	}
	return tosca.Keccak256(b.state[address].Code)
}

func (b *MemoryBackend) GetCodeSize(address tosca.Address) int {
	return len(b.state[address].Code)
}

func (b *MemoryBackend) GetStorage(address tosca.Address, key tosca.Key) tosca.Word {
	return b.state[address].Storage[key]
}

// GetBlockHash returns the hash of block n taken from the block hashes of
// the environment, which list the most recent block first. The zero hash is
// returned for the current block, future blocks, and blocks not covered.
func (b *MemoryBackend) GetBlockHash(n tosca.Value) tosca.Hash {
	current := b.block.BlockNumber
	if n.Cmp(current) >= 0 {
		return tosca.Hash{}
	}
	distance := tosca.Sub(tosca.Sub(current, n), tosca.NewValue(1)).ToUint256()
	if !distance.IsUint64() || distance.Uint64() >= uint64(len(b.block.BlockHashes)) {
		return tosca.Hash{}
	}
	return b.block.BlockHashes[distance.Uint64()]
}

// Apply updates the state by the given changes, in order, and records the
// given logs.
func (b *MemoryBackend) Apply(changes []tosca.Change, logs []tosca.Log) {
	for _, change := range changes {
		if change.Deleted {
			delete(b.state, change.Address)
			continue
		}
		account := b.state[change.Address]
		account.Balance = change.Balance
		account.Nonce = change.Nonce
		if change.Code != nil {
			account.Code = slices.Clone(change.Code)
		}
		if change.ResetStorage {
			account.Storage = nil
		}
		for key, value := range change.Storage {
			if value == (tosca.Word{}) {
				delete(account.Storage, key)
				continue
			}
			if account.Storage == nil {
				account.Storage = Storage{}
			}
			account.Storage[key] = value
		}
		b.state[change.Address] = account
	}
	b.logs = append(b.logs, logs...)
}

// State returns a copy of the current state.
func (b *MemoryBackend) State() WorldState {
	return b.state.Clone()
}

// Logs returns the logs recorded so far.
func (b *MemoryBackend) Logs() []tosca.Log {
	return slices.Clone(b.logs)
}
