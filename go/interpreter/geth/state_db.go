// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package geth

import (
	"math"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	geth "github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"
)

// transferFunc subtracts amount from sender and adds amount to recipient.
func transferFunc(stateDB geth.StateDB, callerAddress common.Address, to common.Address, value *uint256.Int) {
	stateDB.SubBalance(callerAddress, value, tracing.BalanceChangeTransfer)
	stateDB.AddBalance(to, value, tracing.BalanceChangeTransfer)
}

func canTransferFunc(stateDB geth.StateDB, callerAddress common.Address, value *uint256.Int) bool {
	return stateDB.GetBalance(callerAddress).Cmp(value) >= 0
}

// stateDbAdapter adapts a substate for its usage as a geth.StateDB.
type stateDbAdapter struct {
	state *substate
}

var _ geth.StateDB = (*stateDbAdapter)(nil)

func (s *stateDbAdapter) CreateAccount(addr common.Address) {
	s.state.createAccount(tosca.Address(addr))
}

func (s *stateDbAdapter) CreateContract(common.Address) {
	// ignored: only relevant for EIP-6780, introduced after Istanbul
}

func (s *stateDbAdapter) SubBalance(addr common.Address, diff *uint256.Int, _ tracing.BalanceChangeReason) {
	account := tosca.Address(addr)
	cur := s.state.getBalance(account)
	s.state.setBalance(account, tosca.Sub(cur, tosca.ValueFromUint256(diff)))
}

func (s *stateDbAdapter) AddBalance(addr common.Address, diff *uint256.Int, _ tracing.BalanceChangeReason) {
	account := tosca.Address(addr)
	cur := s.state.getBalance(account)
	s.state.setBalance(account, tosca.Add(cur, tosca.ValueFromUint256(diff)))
}

func (s *stateDbAdapter) GetBalance(addr common.Address) *uint256.Int {
	return s.state.getBalance(tosca.Address(addr)).ToUint256()
}

// GetNonce saturates nonces exceeding the 64-bit range of geth.
func (s *stateDbAdapter) GetNonce(addr common.Address) uint64 {
	nonce := s.state.getNonce(tosca.Address(addr)).ToUint256()
	if !nonce.IsUint64() {
		return math.MaxUint64
	}
	return nonce.Uint64()
}

func (s *stateDbAdapter) SetNonce(addr common.Address, nonce uint64) {
	s.state.setNonce(tosca.Address(addr), tosca.NewValue(nonce))
}

func (s *stateDbAdapter) GetCodeHash(addr common.Address) common.Hash {
	account := tosca.Address(addr)
	if !s.state.exists(account) {
		return common.Hash{}
	}
	return common.Hash(s.state.getCodeHash(account))
}

func (s *stateDbAdapter) GetCode(addr common.Address) []byte {
	return s.state.getCode(tosca.Address(addr))
}

func (s *stateDbAdapter) SetCode(addr common.Address, code []byte) {
	s.state.setCode(tosca.Address(addr), code)
}

func (s *stateDbAdapter) GetCodeSize(addr common.Address) int {
	return len(s.state.getCode(tosca.Address(addr)))
}

func (s *stateDbAdapter) AddRefund(value uint64) {
	s.state.addRefund(value)
}

func (s *stateDbAdapter) SubRefund(value uint64) {
	s.state.subRefund(value)
}

func (s *stateDbAdapter) GetRefund() uint64 {
	return s.state.refund
}

func (s *stateDbAdapter) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(s.state.getCommittedStorage(tosca.Address(addr), tosca.Key(key)))
}

func (s *stateDbAdapter) GetState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(s.state.getStorage(tosca.Address(addr), tosca.Key(key)))
}

func (s *stateDbAdapter) SetState(addr common.Address, key common.Hash, value common.Hash) {
	s.state.setStorage(tosca.Address(addr), tosca.Key(key), tosca.Word(value))
}

func (s *stateDbAdapter) GetStorageRoot(addr common.Address) common.Hash {
	// ignored: only consulted for contract creation collisions after Cancun
	return common.Hash{}
}

func (s *stateDbAdapter) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	return common.Hash(s.state.getTransientStorage(tosca.Address(addr), tosca.Key(key)))
}

func (s *stateDbAdapter) SetTransientState(addr common.Address, key, value common.Hash) {
	s.state.setTransientStorage(tosca.Address(addr), tosca.Key(key), tosca.Word(value))
}

func (s *stateDbAdapter) SelfDestruct(addr common.Address) {
	s.state.selfDestruct(tosca.Address(addr))
}

func (s *stateDbAdapter) HasSelfDestructed(addr common.Address) bool {
	return s.state.hasSelfDestructed(tosca.Address(addr))
}

func (s *stateDbAdapter) Selfdestruct6780(addr common.Address) {
	s.state.selfDestruct(tosca.Address(addr))
}

func (s *stateDbAdapter) Exist(addr common.Address) bool {
	return s.state.exists(tosca.Address(addr))
}

func (s *stateDbAdapter) Empty(addr common.Address) bool {
	return s.GetBalance(addr).IsZero() && s.state.getNonce(tosca.Address(addr)).IsZero() && s.GetCodeSize(addr) == 0
}

func (s *stateDbAdapter) AddressInAccessList(addr common.Address) bool {
	return s.state.isAddressAccessed(tosca.Address(addr))
}

func (s *stateDbAdapter) SlotInAccessList(addr common.Address, slot common.Hash) (addressOk bool, slotOk bool) {
	return s.state.isSlotAccessed(tosca.Address(addr), tosca.Key(slot))
}

func (s *stateDbAdapter) AddAddressToAccessList(addr common.Address) {
	s.state.accessAccount(tosca.Address(addr))
}

func (s *stateDbAdapter) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.state.accessStorage(tosca.Address(addr), tosca.Key(slot))
}

func (s *stateDbAdapter) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	if !rules.IsBerlin {
		return
	}
	s.AddAddressToAccessList(sender)
	if dest != nil {
		s.AddAddressToAccessList(*dest)
	}
	for _, addr := range precompiles {
		s.AddAddressToAccessList(addr)
	}
	for _, el := range txAccesses {
		s.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			s.AddSlotToAccessList(el.Address, key)
		}
	}
	if rules.IsShanghai {
		s.AddAddressToAccessList(coinbase)
	}
}

func (s *stateDbAdapter) RevertToSnapshot(snapshot int) {
	s.state.restore(snapshot)
}

func (s *stateDbAdapter) Snapshot() int {
	return s.state.snapshot()
}

func (s *stateDbAdapter) AddLog(log *types.Log) {
	topics := make([]tosca.Hash, 0, len(log.Topics))
	for _, cur := range log.Topics {
		topics = append(topics, tosca.Hash(cur))
	}
	s.state.emitLog(tosca.Log{
		Address: tosca.Address(log.Address),
		Topics:  topics,
		Data:    tosca.Data(log.Data),
	})
}

func (s *stateDbAdapter) AddPreimage(common.Hash, []byte) {
	// ignored: preimages are not recorded
}

func (s *stateDbAdapter) ForEachStorage(common.Address, func(common.Hash, common.Hash) bool) error {
	panic("should not be needed in test environments")
}

func (s *stateDbAdapter) PointCache() *utils.PointCache {
	// see https://eips.ethereum.org/EIPS/eip-4762
	panic("should not be needed by revisions up to Istanbul")
}

func (s *stateDbAdapter) Witness() *stateless.Witness {
	return nil
}
