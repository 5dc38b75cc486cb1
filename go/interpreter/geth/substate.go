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
	"bytes"
	"maps"
	"slices"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

// substate is a journaled overlay on top of a read-only tosca.RunContext. All
// modifications performed during a run are recorded in the overlay and can be
// rolled back to any snapshot. At the end of a run, the accumulated
// modifications are exported as a list of tosca.Change records.
type substate struct {
	backend  tosca.RunContext
	accounts map[tosca.Address]*overlayAccount

	selfDestructed map[tosca.Address]bool
	transient      map[slot]tosca.Word
	accessedAddrs  map[tosca.Address]bool
	accessedSlots  map[slot]bool

	logs   []tosca.Log
	refund uint64
	undo   []func()
}

type slot struct {
	addr tosca.Address
	key  tosca.Key
}

// overlayAccount is the modified version of an account. Fields are loaded
// from the backend when the account is first touched.
type overlayAccount struct {
	balance     tosca.Value
	nonce       tosca.Value
	code        tosca.Code
	codeChanged bool
	// storage holds all slots written during the run.
	storage map[tosca.Key]tosca.Word
	// storageReset hides all backend slots of the account.
	storageReset bool
}

func (a *overlayAccount) clone() *overlayAccount {
	res := *a
	res.storage = maps.Clone(a.storage)
	return &res
}

func newSubstate(backend tosca.RunContext) *substate {
	return &substate{
		backend:        backend,
		accounts:       map[tosca.Address]*overlayAccount{},
		selfDestructed: map[tosca.Address]bool{},
		transient:      map[slot]tosca.Word{},
		accessedAddrs:  map[tosca.Address]bool{},
		accessedSlots:  map[slot]bool{},
	}
}

func (s *substate) exists(addr tosca.Address) bool {
	if _, found := s.accounts[addr]; found {
		return true
	}
	return s.backend.AccountExists(addr)
}

func (s *substate) getBalance(addr tosca.Address) tosca.Value {
	if account, found := s.accounts[addr]; found {
		return account.balance
	}
	return s.backend.GetBalance(addr)
}

func (s *substate) getNonce(addr tosca.Address) tosca.Value {
	if account, found := s.accounts[addr]; found {
		return account.nonce
	}
	return s.backend.GetNonce(addr)
}

func (s *substate) getCode(addr tosca.Address) tosca.Code {
	if account, found := s.accounts[addr]; found {
		return account.code
	}
	return s.backend.GetCode(addr)
}

func (s *substate) getCodeHash(addr tosca.Address) tosca.Hash {
	if account, found := s.accounts[addr]; found {
		if !account.codeChanged {
			return s.backend.GetCodeHash(addr)
		}
		return tosca.Keccak256(account.code)
	}
	return s.backend.GetCodeHash(addr)
}

func (s *substate) getStorage(addr tosca.Address, key tosca.Key) tosca.Word {
	if account, found := s.accounts[addr]; found {
		if value, found := account.storage[key]; found {
			return value
		}
		if account.storageReset {
			return tosca.Word{}
		}
	}
	return s.backend.GetStorage(addr, key)
}

// getCommittedStorage returns the value of a slot at the beginning of the run.
func (s *substate) getCommittedStorage(addr tosca.Address, key tosca.Key) tosca.Word {
	return s.backend.GetStorage(addr, key)
}

// modify runs the given update on the overlay version of the account,
// recording the previous version in the journal.
func (s *substate) modify(addr tosca.Address, update func(*overlayAccount)) {
	original, found := s.accounts[addr]
	var modified *overlayAccount
	if found {
		modified = original.clone()
	} else {
		modified = &overlayAccount{
			balance: s.backend.GetBalance(addr),
			nonce:   s.backend.GetNonce(addr),
			code:    s.backend.GetCode(addr),
		}
	}
	update(modified)
	s.accounts[addr] = modified
	s.undo = append(s.undo, func() {
		if found {
			s.accounts[addr] = original
		} else {
			delete(s.accounts, addr)
		}
	})
}

func (s *substate) touch(addr tosca.Address) {
	if _, found := s.accounts[addr]; !found {
		s.modify(addr, func(*overlayAccount) {})
	}
}

func (s *substate) setBalance(addr tosca.Address, value tosca.Value) {
	s.modify(addr, func(a *overlayAccount) { a.balance = value })
}

func (s *substate) setNonce(addr tosca.Address, value tosca.Value) {
	s.modify(addr, func(a *overlayAccount) { a.nonce = value })
}

func (s *substate) setCode(addr tosca.Address, code tosca.Code) {
	code = bytes.Clone(code)
	s.modify(addr, func(a *overlayAccount) {
		a.code = code
		a.codeChanged = true
	})
}

func (s *substate) setStorage(addr tosca.Address, key tosca.Key, value tosca.Word) {
	s.modify(addr, func(a *overlayAccount) {
		if a.storage == nil {
			a.storage = map[tosca.Key]tosca.Word{}
		}
		a.storage[key] = value
	})
}

// createAccount resets the nonce, code, and storage of the given account
// while retaining its balance.
func (s *substate) createAccount(addr tosca.Address) {
	s.modify(addr, func(a *overlayAccount) {
		a.nonce = tosca.Value{}
		a.code = nil
		a.codeChanged = true
		a.storage = nil
		a.storageReset = true
	})
}

func (s *substate) selfDestruct(addr tosca.Address) {
	s.setBalance(addr, tosca.Value{})
	if s.selfDestructed[addr] {
		return
	}
	s.selfDestructed[addr] = true
	s.undo = append(s.undo, func() { delete(s.selfDestructed, addr) })
}

func (s *substate) hasSelfDestructed(addr tosca.Address) bool {
	return s.selfDestructed[addr]
}

func (s *substate) getTransientStorage(addr tosca.Address, key tosca.Key) tosca.Word {
	return s.transient[slot{addr, key}]
}

func (s *substate) setTransientStorage(addr tosca.Address, key tosca.Key, value tosca.Word) {
	id := slot{addr, key}
	original, found := s.transient[id]
	s.transient[id] = value
	s.undo = append(s.undo, func() {
		if found {
			s.transient[id] = original
		} else {
			delete(s.transient, id)
		}
	})
}

func (s *substate) accessAccount(addr tosca.Address) {
	if s.accessedAddrs[addr] {
		return
	}
	s.accessedAddrs[addr] = true
	s.undo = append(s.undo, func() { delete(s.accessedAddrs, addr) })
}

func (s *substate) accessStorage(addr tosca.Address, key tosca.Key) {
	s.accessAccount(addr)
	id := slot{addr, key}
	if s.accessedSlots[id] {
		return
	}
	s.accessedSlots[id] = true
	s.undo = append(s.undo, func() { delete(s.accessedSlots, id) })
}

func (s *substate) isAddressAccessed(addr tosca.Address) bool {
	return s.accessedAddrs[addr]
}

func (s *substate) isSlotAccessed(addr tosca.Address, key tosca.Key) (bool, bool) {
	return s.accessedAddrs[addr], s.accessedSlots[slot{addr, key}]
}

func (s *substate) addRefund(value uint64) {
	original := s.refund
	s.refund += value
	s.undo = append(s.undo, func() { s.refund = original })
}

func (s *substate) subRefund(value uint64) {
	original := s.refund
	s.refund -= value
	s.undo = append(s.undo, func() { s.refund = original })
}

func (s *substate) emitLog(log tosca.Log) {
	size := len(s.logs)
	s.logs = append(s.logs, log)
	s.undo = append(s.undo, func() { s.logs = s.logs[:size] })
}

func (s *substate) snapshot() int {
	return len(s.undo)
}

func (s *substate) restore(snapshot int) {
	for len(s.undo) > snapshot {
		s.undo[len(s.undo)-1]()
		s.undo = s.undo[:len(s.undo)-1]
	}
}

// changes exports the modifications recorded in the overlay, ordered by
// address.
func (s *substate) changes() []tosca.Change {
	addresses := make([]tosca.Address, 0, len(s.accounts)+len(s.selfDestructed))
	for addr := range s.accounts {
		addresses = append(addresses, addr)
	}
	for addr := range s.selfDestructed {
		if _, found := s.accounts[addr]; !found {
			addresses = append(addresses, addr)
		}
	}
	slices.SortFunc(addresses, func(a, b tosca.Address) int {
		return bytes.Compare(a[:], b[:])
	})

	res := make([]tosca.Change, 0, len(addresses))
	for _, addr := range addresses {
		if s.selfDestructed[addr] {
			res = append(res, tosca.Change{Address: addr, Deleted: true})
			continue
		}
		account := s.accounts[addr]
		change := tosca.Change{
			Address:      addr,
			Balance:      account.balance,
			Nonce:        account.nonce,
			Storage:      maps.Clone(account.storage),
			ResetStorage: account.storageReset,
		}
		if account.codeChanged {
			change.Code = bytes.Clone(account.code)
			if change.Code == nil {
				change.Code = tosca.Code{}
			}
		}
		res = append(res, change)
	}
	return res
}

func (s *substate) getLogs() []tosca.Log {
	return slices.Clone(s.logs)
}
