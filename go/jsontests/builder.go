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
	"bytes"
	"fmt"
	"slices"

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/holiman/uint256"
	"golang.org/x/exp/maps"
)

// Inputs summarizes everything the execution of a fixture requires: the
// initial world state, the block and transaction context, and the call to
// run. The code and data buffers are owned by the inputs and must not be
// modified by any consumer.
type Inputs struct {
	State       WorldState
	Block       tosca.BlockParameters
	Transaction tosca.TransactionParameters
	Call        tosca.CallContext
	Code        tosca.Code
	Data        tosca.Data
	Gas         tosca.Gas
}

// BuildInputs converts the pre state, the environment, and the transaction
// of a fixture into execution inputs. The conversion either succeeds for all
// fields or fails with a StateConversionError for the first field exceeding
// its range.
func BuildInputs(f *fixture.Fixture) (*Inputs, error) {
	state, err := BuildWorldState("pre", f.Pre)
	if err != nil {
		return nil, err
	}

	env := f.Env
	number, err := toValue("env/currentNumber", env.Number)
	if err != nil {
		return nil, err
	}
	timestamp, err := toValue("env/currentTimestamp", env.Timestamp)
	if err != nil {
		return nil, err
	}
	difficulty, err := toValue("env/currentDifficulty", env.Difficulty)
	if err != nil {
		return nil, err
	}
	gasLimit, err := toValue("env/currentGasLimit", env.GasLimit)
	if err != nil {
		return nil, err
	}

	tx := f.Transaction
	gasPrice, err := toValue("exec/gasPrice", tx.GasPrice)
	if err != nil {
		return nil, err
	}
	value, err := toValue("exec/value", tx.Value)
	if err != nil {
		return nil, err
	}
	gas, err := toGas("exec/gas", tx.Gas)
	if err != nil {
		return nil, err
	}

	return &Inputs{
		State: state,
		Block: tosca.BlockParameters{
			BlockNumber: number,
			Coinbase:    env.Coinbase,
			Timestamp:   timestamp,
			Difficulty:  difficulty,
			GasLimit:    gasLimit,
		},
		Transaction: tosca.TransactionParameters{
			Origin:   tx.Origin,
			GasPrice: gasPrice,
		},
		Call: tosca.CallContext{
			Address:       tx.Address,
			Caller:        tx.Caller,
			ApparentValue: value,
		},
		Code: tosca.Code(bytes.Clone(tx.Code)),
		Data: tosca.Data(bytes.Clone(tx.Data)),
		Gas:  gas,
	}, nil
}

// BuildWorldState converts a state given by a fixture into a WorldState. The
// name is used as the path prefix of fields in conversion errors. Zero
// valued slots are retained so that expectations on them are checked.
func BuildWorldState(name string, state fixture.State) (WorldState, error) {
	res := make(WorldState, len(state))
	for _, address := range sortedAddresses(state) {
		account := state[address]
		prefix := fmt.Sprintf("%s/%v/", name, address)
		balance, err := toValue(prefix+"balance", account.Balance)
		if err != nil {
			return nil, err
		}
		nonce, err := toValue(prefix+"nonce", account.Nonce)
		if err != nil {
			return nil, err
		}
		var storage Storage
		for _, slot := range account.Storage {
			key, err := toValue(prefix+"storage/key", slot.Key)
			if err != nil {
				return nil, err
			}
			value, err := toValue(fmt.Sprintf("%sstorage/%v", prefix, slot.Key), slot.Value)
			if err != nil {
				return nil, err
			}
			if storage == nil {
				storage = Storage{}
			}
			storage[tosca.Key(key)] = tosca.Word(value)
		}
		res[address] = Account{
			Balance: balance,
			Nonce:   nonce,
			Code:    tosca.Code(bytes.Clone(account.Code)),
			Storage: storage,
		}
	}
	return res, nil
}

func sortedAddresses[V any](accounts map[tosca.Address]V) []tosca.Address {
	res := maps.Keys(accounts)
	slices.SortFunc(res, func(a, b tosca.Address) int {
		return bytes.Compare(a[:], b[:])
	})
	return res
}

// toValue converts a quantity into a 256-bit value. Missing quantities are
// reported as conversion errors since they can not be represented either.
func toValue(field string, q *fixture.Quantity) (tosca.Value, error) {
	if q == nil {
		return tosca.Value{}, &StateConversionError{Field: field, Value: "<missing>", Limit: "256-bit"}
	}
	value, overflow := uint256.FromBig(q.Big())
	if overflow {
		return tosca.Value{}, &StateConversionError{Field: field, Value: q.String(), Limit: "256-bit"}
	}
	return tosca.ValueFromUint256(value), nil
}

// toGas converts a quantity into an amount of gas.
func toGas(field string, q *fixture.Quantity) (tosca.Gas, error) {
	if q == nil {
		return 0, &StateConversionError{Field: field, Value: "<missing>", Limit: "gas"}
	}
	value := q.Big()
	if !value.IsInt64() || value.Sign() < 0 {
		return 0, &StateConversionError{Field: field, Value: q.String(), Limit: "gas"}
	}
	return tosca.Gas(value.Int64()), nil
}
