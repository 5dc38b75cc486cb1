// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package fixture

import (
	"encoding/json"
	"fmt"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Marshal encodes the given fixtures into the JSON format of a fixture file.
// Fixture names must be unique.
func Marshal(fixtures []*Fixture) ([]byte, error) {
	raw := make(map[string]*fixtureJSON, len(fixtures))
	for _, f := range fixtures {
		if _, found := raw[f.Name]; found {
			return nil, fmt.Errorf("duplicate fixture name %q", f.Name)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		raw[f.Name] = fromFixture(f)
	}
	return json.MarshalIndent(raw, "", "\t")
}

func fromFixture(f *Fixture) *fixtureJSON {
	res := &fixtureJSON{
		Env: &envJSON{
			Coinbase:   f.Env.Coinbase,
			Difficulty: f.Env.Difficulty,
			GasLimit:   f.Env.GasLimit,
			Number:     f.Env.Number,
			Timestamp:  f.Env.Timestamp,
		},
		Exec: &execJSON{
			Address:  f.Transaction.Address,
			Caller:   f.Transaction.Caller,
			Origin:   f.Transaction.Origin,
			Value:    f.Transaction.Value,
			GasPrice: f.Transaction.GasPrice,
			Gas:      f.Transaction.Gas,
			Code:     f.Transaction.Code,
			Data:     f.Transaction.Data,
		},
		Pre: fromState(f.Pre),
	}
	if expected := f.Expected; expected != nil {
		post := fromState(expected.Post)
		out := hexutil.Bytes(expected.Output)
		res.Post = &post
		res.Out = &out
		res.Gas = expected.GasLeft
		res.Logs = expected.LogsHash
	}
	return res
}

func fromState(state State) map[tosca.Address]accountJSON {
	res := make(map[tosca.Address]accountJSON, len(state))
	for address, account := range state {
		storage := make(map[string]string, len(account.Storage))
		for _, slot := range account.Storage {
			key, _ := slot.Key.MarshalText()
			value, _ := slot.Value.MarshalText()
			storage[string(key)] = string(value)
		}
		res[address] = accountJSON{
			Balance: account.Balance,
			Nonce:   account.Nonce,
			Code:    account.Code,
			Storage: storage,
		}
	}
	return res
}
