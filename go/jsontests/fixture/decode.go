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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/Fantom-foundation/vmtests/go/tosca"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// fixtureJSON is the on-disk layout of a VMTests fixture.
type fixtureJSON struct {
	Env         *envJSON                       `json:"env"`
	Exec        *execJSON                      `json:"exec"`
	Pre         map[tosca.Address]accountJSON  `json:"pre"`
	Post        *map[tosca.Address]accountJSON `json:"post,omitempty"`
	Out         *hexutil.Bytes                 `json:"out,omitempty"`
	Gas         *Quantity                      `json:"gas,omitempty"`
	Logs        *tosca.Hash                    `json:"logs,omitempty"`
	CallCreates json.RawMessage                `json:"callcreates,omitempty"`
	Info        json.RawMessage                `json:"_info,omitempty"`
}

type envJSON struct {
	Coinbase   tosca.Address `json:"currentCoinbase"`
	Difficulty *Quantity     `json:"currentDifficulty"`
	GasLimit   *Quantity     `json:"currentGasLimit"`
	Number     *Quantity     `json:"currentNumber"`
	Timestamp  *Quantity     `json:"currentTimestamp"`
}

type execJSON struct {
	Address  tosca.Address `json:"address"`
	Caller   tosca.Address `json:"caller"`
	Origin   tosca.Address `json:"origin"`
	Value    *Quantity     `json:"value"`
	GasPrice *Quantity     `json:"gasPrice"`
	Gas      *Quantity     `json:"gas"`
	Code     hexutil.Bytes `json:"code"`
	Data     hexutil.Bytes `json:"data"`
}

type accountJSON struct {
	Balance *Quantity         `json:"balance"`
	Nonce   *Quantity         `json:"nonce"`
	Code    hexutil.Bytes     `json:"code"`
	Storage map[string]string `json:"storage"`
}

// Parse decodes a fixture file, which is a JSON object mapping test names
// to fixtures. Fixtures are returned sorted by name. Malformed fixtures are
// skipped and reported through the resulting error, which joins one
// MalformedFixtureError per skipped fixture.
func Parse(data []byte) ([]*Fixture, error) {
	return parse(data, "")
}

func parse(data []byte, file string) ([]*Fixture, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedFixtureError{File: file, Reason: err.Error()}
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	res := make([]*Fixture, 0, len(names))
	for _, name := range names {
		fixture, err := ParseFixture(name, raw[name])
		if err != nil {
			var malformed *MalformedFixtureError
			if errors.As(err, &malformed) {
				malformed.File = file
			}
			errs = append(errs, err)
			continue
		}
		res = append(res, fixture)
	}
	return res, errors.Join(errs...)
}

// ParseFixture decodes a single fixture with the given name.
func ParseFixture(name string, data []byte) (*Fixture, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	var raw fixtureJSON
	if err := decoder.Decode(&raw); err != nil {
		return nil, newMalformedFixtureError(name, "%v", err)
	}
	fixture, err := raw.toFixture(name)
	if err != nil {
		return nil, err
	}
	if err := fixture.Validate(); err != nil {
		return nil, err
	}
	return fixture, nil
}

func (f *fixtureJSON) toFixture(name string) (*Fixture, error) {
	if f.Env == nil {
		return nil, newMalformedFixtureError(name, "missing env")
	}
	if f.Exec == nil {
		return nil, newMalformedFixtureError(name, "missing exec")
	}

	// The expected output, gas, and post state travel together. Their
	// absence marks a fixture that has to fail.
	present := 0
	for _, isSet := range []bool{f.Out != nil, f.Gas != nil, f.Post != nil} {
		if isSet {
			present++
		}
	}
	if present != 0 && present != 3 {
		return nil, newMalformedFixtureError(name,
			"out, gas, and post must be all present or all absent (out=%t, gas=%t, post=%t)",
			f.Out != nil, f.Gas != nil, f.Post != nil)
	}
	if present == 0 && f.Logs != nil {
		return nil, newMalformedFixtureError(name, "logs given for a fixture expected to fail")
	}

	pre, err := toState(f.Pre)
	if err != nil {
		return nil, newMalformedFixtureError(name, "invalid pre state: %v", err)
	}

	res := &Fixture{
		Name: name,
		Env: Environment{
			Coinbase:   f.Env.Coinbase,
			Difficulty: f.Env.Difficulty,
			GasLimit:   f.Env.GasLimit,
			Number:     f.Env.Number,
			Timestamp:  f.Env.Timestamp,
		},
		Pre: pre,
		Transaction: Transaction{
			Address:  f.Exec.Address,
			Caller:   f.Exec.Caller,
			Origin:   f.Exec.Origin,
			Value:    f.Exec.Value,
			GasPrice: f.Exec.GasPrice,
			Gas:      f.Exec.Gas,
			Code:     f.Exec.Code,
			Data:     f.Exec.Data,
		},
	}

	if present == 3 {
		post, err := toState(*f.Post)
		if err != nil {
			return nil, newMalformedFixtureError(name, "invalid post state: %v", err)
		}
		if post == nil {
			post = State{}
		}
		output := []byte(*f.Out)
		if output == nil {
			output = []byte{}
		}
		res.Expected = &ExpectedOutcome{
			Output:   output,
			GasLeft:  f.Gas,
			Post:     post,
			LogsHash: f.Logs,
		}
	}
	return res, nil
}

func toState(accounts map[tosca.Address]accountJSON) (State, error) {
	if accounts == nil {
		return nil, nil
	}
	res := make(State, len(accounts))
	for addr, account := range accounts {
		storage, err := toStorage(account.Storage)
		if err != nil {
			return nil, fmt.Errorf("account %v: %w", addr, err)
		}
		res[addr] = Account{
			Balance: account.Balance,
			Nonce:   account.Nonce,
			Code:    account.Code,
			Storage: storage,
		}
	}
	return res, nil
}

func toStorage(slots map[string]string) (Storage, error) {
	res := make(Storage, 0, len(slots))
	for k, v := range slots {
		key, err := ParseQuantity(k)
		if err != nil {
			return nil, fmt.Errorf("invalid storage key: %w", err)
		}
		value, err := ParseQuantity(v)
		if err != nil {
			return nil, fmt.Errorf("invalid storage value for key %s: %w", k, err)
		}
		res = append(res, Slot{Key: key, Value: value})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Key.Cmp(res[j].Key) < 0
	})
	for i := 1; i < len(res); i++ {
		if res[i-1].Key.Cmp(res[i].Key) == 0 {
			return nil, fmt.Errorf("duplicate storage key %v", res[i].Key)
		}
	}
	return res, nil
}
