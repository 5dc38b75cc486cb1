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
	"strings"
	"testing"

	"github.com/Fantom-foundation/vmtests/go/tosca"
)

const successFixture = `{
	"_info": { "comment": "ignored" },
	"callcreates": [],
	"env": {
		"currentCoinbase": "2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
		"currentDifficulty": "0x0100",
		"currentGasLimit": "0x0f4240",
		"currentNumber": "0x00",
		"currentTimestamp": "0x01"
	},
	"exec": {
		"address": "0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6",
		"caller": "0xcd1722f3947def4cf144679da39c4c32bdc35681",
		"code": "0x602a60005260206000f3",
		"data": "0x",
		"gas": "0x0186a0",
		"gasPrice": "0x5af3107a4000",
		"origin": "0xcd1722f3947def4cf144679da39c4c32bdc35681",
		"value": "0x0de0b6b3a7640000"
	},
	"gas": "0x01869e",
	"logs": "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
	"out": "0x000000000000000000000000000000000000000000000000000000000000002a",
	"post": {
		"0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6": {
			"balance": "0x0de0b6b3a7640000",
			"code": "0x602a60005260206000f3",
			"nonce": "0x00",
			"storage": { "0x02": "0x03", "0x01": "0x04" }
		}
	},
	"pre": {
		"0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6": {
			"balance": "0x0de0b6b3a7640000",
			"code": "0x602a60005260206000f3",
			"nonce": "0x00",
			"storage": {}
		}
	}
}`

const failureFixture = `{
	"env": {
		"currentCoinbase": "2adc25665018aa1fe0e6bc666dac8fc2697ff9ba",
		"currentDifficulty": "256",
		"currentGasLimit": "1000000",
		"currentNumber": "0",
		"currentTimestamp": "1"
	},
	"exec": {
		"address": "0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6",
		"caller": "0xcd1722f3947def4cf144679da39c4c32bdc35681",
		"code": "0x01",
		"data": "0x",
		"gas": "100000",
		"gasPrice": "1",
		"origin": "0xcd1722f3947def4cf144679da39c4c32bdc35681",
		"value": "0"
	},
	"pre": {}
}`

func TestParseFixture_SuccessFixture(t *testing.T) {
	fixture, err := ParseFixture("return42", []byte(successFixture))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	if want, got := "return42", fixture.Name; want != got {
		t.Errorf("unexpected name, wanted %v, got %v", want, got)
	}
	if fixture.ExpectsFailure() {
		t.Fatalf("fixture should expect success")
	}

	if want, got := int64(256), fixture.Env.Difficulty.Big().Int64(); want != got {
		t.Errorf("unexpected difficulty, wanted %d, got %d", want, got)
	}
	if want, got := "0x2adc25665018aa1fe0e6bc666dac8fc2697ff9ba", fixture.Env.Coinbase.String(); want != got {
		t.Errorf("unexpected coinbase, wanted %v, got %v", want, got)
	}
	if want, got := int64(100_000), fixture.Transaction.Gas.Big().Int64(); want != got {
		t.Errorf("unexpected gas, wanted %d, got %d", want, got)
	}
	want := []byte{0x60, 0x2a, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}
	if got := fixture.Transaction.Code; !bytes.Equal(want, got) {
		t.Errorf("unexpected code, wanted %x, got %x", want, got)
	}
	if len(fixture.Transaction.Data) != 0 {
		t.Errorf("unexpected data %x", fixture.Transaction.Data)
	}

	expected := fixture.Expected
	if want, got := int64(99_998), expected.GasLeft.Big().Int64(); want != got {
		t.Errorf("unexpected gas left, wanted %d, got %d", want, got)
	}
	if len(expected.Output) != 32 || expected.Output[31] != 0x2a {
		t.Errorf("unexpected output %x", expected.Output)
	}
	if expected.LogsHash == nil {
		t.Fatalf("missing logs hash")
	}
	if want, got := byte(0x1d), expected.LogsHash[0]; want != got {
		t.Errorf("unexpected logs hash %v", expected.LogsHash)
	}

	addr := fixture.Transaction.Address
	account, found := expected.Post[addr]
	if !found {
		t.Fatalf("missing post state account %v", addr)
	}
	if len(account.Storage) != 2 {
		t.Fatalf("unexpected storage %v", account.Storage)
	}
	for i, want := range []int64{1, 2} {
		if got := account.Storage[i].Key.Big().Int64(); want != got {
			t.Errorf("storage not sorted, wanted key %d at position %d, got %d", want, i, got)
		}
	}
	if _, found := fixture.Pre[addr]; !found {
		t.Errorf("missing pre state account %v", addr)
	}
}

func TestParseFixture_FailureFixture(t *testing.T) {
	fixture, err := ParseFixture("underflow", []byte(failureFixture))
	if err != nil {
		t.Fatalf("failed to parse fixture: %v", err)
	}
	if !fixture.ExpectsFailure() {
		t.Errorf("fixture should expect failure")
	}
	if want, got := int64(1_000_000), fixture.Env.GasLimit.Big().Int64(); want != got {
		t.Errorf("unexpected gas limit, wanted %d, got %d", want, got)
	}
}

func TestParseFixture_PartialExpectationsAreMalformed(t *testing.T) {
	tests := map[string][]string{
		"missing gas":          {"gas"},
		"missing out":          {"out"},
		"missing post":         {"post"},
		"missing gas and post": {"gas", "post"},
		"logs without outcome": {"gas", "post", "out"},
	}

	for name, remove := range tests {
		t.Run(name, func(t *testing.T) {
			data := removeFields(t, successFixture, remove...)
			_, err := ParseFixture(name, data)
			if !IsMalformed(err) {
				t.Errorf("expected malformed fixture error, got %v", err)
			}
		})
	}
}

func TestParseFixture_OutcomeWithoutLogsIsValid(t *testing.T) {
	data := removeFields(t, successFixture, "logs")
	fixture, err := ParseFixture("noLogs", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.Expected == nil || fixture.Expected.LogsHash != nil {
		t.Errorf("unexpected expectation %+v", fixture.Expected)
	}
}

func TestParseFixture_MissingRequiredFieldsAreMalformed(t *testing.T) {
	tests := map[string][2]string{
		"env":        {`"env"`, `"environment"`},
		"exec":       {`"exec"`, `"execute"`},
		"exec gas":   {`"gas": "100000",`, ``},
		"difficulty": {`"currentDifficulty": "256",`, ``},
	}
	for name, replacement := range tests {
		t.Run(name, func(t *testing.T) {
			data := strings.Replace(failureFixture, replacement[0], replacement[1], 1)
			_, err := ParseFixture(name, []byte(data))
			if !IsMalformed(err) {
				t.Errorf("expected malformed fixture error, got %v", err)
			}
		})
	}
}

func TestParseFixture_InvalidValuesAreMalformed(t *testing.T) {
	tests := map[string][2]string{
		"invalid quantity": {`"gasPrice": "1"`, `"gasPrice": "one"`},
		"invalid address":  {`"address": "0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6"`, `"address": "0x0f57"`},
		"invalid code":     {`"code": "0x01"`, `"code": "0x0"`},
		"invalid account":  {`"pre": {}`, `"pre": { "0x0f572e5295c57f15886f9b263e2f6d2d6c7b5ec6": { "balance": "1" } }`},
	}
	for name, replacement := range tests {
		t.Run(name, func(t *testing.T) {
			data := strings.Replace(failureFixture, replacement[0], replacement[1], 1)
			_, err := ParseFixture(name, []byte(data))
			if !IsMalformed(err) {
				t.Errorf("expected malformed fixture error, got %v", err)
			}
		})
	}
}

func TestParseFixture_DuplicateStorageKeysAreMalformed(t *testing.T) {
	data := strings.Replace(successFixture, `"storage": {}`, `"storage": { "0x01": "0x01", "0x0001": "0x02" }`, 1)
	_, err := ParseFixture("duplicate", []byte(data))
	if !IsMalformed(err) {
		t.Errorf("expected malformed fixture error, got %v", err)
	}
}

func TestParse_FixturesAreSortedAndMalformedOnesReported(t *testing.T) {
	data := "{" +
		`"b": ` + successFixture + "," +
		`"a": ` + failureFixture + "," +
		`"c": ` + string(removeFields(t, successFixture, "gas")) +
		"}"

	fixtures, err := Parse([]byte(data))
	if len(fixtures) != 2 {
		t.Fatalf("unexpected number of fixtures: %d", len(fixtures))
	}
	if fixtures[0].Name != "a" || fixtures[1].Name != "b" {
		t.Errorf("fixtures are not sorted: %v, %v", fixtures[0].Name, fixtures[1].Name)
	}
	var malformed *MalformedFixtureError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected malformed fixture error, got %v", err)
	}
	if want, got := "c", malformed.Fixture; want != got {
		t.Errorf("unexpected malformed fixture, wanted %v, got %v", want, got)
	}
}

func TestParse_InvalidJsonIsMalformed(t *testing.T) {
	fixtures, err := Parse([]byte("{ not json"))
	if !IsMalformed(err) {
		t.Errorf("expected malformed fixture error, got %v", err)
	}
	if len(fixtures) != 0 {
		t.Errorf("unexpected fixtures %v", fixtures)
	}
}

func TestFixture_ValidateDetectsPartialExpectations(t *testing.T) {
	valid := func() *Fixture {
		return &Fixture{
			Name: "test",
			Env: Environment{
				Difficulty: NewQuantity(0),
				GasLimit:   NewQuantity(0),
				Number:     NewQuantity(0),
				Timestamp:  NewQuantity(0),
			},
			Pre: State{tosca.Address{1}: {Balance: NewQuantity(0), Nonce: NewQuantity(0)}},
			Transaction: Transaction{
				Value:    NewQuantity(0),
				GasPrice: NewQuantity(0),
				Gas:      NewQuantity(0),
			},
			Expected: &ExpectedOutcome{
				GasLeft: NewQuantity(0),
				Post:    State{},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := map[string]func(*Fixture){
		"missing gas left":  func(f *Fixture) { f.Expected.GasLeft = nil },
		"missing post":      func(f *Fixture) { f.Expected.Post = nil },
		"missing nonce":     func(f *Fixture) { f.Pre[tosca.Address{1}] = Account{Balance: NewQuantity(0)} },
		"missing timestamp": func(f *Fixture) { f.Env.Timestamp = nil },
		"missing value":     func(f *Fixture) { f.Transaction.Value = nil },
		"incomplete slot": func(f *Fixture) {
			f.Expected.Post[tosca.Address{2}] = Account{
				Balance: NewQuantity(0),
				Nonce:   NewQuantity(0),
				Storage: Storage{{Key: NewQuantity(1)}},
			}
		},
	}
	for name, modify := range tests {
		t.Run(name, func(t *testing.T) {
			fixture := valid()
			modify(fixture)
			if err := fixture.Validate(); !IsMalformed(err) {
				t.Errorf("expected malformed fixture error, got %v", err)
			}
		})
	}
}

func TestMalformedFixtureError_MessageNamesFixtureAndFile(t *testing.T) {
	err := &MalformedFixtureError{Fixture: "f", File: "x.json", Reason: "broken"}
	if want, got := "malformed fixture f (x.json): broken", err.Error(); want != got {
		t.Errorf("unexpected message, wanted %q, got %q", want, got)
	}
	err = &MalformedFixtureError{File: "x.json", Reason: "broken"}
	if want, got := "malformed fixture x.json: broken", err.Error(); want != got {
		t.Errorf("unexpected message, wanted %q, got %q", want, got)
	}
}

// removeFields drops the given top-level fields from a JSON fixture.
func removeFields(t *testing.T, fixture string, fields ...string) []byte {
	t.Helper()
	var raw map[string]any
	if err := json.Unmarshal([]byte(fixture), &raw); err != nil {
		t.Fatalf("invalid test fixture: %v", err)
	}
	for _, field := range fields {
		delete(raw, field)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return data
}
