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
	"math/big"
	"strings"
)

// Quantity is a non-negative integer of unbounded size as it is written in
// fixture files: 0x-prefixed hex text (leading zeros allowed, "0x" is zero)
// or decimal text. Range checks are left to the consumers of a fixture.
type Quantity big.Int

// NewQuantity creates a quantity of the given value.
func NewQuantity(value uint64) *Quantity {
	return (*Quantity)(new(big.Int).SetUint64(value))
}

// QuantityFromBig creates a quantity holding a copy of the given value.
func QuantityFromBig(value *big.Int) *Quantity {
	return (*Quantity)(new(big.Int).Set(value))
}

// ParseQuantity parses hex or decimal text into a quantity.
func ParseQuantity(text string) (*Quantity, error) {
	s := strings.TrimSpace(text)
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
		if s == "" {
			return NewQuantity(0), nil
		}
	}
	if s == "" || strings.ContainsAny(s, "+-_") {
		return nil, fmt.Errorf("invalid quantity %q", text)
	}
	res, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", text)
	}
	return (*Quantity)(res), nil
}

// MustParseQuantity is like ParseQuantity but panics on invalid input.
func MustParseQuantity(text string) *Quantity {
	res, err := ParseQuantity(text)
	if err != nil {
		panic(err)
	}
	return res
}

// Big returns a copy of the quantity as a big integer.
func (q *Quantity) Big() *big.Int {
	return new(big.Int).Set((*big.Int)(q))
}

// Cmp compares two quantities by value.
func (q *Quantity) Cmp(other *Quantity) int {
	return (*big.Int)(q).Cmp((*big.Int)(other))
}

func (q *Quantity) String() string {
	if q == nil {
		return "<nil>"
	}
	return (*big.Int)(q).String()
}

func (q *Quantity) MarshalText() ([]byte, error) {
	return []byte("0x" + (*big.Int)(q).Text(16)), nil
}

// UnmarshalJSON accepts JSON strings holding hex or decimal text as well as
// plain JSON numbers.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	var text string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	} else {
		var number json.Number
		if err := json.Unmarshal(data, &number); err != nil {
			return fmt.Errorf("invalid quantity %s: %w", data, err)
		}
		text = number.String()
	}
	res, err := ParseQuantity(text)
	if err != nil {
		return err
	}
	*q = *res
	return nil
}
