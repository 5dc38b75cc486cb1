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

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Revision is an enumeration for EVM specification revisions (aka. Hard-Forks).
// A revision selects the gas-cost model and the semantics an interpreter has
// to follow.
type Revision int

// The list of revisions supported so far. Fixtures of the VM test suite are
// defined for R00_Frontier.
const (
	R00_Frontier Revision = iota
	R01_Homestead
	R02_TangerineWhistle
	R03_SpuriousDragon
	R04_Byzantium
	R05_Constantinople
	R06_Petersburg
	R07_Istanbul
	numRevisions int = iota
)

// NewestSupportedRevision is the latest revision known to this package.
const NewestSupportedRevision = R07_Istanbul

func (r Revision) String() string {
	switch r {
	case R00_Frontier:
		return "Frontier"
	case R01_Homestead:
		return "Homestead"
	case R02_TangerineWhistle:
		return "TangerineWhistle"
	case R03_SpuriousDragon:
		return "SpuriousDragon"
	case R04_Byzantium:
		return "Byzantium"
	case R05_Constantinople:
		return "Constantinople"
	case R06_Petersburg:
		return "Petersburg"
	case R07_Istanbul:
		return "Istanbul"
	default:
		return fmt.Sprintf("Revision(%d)", r)
	}
}

// ParseRevision resolves a revision by its name, ignoring case.
func ParseRevision(name string) (Revision, error) {
	for _, r := range GetAllKnownRevisions() {
		if strings.EqualFold(r.String(), name) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown revision: %s", name)
}

// GetAllKnownRevisions lists all revisions in chronological order.
func GetAllKnownRevisions() []Revision {
	res := make([]Revision, 0, numRevisions)
	for r := R00_Frontier; int(r) < numRevisions; r++ {
		res = append(res, r)
	}
	return res
}

func (r Revision) MarshalJSON() ([]byte, error) {
	if r < 0 || int(r) >= numRevisions {
		return nil, &json.UnsupportedValueError{Str: r.String()}
	}
	return json.Marshal(r.String())
}

func (r *Revision) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	revision, err := ParseRevision(s)
	if err != nil {
		return err
	}
	*r = revision
	return nil
}
