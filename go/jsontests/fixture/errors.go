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
	"errors"
	"fmt"
)

// MalformedFixtureError is reported for fixtures violating the structural
// invariants of the fixture format. Such fixtures are never run.
type MalformedFixtureError struct {
	// Fixture is the name of the offending fixture, empty if the whole file
	// could not be decoded.
	Fixture string
	// File is the path of the file the fixture was read from, if known.
	File   string
	Reason string
}

func (e *MalformedFixtureError) Error() string {
	where := e.Fixture
	if e.File != "" {
		if where == "" {
			where = e.File
		} else {
			where = fmt.Sprintf("%s (%s)", e.Fixture, e.File)
		}
	}
	if where == "" {
		return "malformed fixture: " + e.Reason
	}
	return fmt.Sprintf("malformed fixture %s: %s", where, e.Reason)
}

func newMalformedFixtureError(name string, format string, args ...any) *MalformedFixtureError {
	return &MalformedFixtureError{Fixture: name, Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is or wraps a MalformedFixtureError.
func IsMalformed(err error) bool {
	var target *MalformedFixtureError
	return errors.As(err, &target)
}
