// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"errors"
	"io"
	"regexp"

	"github.com/Fantom-foundation/vmtests/go/jsontests/fixture"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

// setupLogging installs a terminal log handler with the given geth legacy
// verbosity level as the default logger.
func setupLogging(out io.Writer, verbosity int) {
	handler := log.NewTerminalHandlerWithLevel(out, log.FromLegacyLevel(verbosity), false)
	log.SetDefault(log.NewLogger(handler))
}

// loadFixtures loads all fixtures found in the paths given as arguments and
// retains those matching the filter. Errors of individual fixtures or files
// are returned alongside the loaded fixtures.
func loadFixtures(context *cli.Context, filter *regexp.Regexp) ([]*fixture.Fixture, []error, error) {
	if context.Args().Len() == 0 {
		return nil, nil, errors.New("no fixture files or directories given")
	}
	if _, err := fixture.Enumerate(context.Args().Slice()); err != nil {
		return nil, nil, err
	}
	fixtures, err := fixture.LoadAll(context.Args().Slice())

	var loadErrors []error
	for _, cur := range flattenErrors(err) {
		var malformed *fixture.MalformedFixtureError
		if errors.As(cur, &malformed) && malformed.Fixture != "" && !filter.MatchString(malformed.Fixture) {
			continue
		}
		loadErrors = append(loadErrors, cur)
	}

	res := fixtures[:0]
	for _, f := range fixtures {
		if filter.MatchString(f.Name) {
			res = append(res, f)
		}
	}
	return res, loadErrors, nil
}

// flattenErrors lists the individual errors of a tree of joined errors.
func flattenErrors(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var res []error
	for _, cur := range joined.Unwrap() {
		res = append(res, flattenErrors(cur)...)
	}
	return res
}
