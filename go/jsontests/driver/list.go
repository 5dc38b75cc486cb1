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
	"fmt"

	"github.com/urfave/cli/v2"
)

var ListCmd = cli.Command{
	Action:    doList,
	Name:      "list",
	Usage:     "List all fixtures by name",
	ArgsUsage: "<path>...",
	Flags: []cli.Flag{
		&FilterFlag.flag,
	},
}

func doList(context *cli.Context) error {
	filter, err := FilterFlag.Fetch(context)
	if err != nil {
		return err
	}

	fixtures, loadErrors, err := loadFixtures(context, filter)
	if err != nil {
		return err
	}
	out := context.App.Writer
	for _, f := range fixtures {
		fmt.Fprintln(out, f.Name)
	}
	for _, err := range loadErrors {
		fmt.Fprintf(context.App.ErrWriter, "Error: %v\n", err)
	}
	if len(loadErrors) > 0 {
		return fmt.Errorf("failed to load %d fixtures", len(loadErrors))
	}
	return nil
}
