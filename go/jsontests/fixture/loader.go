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
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// LoadFile reads all fixtures of the given file, sorted by name. Fixtures
// that could be decoded are returned even if others are malformed.
func LoadFile(path string) ([]*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture file: %w", err)
	}
	return parse(data, path)
}

// Enumerate expands the given paths into the list of fixture files. Files
// are taken as they are, directories are searched recursively for .json
// files. The result is sorted and free of duplicates.
func Enumerate(paths []string) ([]string, error) {
	files, err := enumerateInputs(paths)
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return slices.Compact(files), nil
}

func enumerateInputs(inputs []string) ([]string, error) {
	var inputFiles []string

	for _, input := range inputs {
		path, err := filepath.Abs(input)
		if err != nil {
			return nil, err
		}

		stat, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !stat.IsDir() {
			inputFiles = append(inputFiles, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			filePath := filepath.Join(path, entry.Name())
			if entry.IsDir() {
				recInputs, err := enumerateInputs([]string{filePath})
				if err != nil {
					return nil, err
				}
				inputFiles = append(inputFiles, recInputs...)
			} else if strings.EqualFold(filepath.Ext(filePath), ".json") {
				inputFiles = append(inputFiles, filePath)
			}
		}
	}

	return inputFiles, nil
}

// LoadAll loads the fixtures of all files found in the given paths. The
// fixtures are sorted by name. Fixture names have to be unique across all
// files. Failures of individual files or fixtures are joined into the
// resulting error while all valid fixtures are returned.
func LoadAll(paths []string) ([]*Fixture, error) {
	files, err := Enumerate(paths)
	if err != nil {
		return nil, err
	}

	var errs []error
	var res []*Fixture
	seen := map[string]string{}
	for _, file := range files {
		fixtures, err := LoadFile(file)
		if err != nil {
			errs = append(errs, err)
		}
		for _, fixture := range fixtures {
			if other, found := seen[fixture.Name]; found {
				errs = append(errs, &MalformedFixtureError{
					Fixture: fixture.Name,
					File:    file,
					Reason:  fmt.Sprintf("duplicate fixture name, also defined in %s", other),
				})
				continue
			}
			seen[fixture.Name] = file
			res = append(res, fixture)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Name < res[j].Name
	})
	return res, errors.Join(errs...)
}
