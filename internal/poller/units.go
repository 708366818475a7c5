// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package poller

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ffutop/modbus-master/modbus"
)

// ParseUnits parses a string of unit addresses (e.g. "1,2,5-10") into a slice of bytes.
// Duplicates are dropped; every address must be a valid slave address.
func ParseUnits(input string) ([]byte, error) {
	var ids []byte
	seen := make(map[int]bool)
	add := func(id int) error {
		if id < modbus.MinUnitAddress || id > modbus.MaxUnitAddress {
			return fmt.Errorf("unit address out of range: %d", id)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, byte(id))
		}
		return nil
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Contains(part, "-") {
			// Range
			ranges := strings.Split(part, "-")
			if len(ranges) != 2 {
				return nil, fmt.Errorf("invalid range: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start of range: %w", err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(ranges[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end of range: %w", err)
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
			for i := start; i <= end; i++ {
				if err := add(i); err != nil {
					return nil, err
				}
			}
		} else {
			// Single
			id, err := strconv.Atoi(part)
			if err != nil {
				return nil, fmt.Errorf("invalid unit address: %w", err)
			}
			if err := add(id); err != nil {
				return nil, err
			}
		}
	}
	return ids, nil
}
