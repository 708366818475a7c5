// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package image

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ffutop/modbus-master/modbus"
)

const (
	MaxAddress = 65535
)

// Table identifies one of the four Modbus data tables.
type Table int

const (
	TableCoils Table = iota
	TableDiscreteInputs
	TableHoldingRegisters
	TableInputRegisters
)

var tableNames = [...]string{"coils", "discrete-inputs", "holding-registers", "input-registers"}

func (t Table) String() string {
	if t < 0 || int(t) >= len(tableNames) {
		return fmt.Sprintf("Table(%d)", int(t))
	}
	return tableNames[t]
}

// MarshalYAML implements yaml.Marshaler.
func (t Table) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// IsBits reports whether the table holds single-bit values.
func (t Table) IsBits() bool {
	return t == TableCoils || t == TableDiscreteInputs
}

// TableOf returns the table read by a read function code.
func TableOf(functionCode byte) (Table, error) {
	switch functionCode {
	case modbus.FuncCodeReadCoils:
		return TableCoils, nil
	case modbus.FuncCodeReadDiscreteInputs:
		return TableDiscreteInputs, nil
	case modbus.FuncCodeReadHoldingRegisters:
		return TableHoldingRegisters, nil
	case modbus.FuncCodeReadInputRegisters:
		return TableInputRegisters, nil
	}
	return 0, fmt.Errorf("function code %d does not read a data table", functionCode)
}

// A unit image is a flat byte slice so that it can be backed by a file or a
// memory mapping. Bits take one byte each (0 or 1), registers are stored
// big-endian, and the last update time closes the image as unix nanoseconds.
//
// Layout:
// - Coils: 65536 bytes (Offset 0)
// - DiscreteInputs: 65536 bytes (Offset 65536)
// - HoldingRegisters: 65536 * 2 bytes (Offset 131072)
// - InputRegisters: 65536 * 2 bytes (Offset 262144)
// - Updated: 8 bytes (Offset 393216)
// Total Size: 393224 bytes
const (
	sizeCoils    = MaxAddress + 1
	sizeDiscrete = MaxAddress + 1
	sizeHolding  = (MaxAddress + 1) * 2
	sizeInput    = (MaxAddress + 1) * 2
	sizeUpdated  = 8
	totalSize    = sizeCoils + sizeDiscrete + sizeHolding + sizeInput + sizeUpdated

	offsetCoils    = 0
	offsetDiscrete = offsetCoils + sizeCoils
	offsetHolding  = offsetDiscrete + sizeDiscrete
	offsetInput    = offsetHolding + sizeHolding
	offsetUpdated  = offsetInput + sizeInput
)

var tableOffsets = [...]int{offsetCoils, offsetDiscrete, offsetHolding, offsetInput}

func validateRange(address uint16, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	// address is 0-based.
	if int(address)+quantity > MaxAddress+1 {
		return fmt.Errorf("address range out of bounds")
	}
	return nil
}

func putBits(data []byte, table Table, address uint16, values []bool) error {
	if err := validateRange(address, len(values)); err != nil {
		return err
	}
	base := tableOffsets[table] + int(address)
	for i, v := range values {
		if v {
			data[base+i] = 1
		} else {
			data[base+i] = 0
		}
	}
	return nil
}

func getBits(data []byte, table Table, address uint16, quantity int) ([]bool, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	base := tableOffsets[table] + int(address)
	values := make([]bool, quantity)
	for i := range values {
		values[i] = data[base+i] != 0
	}
	return values, nil
}

func putRegisters(data []byte, table Table, address uint16, values []uint16) error {
	if err := validateRange(address, len(values)); err != nil {
		return err
	}
	base := tableOffsets[table] + int(address)*2
	for i, v := range values {
		binary.BigEndian.PutUint16(data[base+i*2:], v)
	}
	return nil
}

func getRegisters(data []byte, table Table, address uint16, quantity int) ([]uint16, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	base := tableOffsets[table] + int(address)*2
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(data[base+i*2:])
	}
	return values, nil
}

func putUpdated(data []byte, t time.Time) {
	binary.BigEndian.PutUint64(data[offsetUpdated:], uint64(t.UnixNano()))
}

func getUpdated(data []byte) time.Time {
	n := binary.BigEndian.Uint64(data[offsetUpdated:])
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(n))
}
