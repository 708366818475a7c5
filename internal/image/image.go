// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package image keeps the last polled values of every unit, one image per
// unit covering the four data tables over the full 16-bit address space.
package image

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Block is a run of values read from one table.
// Bits is used for coils and discrete inputs, Registers for the register tables.
type Block struct {
	Table     Table    `yaml:"table"`
	Address   uint16   `yaml:"address"`
	Bits      []bool   `yaml:"bits,omitempty"`
	Registers []uint16 `yaml:"registers,omitempty"`
}

// Range selects Count values of Table starting at Address.
type Range struct {
	Table   Table
	Address uint16
	Count   int
}

// Snapshot is a copy of parts of a unit image.
type Snapshot struct {
	Unit    byte      `yaml:"unit"`
	Updated time.Time `yaml:"updated"`
	Blocks  []Block   `yaml:"blocks"`
}

// Image holds the unit images on top of a Storage.
type Image struct {
	mu      sync.RWMutex
	storage Storage
	units   map[byte][]byte
}

// New creates an Image persisted by storage.
func New(storage Storage) *Image {
	return &Image{
		storage: storage,
		units:   make(map[byte][]byte),
	}
}

func (im *Image) open(unit byte) ([]byte, error) {
	if data, ok := im.units[unit]; ok {
		return data, nil
	}
	data, err := im.storage.Open(unit)
	if err != nil {
		return nil, err
	}
	if len(data) < totalSize {
		return nil, fmt.Errorf("image of unit %d is truncated: %d bytes", unit, len(data))
	}
	im.units[unit] = data
	return data, nil
}

// Apply writes blocks into the image of unit, stamps it with at and flushes
// it. Blocks are checked before anything is written so that a bad block
// leaves the image untouched.
func (im *Image) Apply(unit byte, at time.Time, blocks ...Block) error {
	for _, b := range blocks {
		n := len(b.Registers)
		if b.Table.IsBits() {
			n = len(b.Bits)
		}
		if b.Table < TableCoils || b.Table > TableInputRegisters {
			return fmt.Errorf("unknown table %v", b.Table)
		}
		if err := validateRange(b.Address, n); err != nil {
			return fmt.Errorf("%v at %d: %w", b.Table, b.Address, err)
		}
	}

	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := im.open(unit)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if b.Table.IsBits() {
			err = putBits(data, b.Table, b.Address, b.Bits)
		} else {
			err = putRegisters(data, b.Table, b.Address, b.Registers)
		}
		if err != nil {
			return err
		}
	}
	putUpdated(data, at)
	return im.storage.Flush(unit)
}

// Updated returns the time of the last Apply to unit, zero if none.
func (im *Image) Updated(unit byte) (time.Time, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := im.open(unit)
	if err != nil {
		return time.Time{}, err
	}
	return getUpdated(data), nil
}

// Snapshot copies the ranges of the image of unit.
func (im *Image) Snapshot(unit byte, ranges ...Range) (Snapshot, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := im.open(unit)
	if err != nil {
		return Snapshot{}, err
	}
	s := Snapshot{Unit: unit, Updated: getUpdated(data)}
	for _, r := range ranges {
		b := Block{Table: r.Table, Address: r.Address}
		switch {
		case r.Table.IsBits():
			b.Bits, err = getBits(data, r.Table, r.Address, r.Count)
		case r.Table == TableHoldingRegisters || r.Table == TableInputRegisters:
			b.Registers, err = getRegisters(data, r.Table, r.Address, r.Count)
		default:
			err = fmt.Errorf("unknown table %v", r.Table)
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("%v at %d: %w", r.Table, r.Address, err)
		}
		s.Blocks = append(s.Blocks, b)
	}
	return s, nil
}

// Units returns the units opened so far in ascending order.
func (im *Image) Units() []byte {
	im.mu.RLock()
	defer im.mu.RUnlock()

	units := make([]byte, 0, len(im.units))
	for u := range im.units {
		units = append(units, u)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

// Close closes the storage.
func (im *Image) Close() error {
	im.mu.Lock()
	defer im.mu.Unlock()

	im.units = make(map[byte][]byte)
	return im.storage.Close()
}
