// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package poller reads a fixed set of blocks from a list of units on a clock
// and records the values in a process image.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image"
)

// Reader abstracts the read operations needed by the poller.
// *master.Client and *master.Device satisfy it.
type Reader interface {
	ReadCoils(ctx context.Context, unit byte, address uint16, quantity int) ([]bool, error)
	ReadDiscreteInputs(ctx context.Context, unit byte, address uint16, quantity int) ([]bool, error)
	ReadHoldingRegisters(ctx context.Context, unit byte, address uint16, quantity int) ([]uint16, error)
	ReadInputRegisters(ctx context.Context, unit byte, address uint16, quantity int) ([]uint16, error)
}

// ReadBlock describes one read geometry.
type ReadBlock struct {
	Table    image.Table
	Address  uint16
	Quantity int
}

// Range returns the image range covered by the block.
func (rb ReadBlock) Range() image.Range {
	return image.Range{Table: rb.Table, Address: rb.Address, Count: rb.Quantity}
}

// Config is the runtime config of a poller.
type Config struct {
	Units    []byte
	Interval time.Duration
	Reads    []ReadBlock
}

// FromConfig builds a poller Config from the poll section of the configuration.
func FromConfig(pc config.PollConfig) (Config, error) {
	units, err := ParseUnits(pc.Units)
	if err != nil {
		return Config{}, err
	}
	reads := make([]ReadBlock, 0, len(pc.Reads))
	for i, r := range pc.Reads {
		if r.Function < 0 || r.Function > 0xFF {
			return Config{}, fmt.Errorf("read %d: invalid function %d", i, r.Function)
		}
		table, err := image.TableOf(byte(r.Function))
		if err != nil {
			return Config{}, fmt.Errorf("read %d: %w", i, err)
		}
		if r.Address < 0 || r.Address > image.MaxAddress {
			return Config{}, fmt.Errorf("read %d: invalid address %d", i, r.Address)
		}
		reads = append(reads, ReadBlock{Table: table, Address: uint16(r.Address), Quantity: r.Count})
	}
	return Config{Units: units, Interval: pc.Interval, Reads: reads}, nil
}

// Result is the outcome of one poll of one unit.
type Result struct {
	Unit byte
	At   time.Time
	Err  error // non-nil means nothing was recorded for the unit
}

// Poller is a clock-driven reader.
type Poller struct {
	cfg    Config
	client Reader
	image  *image.Image
}

// New creates a poller with immutable config.
func New(cfg Config, client Reader, img *image.Image) (*Poller, error) {
	if len(cfg.Units) == 0 {
		return nil, errors.New("poller: at least one unit required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if len(cfg.Reads) == 0 {
		return nil, errors.New("poller: at least one read block required")
	}
	if img == nil {
		return nil, errors.New("poller: image required")
	}
	return &Poller{cfg: cfg, client: client, image: img}, nil
}

// Ranges returns the image ranges filled by the poller.
func (p *Poller) Ranges() []image.Range {
	ranges := make([]image.Range, len(p.cfg.Reads))
	for i, rb := range p.cfg.Reads {
		ranges[i] = rb.Range()
	}
	return ranges
}

// PollOnce polls every unit once.
func (p *Poller) PollOnce(ctx context.Context) []Result {
	results := make([]Result, 0, len(p.cfg.Units))
	for _, unit := range p.cfg.Units {
		results = append(results, p.pollUnit(ctx, unit))
	}
	return results
}

// pollUnit reads every block of unit. All-or-nothing: any failure aborts the
// poll and the image of the unit is left untouched.
func (p *Poller) pollUnit(ctx context.Context, unit byte) Result {
	res := Result{Unit: unit, At: time.Now()}

	blocks := make([]image.Block, 0, len(p.cfg.Reads))
	for _, rb := range p.cfg.Reads {
		b := image.Block{Table: rb.Table, Address: rb.Address}
		var err error
		switch rb.Table {
		case image.TableCoils:
			b.Bits, err = p.client.ReadCoils(ctx, unit, rb.Address, rb.Quantity)
		case image.TableDiscreteInputs:
			b.Bits, err = p.client.ReadDiscreteInputs(ctx, unit, rb.Address, rb.Quantity)
		case image.TableHoldingRegisters:
			b.Registers, err = p.client.ReadHoldingRegisters(ctx, unit, rb.Address, rb.Quantity)
		case image.TableInputRegisters:
			b.Registers, err = p.client.ReadInputRegisters(ctx, unit, rb.Address, rb.Quantity)
		default:
			err = fmt.Errorf("poller: unsupported table %v", rb.Table)
		}
		if err != nil {
			res.Err = fmt.Errorf("%v at %d: %w", rb.Table, rb.Address, err)
			return res
		}
		blocks = append(blocks, b)
	}

	// Commit only if all reads succeeded
	if err := p.image.Apply(unit, res.At, blocks...); err != nil {
		res.Err = err
	}
	return res
}
