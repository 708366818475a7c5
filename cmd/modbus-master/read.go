// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/internal/image"
	"github.com/ffutop/modbus-master/master"
)

type readOp struct {
	use   string
	short string
	table image.Table
}

var readOps = []readOp{
	{"read-coils", "Read coils (FC 1)", image.TableCoils},
	{"read-discrete-inputs", "Read discrete inputs (FC 2)", image.TableDiscreteInputs},
	{"read-holding-registers", "Read holding registers (FC 3)", image.TableHoldingRegisters},
	{"read-input-registers", "Read input registers (FC 4)", image.TableInputRegisters},
}

func newReadCmds(flags *globalFlags) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(readOps))
	for _, op := range readOps {
		op := op
		cmds = append(cmds, &cobra.Command{
			Use:     op.use + " <unit> <address> <quantity>",
			Short:   op.short,
			Example: fmt.Sprintf("  modbus-master %s 17 0x6B 3 --connection-type ETHERTCP --ip-address 10.0.0.2 --eth-port 502", op.use),
			Args:    cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				unit, err := parseUnit(args[0])
				if err != nil {
					return err
				}
				address, err := parseUint16("address", args[1])
				if err != nil {
					return err
				}
				quantity, err := strconv.Atoi(args[2])
				if err != nil {
					return fmt.Errorf("invalid quantity %q: %w", args[2], err)
				}
				return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
					block, err := readBlock(ctx, dev, op.table, unit, address, quantity)
					if err != nil {
						return err
					}
					return emit(cmd.OutOrStdout(), flags, block, func(w io.Writer) {
						printBlock(w, block)
					})
				})
			},
		})
	}
	return cmds
}

func readBlock(ctx context.Context, dev *master.Device, table image.Table, unit byte, address uint16, quantity int) (image.Block, error) {
	b := image.Block{Table: table, Address: address}
	var err error
	switch table {
	case image.TableCoils:
		b.Bits, err = dev.ReadCoils(ctx, unit, address, quantity)
	case image.TableDiscreteInputs:
		b.Bits, err = dev.ReadDiscreteInputs(ctx, unit, address, quantity)
	case image.TableHoldingRegisters:
		b.Registers, err = dev.ReadHoldingRegisters(ctx, unit, address, quantity)
	case image.TableInputRegisters:
		b.Registers, err = dev.ReadInputRegisters(ctx, unit, address, quantity)
	}
	return b, err
}

// printBlock prints one "address value" line per value.
func printBlock(w io.Writer, b image.Block) {
	for i, v := range b.Bits {
		state := "off"
		if v {
			state = "on"
		}
		fmt.Fprintf(w, "%d\t%s\n", int(b.Address)+i, state)
	}
	for i, v := range b.Registers {
		fmt.Fprintf(w, "%d\t%d\t0x%04X\n", int(b.Address)+i, v, v)
	}
}
