// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/master"
)

// writeArgs parses the unit and address common to every write command.
func writeArgs(args []string) (byte, uint16, error) {
	unit, err := parseUnit(args[0])
	if err != nil {
		return 0, 0, err
	}
	address, err := parseUint16("address", args[1])
	if err != nil {
		return 0, 0, err
	}
	return unit, address, nil
}

func newWriteCmds(flags *globalFlags) []*cobra.Command {
	writeCoil := &cobra.Command{
		Use:   "write-coil <unit> <address> <on|off>",
		Short: "Write a single coil (FC 5)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, address, err := writeArgs(args)
			if err != nil {
				return err
			}
			value, err := parseBool(args[2])
			if err != nil {
				return err
			}
			return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
				return dev.WriteSingleCoil(ctx, unit, address, value)
			})
		},
	}

	writeCoils := &cobra.Command{
		Use:   "write-coils <unit> <address> <on|off>...",
		Short: "Write multiple coils (FC 15)",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, address, err := writeArgs(args)
			if err != nil {
				return err
			}
			values := make([]bool, 0, len(args)-2)
			for _, arg := range args[2:] {
				v, err := parseBool(arg)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
			return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
				return dev.WriteMultipleCoils(ctx, unit, address, values)
			})
		},
	}

	writeRegister := &cobra.Command{
		Use:   "write-register <unit> <address> <value>",
		Short: "Write a single holding register (FC 6)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, address, err := writeArgs(args)
			if err != nil {
				return err
			}
			value, err := parseUint16("value", args[2])
			if err != nil {
				return err
			}
			return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
				return dev.WriteSingleRegister(ctx, unit, address, value)
			})
		},
	}

	writeRegisters := &cobra.Command{
		Use:     "write-registers <unit> <address> <value>...",
		Short:   "Write multiple holding registers (FC 16)",
		Example: "  modbus-master write-registers 17 1 0x000A 0x0102 --config modbus.yaml",
		Args:    cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, address, err := writeArgs(args)
			if err != nil {
				return err
			}
			values := make([]uint16, 0, len(args)-2)
			for i, arg := range args[2:] {
				v, err := parseUint16(fmt.Sprintf("value #%d", i+1), arg)
				if err != nil {
					return err
				}
				values = append(values, v)
			}
			return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
				return dev.WriteMultipleRegister(ctx, unit, address, values)
			})
		},
	}

	return []*cobra.Command{writeCoil, writeCoils, writeRegister, writeRegisters}
}
