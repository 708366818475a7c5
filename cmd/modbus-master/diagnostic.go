// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/master"
	"github.com/ffutop/modbus-master/modbus"
)

type exceptionStatusOutput struct {
	Unit    byte   `yaml:"unit"`
	Outputs []bool `yaml:"outputs"`
}

type commEventOutput struct {
	Unit         byte    `yaml:"unit"`
	Status       uint16  `yaml:"status"`
	EventCount   uint16  `yaml:"eventCount"`
	MessageCount *uint16 `yaml:"messageCount,omitempty"`
	Events       []int   `yaml:"events,omitempty"`
}

func newCommEventOutput(unit byte, ev modbus.CommEvent, withLog bool) commEventOutput {
	out := commEventOutput{Unit: unit, Status: ev.Status, EventCount: ev.EventCount}
	if withLog {
		mc := ev.MessageCount
		out.MessageCount = &mc
		out.Events = make([]int, len(ev.Events))
		for i, e := range ev.Events {
			out.Events[i] = int(e)
		}
	}
	return out
}

func printCommEvent(w io.Writer, out commEventOutput) {
	fmt.Fprintf(w, "status\t0x%04X\n", out.Status)
	fmt.Fprintf(w, "events\t%d\n", out.EventCount)
	if out.MessageCount != nil {
		fmt.Fprintf(w, "messages\t%d\n", *out.MessageCount)
		for i, e := range out.Events {
			fmt.Fprintf(w, "event %d\t0x%02X\n", i, e)
		}
	}
}

func unitArg(use, short string, flags *globalFlags, run func(ctx context.Context, cmd *cobra.Command, dev *master.Device, unit byte) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <unit>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := parseUnit(args[0])
			if err != nil {
				return err
			}
			return withDevice(cmd, flags, func(ctx context.Context, dev *master.Device) error {
				return run(ctx, cmd, dev, unit)
			})
		},
	}
}

func newDiagnosticCmds(flags *globalFlags) []*cobra.Command {
	exceptionStatus := unitArg("read-exception-status", "Read the eight exception status outputs (FC 7)", flags,
		func(ctx context.Context, cmd *cobra.Command, dev *master.Device, unit byte) error {
			status, err := dev.ReadExceptionStatus(ctx, unit)
			if err != nil {
				return err
			}
			out := exceptionStatusOutput{Unit: unit, Outputs: status[:]}
			return emit(cmd.OutOrStdout(), flags, out, func(w io.Writer) {
				for i, v := range status {
					fmt.Fprintf(w, "%d\t%v\n", i, v)
				}
			})
		})

	counter := unitArg("comm-event-counter", "Get the communication event counter (FC 11)", flags,
		func(ctx context.Context, cmd *cobra.Command, dev *master.Device, unit byte) error {
			ev, err := dev.GetCommEventCounter(ctx, unit)
			if err != nil {
				return err
			}
			out := newCommEventOutput(unit, ev, false)
			return emit(cmd.OutOrStdout(), flags, out, func(w io.Writer) { printCommEvent(w, out) })
		})

	eventLog := unitArg("comm-event-log", "Get the communication event log (FC 12)", flags,
		func(ctx context.Context, cmd *cobra.Command, dev *master.Device, unit byte) error {
			ev, err := dev.GetCommEventLog(ctx, unit)
			if err != nil {
				return err
			}
			out := newCommEventOutput(unit, ev, true)
			return emit(cmd.OutOrStdout(), flags, out, func(w io.Writer) { printCommEvent(w, out) })
		})

	return []*cobra.Command{exceptionStatus, counter, eventLog}
}
