// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ffutop/modbus-master/internal/image"
	"github.com/ffutop/modbus-master/internal/poller"
	"github.com/ffutop/modbus-master/master"
)

type pollFlags struct {
	units string
	once  bool
}

func newPollCmd(flags *globalFlags) *cobra.Command {
	pf := &pollFlags{}

	cmd := &cobra.Command{
		Use:   "poll",
		Short: "Poll the configured read blocks and print the process image",
		Long: `poll reads the blocks listed under poll.reads from every unit of
poll.units each poll.interval. A unit is recorded only when all of its reads
succeed. With image.type file or mmap the image survives restarts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, flags, pf)
		},
	}
	cmd.Flags().StringVar(&pf.units, "units", "", `Unit addresses, e.g. "1,2,5-10" (overrides poll.units)`)
	cmd.Flags().BoolVar(&pf.once, "once", false, "Poll once and exit")
	return cmd
}

func runPoll(cmd *cobra.Command, flags *globalFlags, pf *pollFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dev, cfg, err := openDevice(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer dev.Disconnect()

	if pf.units != "" {
		cfg.Poll.Units = pf.units
	}
	pcfg, err := poller.FromConfig(cfg.Poll)
	if err != nil {
		return fmt.Errorf("invalid poll configuration: %w", err)
	}

	storage, err := image.NewStorage(cfg.Image.Type, cfg.Image.Path)
	if err != nil {
		return err
	}
	img := image.New(storage)
	defer img.Close()

	p, err := poller.New(pcfg, dev, img)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	report := func(res poller.Result) error {
		if res.Err != nil {
			return res.Err
		}
		s, err := img.Snapshot(res.Unit, p.Ranges()...)
		if err != nil {
			return err
		}
		if isYAML(flags) {
			// one document per snapshot
			fmt.Fprintln(out, "---")
		}
		return emit(out, flags, s, func(w io.Writer) {
			fmt.Fprintf(w, "unit %d at %s\n", s.Unit, s.Updated.Format("2006-01-02T15:04:05.000Z07:00"))
			for _, b := range s.Blocks {
				fmt.Fprintf(w, "%v\n", b.Table)
				printBlock(w, b)
			}
		})
	}

	if pf.once {
		var failed int
		for _, res := range p.PollOnce(ctx) {
			if err := report(res); err != nil {
				slog.Error("Poll failed", "unit", res.Unit, "err", err)
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d units failed", failed, len(pcfg.Units))
		}
		return nil
	}

	slog.Info("Starting poller", "units", len(pcfg.Units), "reads", len(pcfg.Reads), "interval", pcfg.Interval)
	err = p.Run(ctx, func(res poller.Result) {
		if res.Err == nil {
			if err := report(res); err != nil {
				slog.Error("Failed to print poll result", "unit", res.Unit, "err", err)
			}
		}
	})
	slog.Info("Poller stopped")
	return err
}

var _ poller.Reader = (*master.Device)(nil)
