// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/master"
)

// openDevice loads the configuration of cmd, installs the logger and
// configures a device from it. The caller disconnects the device.
func openDevice(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*master.Device, *config.Config, error) {
	cfg, err := config.Load(flags.configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Log)

	dev := master.NewDevice()
	if err := dev.Configure(ctx, cfg.Connection); err != nil {
		return nil, nil, err
	}
	slog.Debug("Device configured", "connectionType", cfg.Connection.ConnectionType, "mode", cfg.Connection.TransmissionMode)
	return dev, cfg, nil
}

// withDevice runs fn against a configured device and disconnects it afterwards.
func withDevice(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, dev *master.Device) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	dev, _, err := openDevice(ctx, cmd, flags)
	if err != nil {
		return err
	}
	defer dev.Disconnect()
	return fn(ctx, dev)
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	// stdout carries command output, logs default to stderr
	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func isYAML(flags *globalFlags) bool {
	switch strings.ToLower(flags.output) {
	case "yaml", "yml":
		return true
	}
	return false
}

// emit writes v as YAML when --output yaml is set, otherwise calls text.
func emit(w io.Writer, flags *globalFlags, v interface{}, text func(w io.Writer)) error {
	if isYAML(flags) {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		return enc.Close()
	}
	switch strings.ToLower(flags.output) {
	case "", "text":
		text(w)
		return nil
	}
	return fmt.Errorf("unknown output format: %s", flags.output)
}

func parseUnit(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid unit address %q: %w", s, err)
	}
	return byte(v), nil
}

func parseUint16(what, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", what, s, err)
	}
	return uint16(v), nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid coil value %q: want on/off, true/false or 1/0", s)
}
