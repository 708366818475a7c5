// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are the persistent flags shared by every command. The
// connection flags are not stored here; internal/config binds them by name.
type globalFlags struct {
	configFile string
	output     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "modbus-master",
		Short: "Modbus RTU/ASCII master over serial lines and TCP",
		Long: `modbus-master reads and writes the data tables of Modbus slaves
over a serial line (RS232/RS485) or a TCP socket carrying RTU frames.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", "", "Path to config file")
	pf.StringVarP(&flags.output, "output", "o", "text", "Output format: text or yaml")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.String("log-file", "", "Log file path (default stderr)")
	pf.String("connection-type", "", "Connection type: SERIAL or ETHERTCP")
	pf.String("port", "", "Serial device, e.g. /dev/ttyUSB0")
	pf.Int("baud-rate", 0, "Serial baud rate")
	pf.String("ip-address", "", "Slave host or IP address")
	pf.Int("eth-port", 0, "Slave TCP port")
	pf.String("transmission-mode", "", "Transmission mode: RTU or ASCII")
	pf.Int("resp-timeout", 0, "Response timeout in milliseconds")

	rootCmd.AddCommand(newVersionCmd())
	for _, cmd := range newReadCmds(flags) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newWriteCmds(flags) {
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range newDiagnosticCmds(flags) {
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(newPollCmd(flags))

	return rootCmd
}
