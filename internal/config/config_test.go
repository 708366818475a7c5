// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-master/master"
)

const sampleConfig = `
connection:
  connectionType: serial
  port: /dev/ttyUSB0
  baudRate: 9600
  parity: even
  serialMode: rs485
  serialGPIOswitch: "17"
  serialGPIOrsmode: "27"
  transmissionMode: ascii
  respTimeout: 250
log:
  level: DEBUG
poll:
  units: "1,3-4"
  interval: 2s
  reads:
    - function: 3
      address: 107
      count: 3
image:
  type: mmap
  path: /tmp/image.bin
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig), nil)
	if err != nil {
		t.Fatal(err)
	}
	c := cfg.Connection
	if c.ConnectionType != master.ConnectionSerial || c.Port != "/dev/ttyUSB0" || c.BaudRate != 9600 {
		t.Errorf("connection = %+v", c)
	}
	if c.Parity != "E" || c.SerialMode != master.SerialModeRS485 || c.SerialGPIOSwitch != "17" || c.SerialGPIORSMode != "27" {
		t.Errorf("serial fields = %+v", c)
	}
	if c.TransmissionMode != "ASCII" || c.RespTimeout != 250 || c.CharTimeout != 100 || c.MaxResync != 1000 {
		t.Errorf("shared fields = %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if cfg.Poll.Units != "1,3-4" || cfg.Poll.Interval != 2*time.Second || len(cfg.Poll.Reads) != 1 {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if r := cfg.Poll.Reads[0]; r.Function != 3 || r.Address != 107 || r.Count != 3 {
		t.Errorf("read = %+v", r)
	}
	if cfg.Image.Type != "mmap" || cfg.Image.Path != "/tmp/image.bin" {
		t.Errorf("image = %+v", cfg.Image)
	}
}

func TestLoad_FlagsOverride(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("connection-type", "", "")
	fs.String("ip-address", "", "")
	fs.Int("eth-port", 0, "")
	fs.Int("resp-timeout", 0, "")
	fs.String("port", "", "")
	if err := fs.Parse([]string{"--resp-timeout", "50"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(writeConfig(t, sampleConfig), fs)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Connection.RespTimeout != 50 {
		t.Errorf("respTimeout = %d, want 50", cfg.Connection.RespTimeout)
	}
	// unset flags keep the file values
	if cfg.Connection.Port != "/dev/ttyUSB0" {
		t.Errorf("port = %q", cfg.Connection.Port)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "connection:\n  connectionType: ETHERTCP\n  ipAddress: 10.0.0.2\n  ethport: 502\n"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Connection.TransmissionMode != "RTU" || cfg.Connection.RespTimeout != 1000 {
		t.Errorf("connection = %+v", cfg.Connection)
	}
	if cfg.Log.Level != "info" || cfg.Image.Type != "memory" || cfg.Poll.Interval != time.Second {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Connection.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing config file")
	}
}
