// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport/serial"
)

// Connection types.
const (
	ConnectionSerial   = "SERIAL"
	ConnectionEtherTCP = "ETHERTCP"
)

// Serial modes.
const (
	SerialModeRS232 = "RS232"
	SerialModeRS485 = "RS485"
)

// ConnectionConfig describes one connection to a field bus. Timeouts are in
// milliseconds.
type ConnectionConfig struct {
	ConnectionType string `mapstructure:"connectionType" yaml:"connectionType"`

	// SERIAL
	Port             string `mapstructure:"port" yaml:"port,omitempty"`
	BaudRate         int    `mapstructure:"baudRate" yaml:"baudRate,omitempty"`
	StopBits         int    `mapstructure:"stopBits" yaml:"stopBits,omitempty"`
	Parity           string `mapstructure:"parity" yaml:"parity,omitempty"`
	BitsPerWord      int    `mapstructure:"bitsPerWord" yaml:"bitsPerWord,omitempty"`
	SerialMode       string `mapstructure:"serialMode" yaml:"serialMode,omitempty"`
	SerialGPIOSwitch string `mapstructure:"serialGPIOswitch" yaml:"serialGPIOswitch,omitempty"`
	SerialGPIORSMode string `mapstructure:"serialGPIOrsmode" yaml:"serialGPIOrsmode,omitempty"`
	RS485SettleDelay int    `mapstructure:"rs485SettleDelay" yaml:"rs485SettleDelay,omitempty"`

	// ETHERTCP
	IPAddress   string `mapstructure:"ipAddress" yaml:"ipAddress,omitempty"`
	EthPort     int    `mapstructure:"ethport" yaml:"ethport,omitempty"`
	DialTimeout int    `mapstructure:"dialTimeout" yaml:"dialTimeout,omitempty"`

	TransmissionMode string `mapstructure:"transmissionMode" yaml:"transmissionMode"`
	RespTimeout      int    `mapstructure:"respTimeout" yaml:"respTimeout"`
	CharTimeout      int    `mapstructure:"charTimeout" yaml:"charTimeout,omitempty"`
	MaxResync        int    `mapstructure:"maxResync" yaml:"maxResync,omitempty"`
}

func invalid(format string, v ...interface{}) error {
	return modbus.NewError(modbus.InvalidConfiguration, fmt.Sprintf(format, v...))
}

// Normalize upper-cases the enumerations and fills defaults for optional
// fields.
func (c *ConnectionConfig) Normalize() {
	c.ConnectionType = strings.ToUpper(strings.TrimSpace(c.ConnectionType))
	c.TransmissionMode = strings.ToUpper(strings.TrimSpace(c.TransmissionMode))
	c.SerialMode = strings.ToUpper(strings.TrimSpace(c.SerialMode))
	c.Parity = normalizeParity(c.Parity)
	if c.ConnectionType != ConnectionSerial {
		return
	}
	if c.BitsPerWord == 0 {
		c.BitsPerWord = 8
	}
	if c.StopBits == 0 {
		c.StopBits = 1
	}
	if c.Parity == "" {
		c.Parity = "N"
	}
	if c.SerialMode == "" {
		c.SerialMode = SerialModeRS232
	}
}

func normalizeParity(p string) string {
	switch strings.ToUpper(strings.TrimSpace(p)) {
	case "N", "NONE", "0":
		return "N"
	case "O", "ODD", "1":
		return "O"
	case "E", "EVEN", "2":
		return "E"
	default:
		return strings.ToUpper(strings.TrimSpace(p))
	}
}

// Validate checks that the configuration is complete and that only the fields
// of its connection type are set.
func (c *ConnectionConfig) Validate() error {
	if _, err := modbus.ParseTransmissionMode(c.TransmissionMode); err != nil {
		return invalid("transmissionMode: %v", err)
	}
	if c.RespTimeout < 0 {
		return invalid("respTimeout '%v' must not be negative", c.RespTimeout)
	}
	if c.CharTimeout < 0 || c.MaxResync < 0 || c.DialTimeout < 0 || c.RS485SettleDelay < 0 {
		return invalid("timeouts and maxResync must not be negative")
	}
	switch c.ConnectionType {
	case ConnectionSerial:
		return c.validateSerial()
	case ConnectionEtherTCP:
		return c.validateEther()
	case "":
		return invalid("connectionType is required")
	default:
		return invalid("unknown connectionType '%v'", c.ConnectionType)
	}
}

func (c *ConnectionConfig) validateSerial() error {
	if c.IPAddress != "" || c.EthPort != 0 {
		return invalid("ipAddress/ethport must not be set for %v", ConnectionSerial)
	}
	if c.Port == "" {
		return invalid("port is required for %v", ConnectionSerial)
	}
	if c.BaudRate <= 0 {
		return invalid("baudRate '%v' must be positive", c.BaudRate)
	}
	if c.BitsPerWord < 5 || c.BitsPerWord > 8 {
		return invalid("bitsPerWord '%v' must be between '5' and '8'", c.BitsPerWord)
	}
	if c.StopBits != 1 && c.StopBits != 2 {
		return invalid("stopBits '%v' must be '1' or '2'", c.StopBits)
	}
	switch c.Parity {
	case "N", "E", "O":
	default:
		return invalid("parity '%v' must be one of N, E, O", c.Parity)
	}
	switch c.SerialMode {
	case SerialModeRS232:
	case SerialModeRS485:
		if c.SerialGPIOSwitch == "" || c.SerialGPIORSMode == "" {
			return invalid("serialGPIOswitch and serialGPIOrsmode are required for %v", SerialModeRS485)
		}
	default:
		return invalid("unknown serialMode '%v'", c.SerialMode)
	}
	return nil
}

func (c *ConnectionConfig) validateEther() error {
	if c.Port != "" || c.BaudRate != 0 || c.SerialGPIOSwitch != "" || c.SerialGPIORSMode != "" {
		return invalid("serial fields must not be set for %v", ConnectionEtherTCP)
	}
	if c.IPAddress == "" {
		return invalid("ipAddress is required for %v", ConnectionEtherTCP)
	}
	if strings.ContainsAny(c.IPAddress, " :/") && net.ParseIP(c.IPAddress) == nil {
		return invalid("ipAddress '%v' is not a host or IP address", c.IPAddress)
	}
	if c.EthPort < 1 || c.EthPort > 65535 {
		return invalid("ethport '%v' must be between '1' and '65535'", c.EthPort)
	}
	return nil
}

// Mode returns the transmission mode. The config must be valid.
func (c *ConnectionConfig) Mode() modbus.TransmissionMode {
	mode, _ := modbus.ParseTransmissionMode(c.TransmissionMode)
	return mode
}

// Address returns "host:port" of an ETHERTCP connection.
func (c *ConnectionConfig) Address() string {
	return net.JoinHostPort(c.IPAddress, strconv.Itoa(c.EthPort))
}

// SerialConfig returns the serial transport settings of a SERIAL connection.
func (c *ConnectionConfig) SerialConfig() serial.Config {
	cfg := serial.Config{
		Address:  c.Port,
		BaudRate: c.BaudRate,
		DataBits: c.BitsPerWord,
		StopBits: c.StopBits,
		Parity:   c.Parity,
	}
	if c.SerialMode == SerialModeRS485 {
		cfg.RS485 = &serial.RS485{
			SwitchPin:   c.SerialGPIOSwitch,
			ModePin:     c.SerialGPIORSMode,
			SettleDelay: millis(c.RS485SettleDelay),
		}
	}
	return cfg
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
