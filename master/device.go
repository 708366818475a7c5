// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package master is a Modbus master over serial lines and TCP sockets.
//
// A Device is configured once with a ConnectionConfig and then used through
// the embedded Client:
//
//	dev := master.NewDevice()
//	if err := dev.Configure(ctx, cfg); err != nil {
//		return err
//	}
//	defer dev.Disconnect()
//	values, err := dev.ReadHoldingRegisters(ctx, 17, 0x6B, 3)
package master

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
	"github.com/ffutop/modbus-master/transport/serial"
	"github.com/ffutop/modbus-master/transport/tcp"
)

// TransportFactory builds the transport for a validated configuration.
type TransportFactory func(cfg ConnectionConfig) (transport.Transport, error)

// DefaultTransportFactory builds a serial transport for SERIAL and a TCP
// transport for ETHERTCP. Only RS485 serial transports switch direction.
func DefaultTransportFactory(cfg ConnectionConfig) (transport.Transport, error) {
	switch cfg.ConnectionType {
	case ConnectionSerial:
		sc := cfg.SerialConfig()
		if sc.RS485 != nil {
			return serial.NewHalfDuplex(sc), nil
		}
		return serial.New(sc), nil
	case ConnectionEtherTCP:
		t := tcp.New(cfg.Address())
		if cfg.DialTimeout > 0 {
			t.DialTimeout = millis(cfg.DialTimeout)
		}
		return t, nil
	}
	return nil, invalid("unknown connectionType '%v'", cfg.ConnectionType)
}

// Option configures a Device.
type Option func(*Device)

// WithTransportFactory replaces DefaultTransportFactory.
func WithTransportFactory(f TransportFactory) Option {
	return func(d *Device) {
		d.newTransport = f
	}
}

// WithPortCheck replaces the check that a serial device node exists.
func WithPortCheck(f func(port string) bool) Option {
	return func(d *Device) {
		d.portExists = f
	}
}

// Device owns one configured connection and its transaction engine.
type Device struct {
	*Client

	newTransport TransportFactory
	portExists   func(port string) bool

	mu     sync.RWMutex
	cfg    ConnectionConfig
	engine *Engine
}

// NewDevice returns an unconfigured Device.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		newTransport: DefaultTransportFactory,
		portExists:   devicePortExists,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.Client = NewClient(d)
	return d
}

func devicePortExists(port string) bool {
	if !strings.HasPrefix(port, "/dev/") {
		return true
	}
	_, err := os.Stat(port)
	return !errors.Is(err, fs.ErrNotExist)
}

// Configure validates cfg and builds the connection. A serial port is opened
// immediately; a TCP socket is opened by Connect or by the first
// transaction. A configured Device must be disconnected before it can be
// configured again.
func (d *Device) Configure(ctx context.Context, cfg ConnectionConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine != nil {
		return invalid("connection already configured, disconnect first")
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ConnectionType == ConnectionSerial && !d.portExists(cfg.Port) {
		return modbus.NewError(modbus.NotAvailable, "serial port "+cfg.Port+" does not exist")
	}

	t, err := d.newTransport(cfg)
	if err != nil {
		return err
	}
	framing := FramingSerial
	if cfg.ConnectionType == ConnectionEtherTCP {
		framing = FramingTCP
	}
	engine := NewEngine(t, framing, cfg.Mode(), millis(cfg.RespTimeout))
	if cfg.CharTimeout > 0 {
		engine.CharTimeout = millis(cfg.CharTimeout)
	}
	if cfg.MaxResync > 0 {
		engine.MaxResync = cfg.MaxResync
	}

	if framing == FramingSerial {
		if err = t.Open(ctx); err != nil {
			return modbus.WrapError(modbus.ConnectionFailure, "", err)
		}
	}
	d.cfg = cfg
	d.engine = engine
	slog.Info("modbus connection configured", "connectionType", cfg.ConnectionType, "transmissionMode", cfg.TransmissionMode)
	return nil
}

// Connect opens the transport if it is not open.
func (d *Device) Connect(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.engine == nil {
		return invalid("connection not configured")
	}
	if d.engine.Transport.Status() == modbus.Connected {
		return nil
	}
	if err := d.engine.Transport.Open(ctx); err != nil {
		return modbus.WrapError(modbus.ConnectionFailure, "", err)
	}
	return nil
}

// Disconnect closes the transport and forgets the configuration. It waits for
// an in-flight transaction to finish.
func (d *Device) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.engine == nil {
		return nil
	}
	err := d.engine.Transport.Close()
	d.engine = nil
	d.cfg = ConnectionConfig{}
	slog.Info("modbus connection disconnected")
	return err
}

// Status returns NeverConnected for an unconfigured Device, otherwise the
// transport status.
func (d *Device) Status() modbus.ConnectionStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.engine == nil {
		return modbus.NeverConnected
	}
	return d.engine.Transport.Status()
}

// Config returns the active configuration.
func (d *Device) Config() (ConnectionConfig, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg, d.engine != nil
}

// Transact implements Transactor. It fails with NotConnected until the Device
// is configured.
func (d *Device) Transact(ctx context.Context, unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.engine == nil {
		return modbus.ProtocolDataUnit{}, modbus.ErrNotConnected
	}
	return d.engine.Transact(ctx, unit, pdu)
}
