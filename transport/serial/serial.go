// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial implements the RS232/RS485 transport.
package serial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	goserial "github.com/grid-x/serial"

	"github.com/ffutop/modbus-master/gpio"
	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
)

const (
	// Granularity of a single read on the tty. ReadTimeout loops over it
	// until its own deadline.
	pollInterval = 10 * time.Millisecond

	DefaultSettleDelay = 10 * time.Millisecond
)

// RS485 names the GPIO lines that drive a half-duplex transceiver.
type RS485 struct {
	// SwitchPin toggles the transceiver between transmit (high) and
	// receive (low).
	SwitchPin string
	// ModePin selects RS485 operation; it is driven high once at open.
	ModePin     string
	SettleDelay time.Duration
}

// Config is the serial line configuration.
type Config struct {
	Address  string
	BaudRate int
	DataBits int
	StopBits int
	// Parity is "N", "E" or "O".
	Parity string
	// RS485 is nil for RS232.
	RS485 *RS485
}

// Port is the tty handle used by Transport.
type Port io.ReadWriteCloser

// Transport is a serial line transport.
type Transport struct {
	Config

	// OpenPort opens the tty. It defaults to github.com/grid-x/serial.
	OpenPort func(c *goserial.Config) (Port, error)
	// OpenLine resolves a GPIO pin. It defaults to the sysfs interface.
	OpenLine gpio.Opener

	mu     sync.Mutex
	port   Port
	status modbus.ConnectionStatus
	// RS485 lines, owned while the port is open.
	switchLine gpio.Line
	modeLine   gpio.Line
}

// New returns an unopened serial transport.
func New(cfg Config) *Transport {
	return &Transport{Config: cfg}
}

func openPort(c *goserial.Config) (Port, error) {
	return goserial.Open(c)
}

func (mb *Transport) Open(ctx context.Context) (err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.connect(ctx)
}

// connect opens the serial port if it is not open. Caller must hold the mutex.
func (mb *Transport) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if mb.port != nil {
		return nil
	}
	open := mb.OpenPort
	if open == nil {
		open = openPort
	}
	port, err := open(&goserial.Config{
		Address:  mb.Address,
		BaudRate: mb.BaudRate,
		DataBits: mb.DataBits,
		StopBits: mb.StopBits,
		Parity:   mb.Parity,
		Timeout:  pollInterval,
	})
	if err != nil {
		return fmt.Errorf("could not open %s: %w", mb.Address, err)
	}
	mb.port = port
	if mb.RS485 != nil {
		if err = mb.setupLines(); err != nil {
			mb.close()
			return err
		}
	}
	mb.status = modbus.Connected
	slog.Debug("serial port opened", "address", mb.Address, "baudRate", mb.BaudRate, "rs485", mb.RS485 != nil)
	return nil
}

// setupLines exports both RS485 lines, asserts the mode line and leaves the
// transceiver in receive. Caller must hold the mutex.
func (mb *Transport) setupLines() (err error) {
	open := mb.OpenLine
	if open == nil {
		open = gpio.NewSysfs
	}
	if mb.modeLine, err = open(mb.RS485.ModePin); err != nil {
		return fmt.Errorf("rs485 mode line %s: %w", mb.RS485.ModePin, err)
	}
	if mb.switchLine, err = open(mb.RS485.SwitchPin); err != nil {
		return fmt.Errorf("rs485 switch line %s: %w", mb.RS485.SwitchPin, err)
	}
	for _, line := range []gpio.Line{mb.modeLine, mb.switchLine} {
		if err = line.Export(); err != nil {
			return err
		}
		if err = line.SetDirection(gpio.Out); err != nil {
			return err
		}
	}
	if err = mb.modeLine.SetValue(true); err != nil {
		return err
	}
	return mb.switchLine.SetValue(false)
}

func (mb *Transport) Close() (err error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	return mb.close()
}

// close closes the serial port and releases the RS485 lines. Caller must hold
// the mutex.
func (mb *Transport) close() (err error) {
	if mb.switchLine != nil {
		// back to receive so the bus is not held
		if e := mb.switchLine.SetValue(false); e != nil {
			slog.Warn("rs485 switch line release failed", "error", e)
		}
		mb.switchLine.Unexport()
		mb.switchLine = nil
	}
	if mb.modeLine != nil {
		mb.modeLine.Unexport()
		mb.modeLine = nil
	}
	if mb.port != nil {
		err = mb.port.Close()
		mb.port = nil
		mb.status = modbus.Disconnected
	}
	return
}

func (mb *Transport) Status() modbus.ConnectionStatus {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.status
}

func (mb *Transport) Write(p []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.port == nil {
		return io.ErrClosedPipe
	}
	for len(p) > 0 {
		n, err := mb.port.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}

func (mb *Transport) ReadAvailable() ([]byte, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.port == nil {
		return nil, io.ErrClosedPipe
	}
	var out []byte
	buf := make([]byte, 256)
	for {
		n, err := mb.port.Read(buf)
		out = append(out, buf[:n]...)
		if isTimeout(err) || (n == 0 && err == nil) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}
}

func (mb *Transport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.port == nil {
		return 0, io.ErrClosedPipe
	}
	deadline := time.Now().Add(timeout)
	for {
		n, err := mb.port.Read(p)
		if n > 0 {
			return n, nil
		}
		if err != nil && !isTimeout(err) {
			return 0, err
		}
		if !time.Now().Before(deadline) {
			return 0, transport.ErrTimeout
		}
	}
}

// HalfDuplex is an RS485 transport. It adds the transceiver direction switch
// to Transport; RS232 lines use Transport alone.
type HalfDuplex struct {
	*Transport
}

// NewHalfDuplex returns an unopened RS485 transport. cfg.RS485 must be set.
func NewHalfDuplex(cfg Config) *HalfDuplex {
	return &HalfDuplex{Transport: New(cfg)}
}

// SwitchToTransmit drives the transceiver to transmit.
func (mb *HalfDuplex) SwitchToTransmit() error {
	return mb.setDirection(true)
}

// SwitchToReceive drives the transceiver to receive.
func (mb *HalfDuplex) SwitchToReceive() error {
	return mb.setDirection(false)
}

func (mb *Transport) setDirection(transmit bool) error {
	mb.mu.Lock()
	line := mb.switchLine
	mb.mu.Unlock()
	if line == nil {
		return nil
	}
	if err := line.SetValue(transmit); err != nil {
		return err
	}
	delay := mb.RS485.SettleDelay
	if delay <= 0 {
		delay = DefaultSettleDelay
	}
	time.Sleep(delay)
	return nil
}

func isTimeout(err error) bool {
	return errors.Is(err, goserial.ErrTimeout)
}
