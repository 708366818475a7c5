// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	goserial "github.com/grid-x/serial"

	"github.com/ffutop/modbus-master/gpio"
	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
)

// mockPort answers reads from a buffer and reports a timeout when empty.
type mockPort struct {
	mu      sync.Mutex
	rx      bytes.Buffer
	tx      bytes.Buffer
	closed  bool
	readErr error
}

func (m *mockPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.rx.Len() == 0 {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		m.mu.Lock()
		return 0, goserial.ErrTimeout
	}
	return m.rx.Read(p)
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tx.Write(p)
}

func (m *mockPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func newMockTransport(cfg Config, port *mockPort, lines map[string]*gpio.Memory) *Transport {
	tr := New(cfg)
	tr.OpenPort = func(c *goserial.Config) (Port, error) {
		if c.Address != cfg.Address || c.BaudRate != cfg.BaudRate {
			return nil, errors.New("unexpected config")
		}
		return port, nil
	}
	tr.OpenLine = func(pin string) (gpio.Line, error) {
		line, ok := lines[pin]
		if !ok {
			return nil, errors.New("no such pin")
		}
		return line, nil
	}
	return tr
}

func TestTransport_OpenWriteRead(t *testing.T) {
	port := &mockPort{}
	tr := newMockTransport(Config{Address: "/dev/ttyS0", BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, port, nil)

	if st := tr.Status(); st != modbus.NeverConnected {
		t.Errorf("Status() = %v, want NeverConnected", st)
	}
	if err := tr.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if st := tr.Status(); st != modbus.Connected {
		t.Errorf("Status() = %v, want Connected", st)
	}

	port.rx.Write([]byte{0xAA, 0xBB})
	stale, err := tr.ReadAvailable()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(stale, []byte{0xAA, 0xBB}) {
		t.Errorf("ReadAvailable() = %X", stale)
	}

	if err := tr.Write([]byte{0x01, 0x02}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(port.tx.Bytes(), []byte{0x01, 0x02}) {
		t.Errorf("written = %X", port.tx.Bytes())
	}

	port.rx.Write([]byte{0x11})
	buf := make([]byte, 1)
	n, err := tr.ReadTimeout(buf, 50*time.Millisecond)
	if err != nil || n != 1 || buf[0] != 0x11 {
		t.Errorf("ReadTimeout() = %d, %v, %X", n, err, buf)
	}

	start := time.Now()
	if _, err := tr.ReadTimeout(buf, 20*time.Millisecond); !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("ReadTimeout() = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("ReadTimeout() returned after %v", elapsed)
	}

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if !port.closed {
		t.Error("port not closed")
	}
	if st := tr.Status(); st != modbus.Disconnected {
		t.Errorf("Status() = %v, want Disconnected", st)
	}
	if err := tr.Write([]byte{0x01}); err == nil {
		t.Error("Write() on closed transport expected error")
	}
}

func TestTransport_ReadError(t *testing.T) {
	port := &mockPort{readErr: errors.New("device gone")}
	tr := newMockTransport(Config{Address: "/dev/ttyS1"}, port, nil)
	if err := tr.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.ReadTimeout(make([]byte, 1), time.Second); err == nil || errors.Is(err, transport.ErrTimeout) {
		t.Errorf("ReadTimeout() = %v, want device error", err)
	}
}

func TestTransport_OpenFailure(t *testing.T) {
	tr := New(Config{Address: "/dev/missing"})
	tr.OpenPort = func(*goserial.Config) (Port, error) {
		return nil, errors.New("no such file")
	}
	if err := tr.Open(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st := tr.Status(); st != modbus.NeverConnected {
		t.Errorf("Status() = %v, want NeverConnected", st)
	}
}

func TestTransport_RS485(t *testing.T) {
	sw, mode := &gpio.Memory{}, &gpio.Memory{}
	lines := map[string]*gpio.Memory{"17": sw, "27": mode}
	cfg := Config{
		Address: "/dev/ttyS2",
		RS485:   &RS485{SwitchPin: "17", ModePin: "27", SettleDelay: time.Millisecond},
	}
	tr := &HalfDuplex{newMockTransport(cfg, &mockPort{}, lines)}
	if err := tr.Open(context.Background()); err != nil {
		t.Fatal(err)
	}

	if !mode.Exported() || mode.Direction() != gpio.Out || !mode.Value() {
		t.Error("mode line not asserted at open")
	}
	if !sw.Exported() || sw.Direction() != gpio.Out || sw.Value() {
		t.Error("switch line not in receive after open")
	}

	if err := tr.SwitchToTransmit(); err != nil {
		t.Fatal(err)
	}
	if !sw.Value() {
		t.Error("switch line low after SwitchToTransmit")
	}
	if err := tr.SwitchToReceive(); err != nil {
		t.Fatal(err)
	}
	if sw.Value() {
		t.Error("switch line high after SwitchToReceive")
	}
	if h := mode.History(); len(h) != 1 {
		t.Errorf("mode line written %d times, want once", len(h))
	}

	tr.Close()
	if sw.Exported() || mode.Exported() || sw.Value() {
		t.Error("lines not released on close")
	}
}

func TestTransport_RS485MissingPin(t *testing.T) {
	port := &mockPort{}
	cfg := Config{Address: "/dev/ttyS3", RS485: &RS485{SwitchPin: "1", ModePin: "2"}}
	tr := newMockTransport(cfg, port, map[string]*gpio.Memory{})
	if err := tr.Open(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if !port.closed {
		t.Error("port left open after GPIO failure")
	}
}

func TestTransport_DirectionSwitchOnlyForRS485(t *testing.T) {
	var rs232 transport.Transport = New(Config{Address: "/dev/ttyS4"})
	if _, ok := rs232.(transport.HalfDuplex); ok {
		t.Error("RS232 transport exposes a direction switch")
	}
	var rs485 transport.Transport = NewHalfDuplex(Config{Address: "/dev/ttyS4", RS485: &RS485{SwitchPin: "1", ModePin: "2"}})
	if _, ok := rs485.(transport.HalfDuplex); !ok {
		t.Error("RS485 transport has no direction switch")
	}
}
