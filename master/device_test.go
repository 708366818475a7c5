// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/tbrandon/mbserver"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/crc"
	"github.com/ffutop/modbus-master/transport"
)

func fakeDevice(ft *fakeTransport) *Device {
	return NewDevice(
		WithTransportFactory(func(ConnectionConfig) (transport.Transport, error) { return ft, nil }),
		WithPortCheck(func(string) bool { return true }),
	)
}

func TestDevice_NotConnected(t *testing.T) {
	d := NewDevice()
	if st := d.Status(); st != modbus.NeverConnected {
		t.Errorf("Status() = %v, want NeverConnected", st)
	}
	if _, err := d.ReadCoils(context.Background(), 1, 0, 1); !errors.Is(err, modbus.ErrNotConnected) {
		t.Errorf("err = %v, want not connected", err)
	}
	if err := d.Connect(context.Background()); !errors.Is(err, modbus.ErrInvalidConfiguration) {
		t.Errorf("Connect() = %v, want invalid configuration", err)
	}
}

func TestDevice_SerialConfigureOpens(t *testing.T) {
	echo := crc.Append([]byte{0x01, 0x05, 0x00, 0x13, 0xFF, 0x00})
	ft := &fakeTransport{respond: fixed(echo)}
	d := fakeDevice(ft)
	ctx := context.Background()

	if err := d.Configure(ctx, serialConfig()); err != nil {
		t.Fatal(err)
	}
	if st := d.Status(); st != modbus.Connected {
		t.Errorf("Status() = %v, want Connected", st)
	}
	if ft.opens != 1 {
		t.Errorf("opens = %d, want 1", ft.opens)
	}
	if err := d.WriteSingleCoil(ctx, 1, 0x0013, true); err != nil {
		t.Fatal(err)
	}

	if err := d.Configure(ctx, serialConfig()); !errors.Is(err, modbus.ErrInvalidConfiguration) {
		t.Errorf("reconfigure = %v, want invalid configuration", err)
	}

	if err := d.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if st := d.Status(); st != modbus.NeverConnected {
		t.Errorf("Status() after disconnect = %v, want NeverConnected", st)
	}
	if err := d.WriteSingleCoil(ctx, 1, 0x0013, true); !errors.Is(err, modbus.ErrNotConnected) {
		t.Errorf("err = %v, want not connected", err)
	}
	if err := d.Configure(ctx, serialConfig()); err != nil {
		t.Errorf("configure after disconnect = %v", err)
	}
}

func TestDevice_ConfigureErrors(t *testing.T) {
	ctx := context.Background()

	bad := serialConfig()
	bad.BaudRate = 0
	if err := fakeDevice(&fakeTransport{}).Configure(ctx, bad); !errors.Is(err, modbus.ErrInvalidConfiguration) {
		t.Errorf("err = %v, want invalid configuration", err)
	}

	d := NewDevice(WithPortCheck(func(string) bool { return false }))
	if err := d.Configure(ctx, serialConfig()); !errors.Is(err, modbus.ErrNotAvailable) {
		t.Errorf("err = %v, want not available", err)
	}

	ft := &fakeTransport{openErr: errors.New("permission denied")}
	d = fakeDevice(ft)
	if err := d.Configure(ctx, serialConfig()); !errors.Is(err, modbus.ErrConnectionFailure) {
		t.Errorf("err = %v, want connection failure", err)
	}
	if st := d.Status(); st != modbus.NeverConnected {
		t.Errorf("Status() = %v, want NeverConnected", st)
	}
}

func TestDevice_EtherConfigureIsLazy(t *testing.T) {
	ft := &fakeTransport{respond: tcpResponder(0)}
	d := fakeDevice(ft)
	ctx := context.Background()

	if err := d.Configure(ctx, etherConfig()); err != nil {
		t.Fatal(err)
	}
	if ft.opens != 0 {
		t.Errorf("opens = %d, want 0", ft.opens)
	}
	if err := d.Connect(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := d.ReadHoldingRegisters(ctx, 1, 0, 1); err != nil {
		t.Fatal(err)
	}
	if ft.opens != 1 {
		t.Errorf("opens = %d, want 1", ft.opens)
	}
}

func tcpConfig(t *testing.T, addr string) ConnectionConfig {
	t.Helper()
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatal(err)
	}
	p, _ := strconv.Atoi(port)
	return ConnectionConfig{
		ConnectionType:   ConnectionEtherTCP,
		IPAddress:        host,
		EthPort:          p,
		TransmissionMode: "RTU",
		RespTimeout:      500,
		DialTimeout:      500,
	}
}

func TestDevice_TCPReconnectAfterDrop(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer listener.Close()

	go func() {
		// first connection: read the request and drop it
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		conn.Read(make([]byte, 260))
		conn.Close()

		conn, err = listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		header := make([]byte, 6)
		for {
			if _, err := io.ReadFull(conn, header); err != nil {
				return
			}
			body := make([]byte, binary.BigEndian.Uint16(header[4:]))
			if _, err := io.ReadFull(conn, body); err != nil {
				return
			}
			resp := append([]byte{header[0], header[1], 0, 0, 0, 6}, body[0], body[1], body[2], body[3], body[4], body[5])
			conn.Write(resp)
		}
	}()

	d := NewDevice()
	ctx := context.Background()
	if err := d.Configure(ctx, tcpConfig(t, listener.Addr().String())); err != nil {
		t.Fatal(err)
	}
	defer d.Disconnect()

	err = d.WriteSingleRegister(ctx, 1, 2, 3)
	if !errors.Is(err, modbus.ErrTransactionFailure) {
		t.Fatalf("err = %v, want transaction failure", err)
	}
	if st := d.Status(); st != modbus.Disconnected {
		t.Errorf("Status() = %v, want Disconnected", st)
	}

	if err := d.WriteSingleRegister(ctx, 1, 2, 3); err != nil {
		t.Fatalf("after reconnect: %v", err)
	}
	if st := d.Status(); st != modbus.Connected {
		t.Errorf("Status() = %v, want Connected", st)
	}
}

func freeAddress(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestDevice_MBServer(t *testing.T) {
	addr := freeAddress(t)
	serv := mbserver.NewServer()
	if err := serv.ListenTCP(addr); err != nil {
		t.Fatal(err)
	}
	defer serv.Close()
	serv.HoldingRegisters[0x6B] = 0x022B
	serv.HoldingRegisters[0x6D] = 0x0064
	serv.InputRegisters[8] = 0x000A
	serv.Coils[0x13] = 1
	serv.Coils[0x15] = 1
	serv.DiscreteInputs[3] = 1

	d := NewDevice()
	ctx := context.Background()
	if err := d.Configure(ctx, tcpConfig(t, addr)); err != nil {
		t.Fatal(err)
	}
	defer d.Disconnect()

	regs, err := d.ReadHoldingRegisters(ctx, 17, 0x6B, 3)
	if err != nil {
		t.Fatal(err)
	}
	if regs[0] != 0x022B || regs[1] != 0 || regs[2] != 0x0064 {
		t.Errorf("holding registers = %v", regs)
	}

	inputs, err := d.ReadInputRegisters(ctx, 17, 8, 1)
	if err != nil || inputs[0] != 0x000A {
		t.Errorf("input registers = %v, %v", inputs, err)
	}

	coils, err := d.ReadCoils(ctx, 17, 0x13, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !coils[0] || coils[1] || !coils[2] {
		t.Errorf("coils = %v", coils)
	}

	discrete, err := d.ReadDiscreteInputs(ctx, 17, 0, 4)
	if err != nil || !discrete[3] || discrete[0] {
		t.Errorf("discrete inputs = %v, %v", discrete, err)
	}

	if err := d.WriteSingleCoil(ctx, 17, 0x20, true); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteSingleRegister(ctx, 17, 0x30, 0xBEEF); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteMultipleRegister(ctx, 17, 0x40, []uint16{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := d.WriteMultipleCoils(ctx, 17, 0x50, []bool{true, false, true}); err != nil {
		t.Fatal(err)
	}

	// give the server a moment; writes are applied before the response is sent
	time.Sleep(10 * time.Millisecond)
	if serv.Coils[0x20] != 1 || serv.HoldingRegisters[0x30] != 0xBEEF {
		t.Errorf("single writes not applied")
	}
	if serv.HoldingRegisters[0x41] != 2 || serv.Coils[0x50] != 1 || serv.Coils[0x51] != 0 || serv.Coils[0x52] != 1 {
		t.Errorf("multiple writes not applied")
	}

	// the client rejects this range, so send it raw and let the server refuse it
	_, err = d.Transact(ctx, 17, modbus.ProtocolDataUnit{FunctionCode: modbus.FuncCodeReadHoldingRegisters, Data: []byte{0xFF, 0xFF, 0x00, 0x02}})
	var exc *modbus.ExceptionError
	if !errors.As(err, &exc) || exc.ExceptionCode != modbus.ExceptionCodeIllegalDataAddress {
		t.Errorf("read past 0xFFFF = %v, want illegal data address", err)
	}
	if !errors.Is(err, modbus.ErrTransactionFailure) {
		t.Errorf("read past 0xFFFF = %v, want transaction failure", err)
	}

	// the link stays usable after an exception
	if _, err := d.ReadHoldingRegisters(ctx, 17, 0x6B, 1); err != nil {
		t.Errorf("read after exception: %v", err)
	}
}
