// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
)

// Quantity limits per request.
const (
	MaxReadBits       = 2000
	MaxReadRegisters  = 125
	MaxWriteBits      = 1968
	MaxWriteRegisters = 123
)

// Transactor performs one request/response cycle with a unit.
type Transactor interface {
	Transact(ctx context.Context, unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
}

// Client encodes and decodes the function-specific payloads over a
// Transactor.
type Client struct {
	t Transactor
}

// NewClient returns a Client issuing requests through t.
func NewClient(t Transactor) *Client {
	return &Client{t: t}
}

func checkUnit(unit byte) error {
	if unit < modbus.MinUnitAddress || unit > modbus.MaxUnitAddress {
		return modbus.NewError(modbus.InvalidDataAddress,
			fmt.Sprintf("unit address '%v' must be between '%v' and '%v'", unit, modbus.MinUnitAddress, modbus.MaxUnitAddress))
	}
	return nil
}

func checkQuantity(address uint16, quantity, max int) error {
	if quantity < 1 || quantity > max {
		return modbus.NewError(modbus.InvalidDataAddress,
			fmt.Sprintf("quantity '%v' must be between '1' and '%v'", quantity, max))
	}
	if int(address)+quantity > 0x10000 {
		return modbus.NewError(modbus.InvalidDataAddress,
			fmt.Sprintf("address '%v' plus quantity '%v' exceeds the address space", address, quantity))
	}
	return nil
}

func dataBlock(value ...uint16) []byte {
	data := make([]byte, 2*len(value))
	for i, v := range value {
		binary.BigEndian.PutUint16(data[i*2:], v)
	}
	return data
}

func (mb *Client) send(ctx context.Context, unit byte, functionCode byte, data []byte) ([]byte, error) {
	if err := checkUnit(unit); err != nil {
		return nil, err
	}
	resp, err := mb.t.Transact(ctx, unit, modbus.ProtocolDataUnit{FunctionCode: functionCode, Data: data})
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// readBlock returns the byte-counted block of a read response.
func readBlock(data []byte, want int) ([]byte, error) {
	if len(data) < 1 || len(data) < 1+int(data[0]) {
		return nil, modbus.NewError(modbus.InvalidDataType,
			fmt.Sprintf("response data size '%v' is shorter than its byte count", len(data)))
	}
	if int(data[0]) != want {
		return nil, modbus.NewError(modbus.InvalidDataAddress,
			fmt.Sprintf("response byte count '%v' does not match expected '%v'", data[0], want))
	}
	return data[1 : 1+want], nil
}

func (mb *Client) readBits(ctx context.Context, unit, functionCode byte, address uint16, quantity int) ([]bool, error) {
	if err := checkQuantity(address, quantity, MaxReadBits); err != nil {
		return nil, err
	}
	data, err := mb.send(ctx, unit, functionCode, dataBlock(address, uint16(quantity)))
	if err != nil {
		return nil, err
	}
	block, err := readBlock(data, (quantity+7)/8)
	if err != nil {
		return nil, err
	}
	return unpackBits(block, quantity), nil
}

func (mb *Client) readRegisters(ctx context.Context, unit, functionCode byte, address uint16, quantity int) ([]uint16, error) {
	if err := checkQuantity(address, quantity, MaxReadRegisters); err != nil {
		return nil, err
	}
	data, err := mb.send(ctx, unit, functionCode, dataBlock(address, uint16(quantity)))
	if err != nil {
		return nil, err
	}
	block, err := readBlock(data, quantity*2)
	if err != nil {
		return nil, err
	}
	values := make([]uint16, quantity)
	for i := range values {
		values[i] = binary.BigEndian.Uint16(block[i*2:])
	}
	return values, nil
}

// ReadCoils reads quantity coils starting at address. Bit 0 of the first
// response byte is the first coil.
func (mb *Client) ReadCoils(ctx context.Context, unit byte, address uint16, quantity int) ([]bool, error) {
	return mb.readBits(ctx, unit, modbus.FuncCodeReadCoils, address, quantity)
}

func (mb *Client) ReadDiscreteInputs(ctx context.Context, unit byte, address uint16, quantity int) ([]bool, error) {
	return mb.readBits(ctx, unit, modbus.FuncCodeReadDiscreteInputs, address, quantity)
}

// ReadHoldingRegisters reads quantity big-endian registers starting at
// address.
func (mb *Client) ReadHoldingRegisters(ctx context.Context, unit byte, address uint16, quantity int) ([]uint16, error) {
	return mb.readRegisters(ctx, unit, modbus.FuncCodeReadHoldingRegisters, address, quantity)
}

func (mb *Client) ReadInputRegisters(ctx context.Context, unit byte, address uint16, quantity int) ([]uint16, error) {
	return mb.readRegisters(ctx, unit, modbus.FuncCodeReadInputRegisters, address, quantity)
}

// writeEcho sends a single-value write and requires the device to echo it.
func (mb *Client) writeEcho(ctx context.Context, unit, functionCode byte, address, value uint16) error {
	request := dataBlock(address, value)
	data, err := mb.send(ctx, unit, functionCode, request)
	if err != nil {
		return err
	}
	return checkEcho(request, data, 4)
}

// checkEcho compares the first n bytes of the response with the request.
func checkEcho(request, response []byte, n int) error {
	if len(response) < n {
		return modbus.NewError(modbus.InvalidDataType,
			fmt.Sprintf("response data size '%v' does not match expected '%v'", len(response), n))
	}
	for i := 0; i < n; i++ {
		if request[i] != response[i] {
			return modbus.NewError(modbus.InvalidDataType,
				fmt.Sprintf("response '%X' does not echo request '%X'", response[:n], request[:n]))
		}
	}
	return nil
}

// WriteSingleCoil forces one coil on (0xFF00) or off (0x0000).
func (mb *Client) WriteSingleCoil(ctx context.Context, unit byte, address uint16, value bool) error {
	var v uint16
	if value {
		v = 0xFF00
	}
	return mb.writeEcho(ctx, unit, modbus.FuncCodeWriteSingleCoil, address, v)
}

func (mb *Client) WriteSingleRegister(ctx context.Context, unit byte, address uint16, value uint16) error {
	return mb.writeEcho(ctx, unit, modbus.FuncCodeWriteSingleRegister, address, value)
}

// WriteMultipleCoils forces len(values) coils starting at address. Only the
// echoed address and quantity are checked.
func (mb *Client) WriteMultipleCoils(ctx context.Context, unit byte, address uint16, values []bool) error {
	if err := checkQuantity(address, len(values), MaxWriteBits); err != nil {
		return err
	}
	packed := packBits(values)
	request := append(dataBlock(address, uint16(len(values))), byte(len(packed)))
	request = append(request, packed...)
	data, err := mb.send(ctx, unit, modbus.FuncCodeWriteMultipleCoils, request)
	if err != nil {
		return err
	}
	return checkEcho(request, data, 4)
}

// WriteMultipleRegister presets len(values) registers starting at address.
func (mb *Client) WriteMultipleRegister(ctx context.Context, unit byte, address uint16, values []uint16) error {
	if err := checkQuantity(address, len(values), MaxWriteRegisters); err != nil {
		return err
	}
	request := append(dataBlock(address, uint16(len(values))), byte(2*len(values)))
	request = append(request, dataBlock(values...)...)
	data, err := mb.send(ctx, unit, modbus.FuncCodeWriteMultipleRegisters, request)
	if err != nil {
		return err
	}
	return checkEcho(request, data, 4)
}

// ReadExceptionStatus returns the eight exception status outputs, bit 0
// first.
func (mb *Client) ReadExceptionStatus(ctx context.Context, unit byte) ([8]bool, error) {
	var status [8]bool
	data, err := mb.send(ctx, unit, modbus.FuncCodeReadExceptionStatus, nil)
	if err != nil {
		return status, err
	}
	if len(data) < 1 {
		return status, modbus.NewError(modbus.InvalidDataType, "empty exception status response")
	}
	copy(status[:], unpackBits(data[:1], 8))
	return status, nil
}

// GetCommEventCounter returns the status word and event count.
func (mb *Client) GetCommEventCounter(ctx context.Context, unit byte) (modbus.CommEvent, error) {
	data, err := mb.send(ctx, unit, modbus.FuncCodeGetCommEventCounter, nil)
	if err != nil {
		return modbus.CommEvent{}, err
	}
	if len(data) < 4 {
		return modbus.CommEvent{}, modbus.NewError(modbus.InvalidDataType,
			fmt.Sprintf("response data size '%v' does not match expected '4'", len(data)))
	}
	return modbus.CommEvent{
		Status:     binary.BigEndian.Uint16(data[0:]),
		EventCount: binary.BigEndian.Uint16(data[2:]),
	}, nil
}

// GetCommEventLog returns the status, counters and up to MaxCommEvents event
// bytes, most recent first.
func (mb *Client) GetCommEventLog(ctx context.Context, unit byte) (modbus.CommEvent, error) {
	data, err := mb.send(ctx, unit, modbus.FuncCodeGetCommEventLog, nil)
	if err != nil {
		return modbus.CommEvent{}, err
	}
	if len(data) < 1 {
		return modbus.CommEvent{}, modbus.NewError(modbus.InvalidDataType, "empty comm event log response")
	}
	count := int(data[0])
	if count < 6 || count > modbus.MaxCommEvents+6 || len(data) < 1+count {
		return modbus.CommEvent{}, modbus.NewError(modbus.InvalidDataType,
			fmt.Sprintf("comm event log byte count '%v' is invalid for response data size '%v'", count, len(data)))
	}
	events := make([]byte, count-6)
	copy(events, data[7:1+count])
	return modbus.CommEvent{
		Status:       binary.BigEndian.Uint16(data[1:]),
		EventCount:   binary.BigEndian.Uint16(data[3:]),
		MessageCount: binary.BigEndian.Uint16(data[5:]),
		Events:       events,
	}, nil
}

func packBits(values []bool) []byte {
	packed := make([]byte, (len(values)+7)/8)
	for i, v := range values {
		if v {
			packed[i/8] |= 1 << uint(i%8)
		}
	}
	return packed
}

func unpackBits(packed []byte, n int) []bool {
	values := make([]bool, n)
	for i := range values {
		values[i] = packed[i/8]&(1<<uint(i%8)) != 0
	}
	return values
}
