// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"errors"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
)

var (
	ErrBadCRC           = errors.New("modbus: bad crc")
	ErrFunctionMismatch = errors.New("modbus: function code mismatch")
)

// ResponseLength returns the total length, CRC included, of the response ADU
// whose leading bytes are in adu. While the length cannot be derived yet it
// returns DefaultMinSize, so callers keep reading until at least that many
// bytes are buffered and ask again.
func ResponseLength(adu []byte) int {
	if len(adu) < 3 {
		return DefaultMinSize
	}
	if adu[1]&modbus.ExceptionFlag != 0 {
		return ExceptionSize
	}
	switch adu[1] {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeGetCommEventLog:
		// [SlaveID, Func, ByteCount, Data(N), CRC(2)]
		return 3 + int(adu[2]) + CRCSize
	case modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister,
		modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters,
		modbus.FuncCodeGetCommEventCounter:
		// [SlaveID, Func, Word(2), Word(2), CRC(2)]
		return EchoSize
	case modbus.FuncCodeReadExceptionStatus:
		// [SlaveID, Func, Status, CRC(2)]
		return 3 + CRCSize
	default:
		return DefaultMinSize
	}
}

// CheckResponse validates a complete response frame against the request's slave
// id and function code and returns its PDU. A valid exception response yields
// a *modbus.ExceptionError.
func CheckResponse(slaveID, functionCode byte, frame []byte) (modbus.ProtocolDataUnit, error) {
	adu, err := Decode(frame)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	if adu.SlaveID != slaveID {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: response slave id '%v' does not match request '%v'", adu.SlaveID, slaveID)
	}
	switch adu.Pdu.FunctionCode {
	case functionCode:
		return adu.Pdu, nil
	case functionCode | modbus.ExceptionFlag:
		var code byte
		if len(adu.Pdu.Data) > 0 {
			code = adu.Pdu.Data[0]
		}
		return modbus.ProtocolDataUnit{}, &modbus.ExceptionError{FunctionCode: adu.Pdu.FunctionCode, ExceptionCode: code}
	default:
		return modbus.ProtocolDataUnit{}, fmt.Errorf("%w: got '%v', want '%v'", ErrFunctionMismatch, adu.Pdu.FunctionCode, functionCode)
	}
}
