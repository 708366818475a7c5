// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcprtu frames RTU payloads for a TCP socket. A 6-byte header
// (transaction id, protocol id, length) precedes [SlaveID, Func, Data]; no CRC
// is carried since TCP already guarantees byte integrity.
package tcprtu

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
)

const (
	HeaderSize = 6
	MinSize    = HeaderSize + 2
	MaxSize    = 260
)

type ApplicationDataUnit struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16
	SlaveID       byte
	Pdu           modbus.ProtocolDataUnit
}

// Header is the parsed 6-byte prefix of a frame.
type Header struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16
}

// DecodeHeader parses the first HeaderSize bytes of raw.
func DecodeHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, fmt.Errorf("modbus: header length '%v' does not meet minimum '%v'", len(raw), HeaderSize)
	}
	h := Header{
		TransactionID: binary.BigEndian.Uint16(raw[0:]),
		ProtocolID:    binary.BigEndian.Uint16(raw[2:]),
		Length:        binary.BigEndian.Uint16(raw[4:]),
	}
	if h.Length < 2 || int(h.Length)+HeaderSize > MaxSize {
		return h, fmt.Errorf("modbus: length in header '%v' must be between '2' and '%v'", h.Length, MaxSize-HeaderSize)
	}
	return h, nil
}

func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	if len(raw) < MinSize {
		err = fmt.Errorf("modbus: response length '%v' does not meet minimum '%v'", len(raw), MinSize)
		return
	}
	h, err := DecodeHeader(raw)
	if err != nil {
		return
	}
	if int(h.Length) != len(raw)-HeaderSize {
		err = fmt.Errorf("modbus: length in header '%v' does not match pdu data length '%v'", h.Length, len(raw)-HeaderSize)
		return
	}
	adu = &ApplicationDataUnit{
		TransactionID: h.TransactionID,
		ProtocolID:    h.ProtocolID,
		Length:        h.Length,
		SlaveID:       raw[6],
	}
	adu.Pdu.FunctionCode = raw[7]
	adu.Pdu.Data = raw[8:]
	return
}

// Encode encodes the ADU. Length is always recomputed from the PDU.
func (adu *ApplicationDataUnit) Encode() (raw []byte, err error) {
	length := len(adu.Pdu.Data) + MinSize
	if length > MaxSize {
		err = fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
		return
	}
	adu.Length = uint16(length - HeaderSize)
	raw = make([]byte, length)

	binary.BigEndian.PutUint16(raw[0:], adu.TransactionID)
	binary.BigEndian.PutUint16(raw[2:], adu.ProtocolID)
	binary.BigEndian.PutUint16(raw[4:], adu.Length)
	raw[6] = adu.SlaveID
	raw[7] = adu.Pdu.FunctionCode
	copy(raw[8:], adu.Pdu.Data)
	return
}

func (req *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) (err error) {
	// Transaction ID must match
	if resp.TransactionID != req.TransactionID {
		err = fmt.Errorf("modbus: response transaction id '%v' does not match request '%v'", resp.TransactionID, req.TransactionID)
		return
	}
	// Protocol ID must be 0
	if resp.ProtocolID != 0 {
		err = fmt.Errorf("modbus: response protocol id '%v' does not match request '%v'", resp.ProtocolID, req.ProtocolID)
		return
	}
	// Slave address must match
	if resp.SlaveID != req.SlaveID {
		err = fmt.Errorf("modbus: response slave id '%v' does not match request '%v'", resp.SlaveID, req.SlaveID)
		return
	}
	return
}
