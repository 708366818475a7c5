// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package ascii implements Modbus ASCII framing:
//
//	':' [SlaveID(2 hex)] [Func(2 hex)] [Data(2N hex)] [LRC(2 hex)] CR LF
package ascii

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/lrc"
)

const (
	Start byte = ':'
	CR    byte = '\r'
	LF    byte = '\n'

	// MinSize is ':' + slave(2) + func(2) + lrc(2) + CR LF.
	MinSize = 9
	// MaxSize is ':' + 2*(1+253+1) + CR LF.
	MaxSize = 513
)

var (
	ErrBadLRC   = errors.New("modbus: bad lrc")
	ErrBadFrame = errors.New("modbus: malformed ascii frame")
)

const hexTable = "0123456789ABCDEF"

type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Encode encodes the ADU as an ASCII frame with upper-case hex digits.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := 1 + 2*(2+len(adu.Pdu.Data)+1) + 2
	if length > MaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
	}
	var sum lrc.LRC
	sum.Reset().PushByte(adu.SlaveID).PushByte(adu.Pdu.FunctionCode).PushBytes(adu.Pdu.Data)

	raw := make([]byte, 0, length)
	raw = append(raw, Start)
	raw = appendHex(raw, adu.SlaveID)
	raw = appendHex(raw, adu.Pdu.FunctionCode)
	for _, b := range adu.Pdu.Data {
		raw = appendHex(raw, b)
	}
	raw = appendHex(raw, sum.Value())
	raw = append(raw, CR, LF)
	return raw, nil
}

func appendHex(dst []byte, b byte) []byte {
	return append(dst, hexTable[b>>4], hexTable[b&0x0F])
}

// Complete reports whether frame ends with the CR LF terminator.
func Complete(frame []byte) bool {
	n := len(frame)
	return n >= 2 && frame[n-2] == CR && frame[n-1] == LF
}

// Decode parses a complete ASCII frame and verifies its LRC.
func Decode(frame []byte) (*ApplicationDataUnit, error) {
	if len(frame) < MinSize {
		return nil, fmt.Errorf("%w: length '%v' does not meet minimum '%v'", ErrBadFrame, len(frame), MinSize)
	}
	if frame[0] != Start {
		return nil, fmt.Errorf("%w: missing start character", ErrBadFrame)
	}
	if !Complete(frame) {
		return nil, fmt.Errorf("%w: missing CR LF", ErrBadFrame)
	}
	digits := frame[1 : len(frame)-2]
	if len(digits)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of hex digits", ErrBadFrame)
	}
	raw := make([]byte, len(digits)/2)
	if _, err := hex.Decode(raw, digits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	body, sum := raw[:len(raw)-1], raw[len(raw)-1]
	if !lrc.Verify(body, sum) {
		return nil, fmt.Errorf("%w: response lrc '%v' does not match expected '%v'", ErrBadLRC, sum, lrc.Compute(body))
	}
	return &ApplicationDataUnit{
		SlaveID: body[0],
		Pdu: modbus.ProtocolDataUnit{
			FunctionCode: body[1],
			Data:         body[2:],
		},
	}, nil
}
