// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the Modbus RTU CRC16 (polynomial 0xA001, reflected).
package crc

// Seed is the initial register value of a Modbus CRC.
const Seed = 0xFFFF

const polynomial = 0xA001

// CRC is an incremental CRC16 register.
type CRC struct {
	value uint16
}

// Reset loads the seed into the register.
func (crc *CRC) Reset() *CRC {
	crc.value = Seed
	return crc
}

// ResetTo loads an arbitrary seed into the register.
func (crc *CRC) ResetTo(seed uint16) *CRC {
	crc.value = seed
	return crc
}

// PushByte feeds one byte into the register.
func (crc *CRC) PushByte(b byte) *CRC {
	crc.value ^= uint16(b)
	for i := 0; i < 8; i++ {
		if crc.value&1 != 0 {
			crc.value = crc.value>>1 ^ polynomial
		} else {
			crc.value >>= 1
		}
	}
	return crc
}

// PushBytes feeds bs into the register.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.PushByte(b)
	}
	return crc
}

// Value returns the current register value.
func (crc *CRC) Value() uint16 {
	return crc.value
}

// Checksum returns the CRC16 of b starting from seed.
func Checksum(b []byte, seed uint16) uint16 {
	var crc CRC
	return crc.ResetTo(seed).PushBytes(b).Value()
}

// Append appends the CRC16 of frame to it, low byte first.
func Append(frame []byte) []byte {
	sum := Checksum(frame, Seed)
	return append(frame, byte(sum), byte(sum>>8))
}

// Valid reports whether frame ends with a correct CRC16. Running the CRC
// over a frame including its own checksum yields zero.
func Valid(frame []byte) bool {
	return len(frame) >= 2 && Checksum(frame, Seed) == 0
}
