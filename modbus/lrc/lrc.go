// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package lrc implements the Modbus ASCII longitudinal redundancy check.
package lrc

// LRC accumulates the modulo-256 sum of the bytes pushed into it.
type LRC struct {
	sum uint8
}

func (lrc *LRC) Reset() *LRC {
	lrc.sum = 0
	return lrc
}

func (lrc *LRC) PushByte(b byte) *LRC {
	lrc.sum += b
	return lrc
}

func (lrc *LRC) PushBytes(bs []byte) *LRC {
	for _, b := range bs {
		lrc.sum += b
	}
	return lrc
}

// Value returns the two's complement of the sum: ((sum XOR 0xFF) + 1) & 0xFF.
func (lrc *LRC) Value() byte {
	return (lrc.sum ^ 0xFF) + 1
}

// Compute returns the LRC of b.
func Compute(b []byte) byte {
	var lrc LRC
	return lrc.Reset().PushBytes(b).Value()
}

// Verify reports whether sum is the LRC of b.
func Verify(b []byte, sum byte) bool {
	return Compute(b) == sum
}
