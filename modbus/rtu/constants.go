// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	// DefaultMinSize is the number of bytes needed before the length of any
	// response can be derived. It is also the length of an exception response.
	DefaultMinSize = 5
	ExceptionSize  = 5

	// EchoSize is the length of the write responses echoing address and quantity/value.
	EchoSize = 8

	CRCSize = 2
)
