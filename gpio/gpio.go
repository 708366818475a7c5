// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package gpio drives the single-bit output lines used for RS485 direction
// control.
package gpio

import "fmt"

// Direction of a GPIO line.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	switch d {
	case In:
		return "in"
	case Out:
		return "out"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Line is a single GPIO line.
type Line interface {
	// Export makes the line available for use.
	Export() error
	SetDirection(d Direction) error
	SetValue(high bool) error
	// Unexport releases the line.
	Unexport() error
}

// Opener resolves a pin identifier to a Line.
type Opener func(pin string) (Line, error)
