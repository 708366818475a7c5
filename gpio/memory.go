// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package gpio

import (
	"errors"
	"sync"
)

// ErrNotExported is returned by Memory when a line is driven before Export.
var ErrNotExported = errors.New("gpio: line not exported")

// Memory is an in-memory Line. It records every value written.
type Memory struct {
	mu        sync.Mutex
	exported  bool
	direction Direction
	value     bool
	history   []bool
}

func (m *Memory) Export() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exported = true
	return nil
}

func (m *Memory) SetDirection(d Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exported {
		return ErrNotExported
	}
	m.direction = d
	return nil
}

func (m *Memory) SetValue(high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.exported {
		return ErrNotExported
	}
	m.value = high
	m.history = append(m.history, high)
	return nil
}

func (m *Memory) Unexport() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exported = false
	return nil
}

// Exported reports whether the line is exported.
func (m *Memory) Exported() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exported
}

func (m *Memory) Direction() Direction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.direction
}

func (m *Memory) Value() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.value
}

// History returns a copy of the values written so far.
func (m *Memory) History() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.history...)
}
