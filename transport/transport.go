// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the byte-stream connections a master talks over.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/ffutop/modbus-master/modbus"
)

// ErrTimeout is returned by ReadTimeout when no byte arrived in time.
var ErrTimeout = errors.New("transport: read timeout")

// Transport is a byte-stream connection to one or more field devices.
//
// A Transport is not safe for concurrent transactions; the caller serializes
// every write/read pair.
type Transport interface {
	Open(ctx context.Context) error
	Close() error
	// Write writes the whole buffer.
	Write(p []byte) error
	// ReadAvailable returns the bytes already received, without waiting for
	// more.
	ReadAvailable() ([]byte, error)
	// ReadTimeout reads at least one byte into p, waiting at most timeout.
	// It returns ErrTimeout when nothing arrived.
	ReadTimeout(p []byte, timeout time.Duration) (int, error)
	Status() modbus.ConnectionStatus
}

// HalfDuplex is implemented by transports that must switch the line
// direction around a write, as RS485 does.
type HalfDuplex interface {
	SwitchToTransmit() error
	SwitchToReceive() error
}

// IsTimeout reports whether err is a read timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
