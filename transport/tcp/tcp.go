// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package tcp implements the socket transport used for RTU payloads over TCP.
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
)

const (
	DefaultDialTimeout = 2 * time.Second
	// How long ReadAvailable waits for bytes already in flight.
	drainWindow = time.Millisecond
)

// Transport is a TCP client transport. Any I/O error closes the socket so
// that the next Open dials a fresh one.
type Transport struct {
	Address     string
	DialTimeout time.Duration

	mu     sync.Mutex
	conn   net.Conn
	status modbus.ConnectionStatus
}

// New returns an unopened transport for address ("host:port").
func New(address string) *Transport {
	return &Transport{
		Address:     address,
		DialTimeout: DefaultDialTimeout,
	}
}

// Open connects unless a connection is already established.
func (mb *Transport) Open(ctx context.Context) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.connect(ctx)
}

// connect ensures there is an active connection. Caller must hold the mutex.
func (mb *Transport) connect(ctx context.Context) error {
	if mb.conn != nil {
		return nil
	}
	dialer := net.Dialer{Timeout: mb.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", mb.Address, err)
	}
	mb.conn = conn
	mb.status = modbus.Connected
	slog.Debug("tcp connection established", "address", mb.Address)
	return nil
}

func (mb *Transport) Close() error {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.close()
}

// close closes the connection and resets the state. Caller must hold the mutex.
func (mb *Transport) close() (err error) {
	if mb.conn != nil {
		err = mb.conn.Close()
		mb.conn = nil
		mb.status = modbus.Disconnected
	}
	return
}

func (mb *Transport) Status() modbus.ConnectionStatus {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.status
}

func (mb *Transport) Write(p []byte) error {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		return net.ErrClosed
	}
	if err := mb.conn.SetWriteDeadline(time.Time{}); err != nil {
		mb.close()
		return err
	}
	if _, err := mb.conn.Write(p); err != nil {
		// Close connection on write failure to force reconnect next time
		slog.Warn("tcp write failed, closing connection", "address", mb.Address, "error", err)
		mb.close()
		return err
	}
	return nil
}

func (mb *Transport) ReadAvailable() ([]byte, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		return nil, net.ErrClosed
	}
	var out []byte
	buf := make([]byte, 256)
	for {
		if err := mb.conn.SetReadDeadline(time.Now().Add(drainWindow)); err != nil {
			mb.close()
			return out, err
		}
		n, err := mb.conn.Read(buf)
		out = append(out, buf[:n]...)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return out, nil
			}
			mb.close()
			return out, err
		}
	}
}

func (mb *Transport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.conn == nil {
		return 0, net.ErrClosed
	}
	// a deadline already passed fails before buffered bytes are read
	if timeout < drainWindow {
		timeout = drainWindow
	}
	if err := mb.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		mb.close()
		return 0, err
	}
	n, err := mb.conn.Read(p)
	if n > 0 {
		return n, nil
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return 0, transport.ErrTimeout
	}
	if err == nil {
		err = io.ErrNoProgress
	}
	slog.Warn("tcp read failed, closing connection", "address", mb.Address, "error", err)
	mb.close()
	return 0, err
}
