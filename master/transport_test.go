// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/transport"
)

// fakeTransport answers every written request through respond. Bytes in
// pending are returned by ReadAvailable or ReadTimeout.
type fakeTransport struct {
	mu sync.Mutex

	respond func(request []byte) []byte
	pending []byte
	written [][]byte
	events  []string

	status   modbus.ConnectionStatus
	opens    int
	openErr  error
	writeErr error
	readErr  error
}

func (f *fakeTransport) Open(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "open")
	if f.openErr != nil {
		return f.openErr
	}
	f.opens++
	f.status = modbus.Connected
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "close")
	if f.status == modbus.Connected {
		f.status = modbus.Disconnected
	}
	return nil
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "write")
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	if f.respond != nil {
		f.pending = append(f.pending, f.respond(p)...)
	}
	return nil
}

func (f *fakeTransport) ReadAvailable() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, "drain")
	stale := f.pending
	f.pending = nil
	return stale, nil
}

func (f *fakeTransport) ReadTimeout(p []byte, timeout time.Duration) (int, error) {
	f.mu.Lock()
	if f.readErr != nil {
		err := f.readErr
		f.mu.Unlock()
		return 0, err
	}
	if len(f.pending) == 0 {
		f.mu.Unlock()
		time.Sleep(timeout)
		return 0, transport.ErrTimeout
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	f.mu.Unlock()
	return n, nil
}

func (f *fakeTransport) Status() modbus.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTransport) lastWritten() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return nil
	}
	return f.written[len(f.written)-1]
}

func (f *fakeTransport) eventLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// halfDuplexTransport records direction switches around writes.
type halfDuplexTransport struct {
	*fakeTransport
}

func (h halfDuplexTransport) SwitchToTransmit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "transmit")
	return nil
}

func (h halfDuplexTransport) SwitchToReceive() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, "receive")
	return nil
}

var errBrokenPipe = errors.New("broken pipe")

func fixed(response []byte) func([]byte) []byte {
	return func([]byte) []byte {
		return response
	}
}
