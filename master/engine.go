// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package master

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ffutop/modbus-master/modbus"
	"github.com/ffutop/modbus-master/modbus/ascii"
	"github.com/ffutop/modbus-master/modbus/rtu"
	"github.com/ffutop/modbus-master/modbus/tcprtu"
	"github.com/ffutop/modbus-master/transport"
)

const (
	DefaultCharTimeout = 100 * time.Millisecond
	DefaultMaxResync   = 1000
)

// Framing selects how frames are delimited on the wire.
type Framing int

const (
	// FramingSerial delimits frames by address, length and checksum.
	FramingSerial Framing = iota
	// FramingTCP prefixes the RTU payload with a 6-byte header and drops the
	// CRC.
	FramingTCP
)

// Engine runs one request/response cycle at a time over a Transport.
type Engine struct {
	Transport transport.Transport
	Framing   Framing
	Mode      modbus.TransmissionMode
	// RespTimeout bounds the wait for the first response byte.
	RespTimeout time.Duration
	// CharTimeout bounds the wait between bytes once a frame has started.
	CharTimeout time.Duration
	// MaxResync bounds the number of realignments within one transaction.
	MaxResync int

	mu  sync.Mutex
	seq tcprtu.Sequence
}

// NewEngine returns an engine with the default character timeout and resync
// cap.
func NewEngine(t transport.Transport, framing Framing, mode modbus.TransmissionMode, respTimeout time.Duration) *Engine {
	return &Engine{
		Transport:   t,
		Framing:     framing,
		Mode:        mode,
		RespTimeout: respTimeout,
		CharTimeout: DefaultCharTimeout,
		MaxResync:   DefaultMaxResync,
	}
}

// Transact sends pdu to unit and returns the response PDU. Transactions are
// serialized; ctx is only consulted before the request is written.
func (e *Engine) Transact(ctx context.Context, unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.TransactionFailure, "", err)
	}
	if e.Framing == FramingTCP && e.Mode == modbus.ModeASCII {
		return modbus.ProtocolDataUnit{}, modbus.NewError(modbus.MethodNotSupported, "ascii transmission over tcp")
	}
	if e.Transport.Status() != modbus.Connected {
		if err := e.Transport.Open(ctx); err != nil {
			return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.ConnectionFailure, "", err)
		}
	}

	var (
		request []byte
		tid     uint16
		err     error
	)
	switch {
	case e.Framing == FramingTCP:
		tid = e.seq.Next()
		adu := &tcprtu.ApplicationDataUnit{TransactionID: tid, SlaveID: unit, Pdu: pdu}
		request, err = adu.Encode()
	case e.Mode == modbus.ModeASCII:
		adu := &ascii.ApplicationDataUnit{SlaveID: unit, Pdu: pdu}
		request, err = adu.Encode()
	default:
		adu := &rtu.ApplicationDataUnit{SlaveID: unit, Pdu: pdu}
		request, err = adu.Encode()
	}
	if err != nil {
		return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.InvalidDataType, "failed to encode request", err)
	}

	if err = e.send(request); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	switch {
	case e.Framing == FramingTCP:
		return e.recvTCP(unit, pdu.FunctionCode, tid)
	case e.Mode == modbus.ModeASCII:
		return e.recvASCII(unit, pdu.FunctionCode)
	default:
		return e.recvRTU(unit, pdu.FunctionCode)
	}
}

// send drains stale input and writes request, switching an RS485 line around
// the write.
func (e *Engine) send(request []byte) error {
	stale, err := e.Transport.ReadAvailable()
	if err != nil {
		return e.ioFailure(err)
	}
	if len(stale) > 0 {
		slog.Debug("discarding stale input", "bytes", hex.EncodeToString(stale))
	}

	hd, halfDuplex := e.Transport.(transport.HalfDuplex)
	if halfDuplex {
		if err = hd.SwitchToTransmit(); err != nil {
			return modbus.WrapError(modbus.TransactionFailure, "rs485 switch to transmit", err)
		}
	}
	slog.Debug("send to modbus slave", "request", hex.EncodeToString(request))
	err = e.Transport.Write(request)
	if halfDuplex {
		if serr := hd.SwitchToReceive(); serr != nil && err == nil {
			return modbus.WrapError(modbus.TransactionFailure, "rs485 switch to receive", serr)
		}
	}
	if err != nil {
		return e.ioFailure(err)
	}
	return nil
}

// ioFailure closes the transport so that the next transaction reopens it.
func (e *Engine) ioFailure(err error) error {
	e.Transport.Close()
	return modbus.WrapError(modbus.TransactionFailure, "", err)
}

// readByte reads a single byte, mapping a timeout to ResponseTimeout.
func (e *Engine) readByte(one []byte, timeout time.Duration) error {
	_, err := e.Transport.ReadTimeout(one, timeout)
	if err == nil {
		return nil
	}
	if transport.IsTimeout(err) {
		slog.Warn("modbus response timeout", "timeout", timeout)
		return modbus.NewError(modbus.ResponseTimeout, "recv timeout")
	}
	return e.ioFailure(err)
}

func tooMuchActivity() error {
	return modbus.NewError(modbus.TransactionFailure, "too much activity on recv line")
}

func exceptionFailure(err error) error {
	return modbus.WrapError(modbus.TransactionFailure, "exception response", err)
}

// recvRTU accumulates an RTU response byte by byte. A frame that fails
// validation once complete is realigned by dropping its first byte.
func (e *Engine) recvRTU(unit, functionCode byte) (modbus.ProtocolDataUnit, error) {
	var (
		buf     = make([]byte, 0, rtu.MaxSize)
		one     = make([]byte, 1)
		minLen  = rtu.DefaultMinSize
		resyncs = 0
		timeout = e.RespTimeout
	)
	for {
		if err := e.readByte(one, timeout); err != nil {
			return modbus.ProtocolDataUnit{}, err
		}
		if len(buf) == 0 && one[0] != unit {
			continue
		}
		buf = append(buf, one[0])
		timeout = e.CharTimeout

		for len(buf) >= minLen {
			fc := buf[1]
			if fc == functionCode || fc == functionCode|modbus.ExceptionFlag {
				expected := rtu.ResponseLength(buf)
				if len(buf) < expected {
					minLen = expected
					break
				}
				pdu, err := rtu.CheckResponse(unit, functionCode, buf[:expected])
				if err == nil {
					slog.Debug("recv from modbus slave", "response", hex.EncodeToString(buf[:expected]))
					return pdu, nil
				}
				var exc *modbus.ExceptionError
				if errors.As(err, &exc) {
					slog.Debug("recv exception from modbus slave", "response", hex.EncodeToString(buf[:expected]))
					return modbus.ProtocolDataUnit{}, exceptionFailure(exc)
				}
			}

			resyncs++
			if resyncs > e.MaxResync {
				return modbus.ProtocolDataUnit{}, tooMuchActivity()
			}
			slog.Debug("resync on recv line", "buffer", hex.EncodeToString(buf), "attempt", resyncs)
			buf = resync(buf, unit)
			minLen = rtu.DefaultMinSize
		}
	}
}

// resync drops the first byte of buf, then every leading byte that cannot
// start a response from unit.
func resync(buf []byte, unit byte) []byte {
	i := 1
	for i < len(buf) && buf[i] != unit {
		i++
	}
	n := copy(buf, buf[i:])
	return buf[:n]
}

// recvASCII accumulates ':' ... CR LF and validates the decoded frame. Frames
// from another unit or for another function are skipped.
func (e *Engine) recvASCII(unit, functionCode byte) (modbus.ProtocolDataUnit, error) {
	var (
		buf     = make([]byte, 0, ascii.MaxSize)
		one     = make([]byte, 1)
		resyncs = 0
	)
	for {
		if err := e.readByte(one, e.RespTimeout); err != nil {
			return modbus.ProtocolDataUnit{}, err
		}
		b := one[0]
		if len(buf) == 0 && b != ascii.Start {
			continue
		}
		if len(buf) >= ascii.MaxSize {
			resyncs++
			if resyncs > e.MaxResync {
				return modbus.ProtocolDataUnit{}, tooMuchActivity()
			}
			buf = buf[:0]
			if b == ascii.Start {
				buf = append(buf, b)
			}
			continue
		}
		buf = append(buf, b)
		if !ascii.Complete(buf) {
			continue
		}

		slog.Debug("recv from modbus slave", "response", string(buf[:len(buf)-2]))
		adu, err := ascii.Decode(buf)
		if err != nil {
			return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.TransactionFailure, "", err)
		}
		fc := adu.Pdu.FunctionCode
		if adu.SlaveID != unit || (fc != functionCode && fc != functionCode|modbus.ExceptionFlag) {
			resyncs++
			if resyncs > e.MaxResync {
				return modbus.ProtocolDataUnit{}, tooMuchActivity()
			}
			slog.Debug("skipping unrelated ascii frame", "slaveID", adu.SlaveID, "functionCode", fc)
			buf = buf[:0]
			continue
		}
		return checkPayload(unit, adu.Pdu)
	}
}

// checkPayload validates a checksum-free response PDU from unit.
func checkPayload(unit byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	head := make([]byte, 0, 3)
	head = append(head, unit, pdu.FunctionCode)
	if len(pdu.Data) > 0 {
		head = append(head, pdu.Data[0])
	}
	expected := rtu.ResponseLength(head) - rtu.CRCSize - 2
	if len(pdu.Data) < expected {
		return modbus.ProtocolDataUnit{}, modbus.NewError(modbus.TransactionFailure,
			fmt.Sprintf("response data length '%v' does not meet expected '%v'", len(pdu.Data), expected))
	}
	if pdu.FunctionCode&modbus.ExceptionFlag != 0 {
		return modbus.ProtocolDataUnit{}, exceptionFailure(&modbus.ExceptionError{FunctionCode: pdu.FunctionCode, ExceptionCode: pdu.Data[0]})
	}
	pdu.Data = pdu.Data[:expected]
	return pdu, nil
}

// recvTCP reads the 6-byte header and then exactly the announced payload.
func (e *Engine) recvTCP(unit, functionCode byte, tid uint16) (modbus.ProtocolDataUnit, error) {
	deadline := time.Now().Add(e.RespTimeout)

	header := make([]byte, tcprtu.HeaderSize)
	if err := e.readFull(header, deadline); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	h, err := tcprtu.DecodeHeader(header)
	if err != nil {
		return modbus.ProtocolDataUnit{}, e.ioFailure(err)
	}
	body := make([]byte, h.Length)
	// the rest of the frame is already in flight once the header arrived
	if err = e.readFull(body, time.Now().Add(e.CharTimeout)); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	raw := append(header, body...)
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(raw))

	resp, err := tcprtu.Decode(raw)
	if err != nil {
		return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.TransactionFailure, "", err)
	}
	req := &tcprtu.ApplicationDataUnit{TransactionID: tid, SlaveID: unit}
	if err = req.Verify(resp); err != nil {
		// the stream position is unknown after a mismatch
		return modbus.ProtocolDataUnit{}, e.ioFailure(err)
	}
	fc := resp.Pdu.FunctionCode
	if fc != functionCode && fc != functionCode|modbus.ExceptionFlag {
		return modbus.ProtocolDataUnit{}, modbus.WrapError(modbus.TransactionFailure, "",
			fmt.Errorf("%w: got '%v', want '%v'", rtu.ErrFunctionMismatch, fc, functionCode))
	}
	return checkPayload(unit, resp.Pdu)
}

// readFull fills p before deadline.
func (e *Engine) readFull(p []byte, deadline time.Time) error {
	for n := 0; n < len(p); {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		m, err := e.Transport.ReadTimeout(p[n:], remaining)
		if err != nil {
			if transport.IsTimeout(err) {
				slog.Warn("modbus response timeout", "timeout", e.RespTimeout, "received", n)
				return modbus.NewError(modbus.ResponseTimeout, "recv timeout")
			}
			return e.ioFailure(err)
		}
		n += m
	}
	return nil
}
