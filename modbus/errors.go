// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import "fmt"

// ErrorCode classifies every failure returned by the master.
type ErrorCode int

const (
	InvalidConfiguration ErrorCode = iota + 1
	NotConnected
	ConnectionFailure
	ResponseTimeout
	TransactionFailure
	InvalidDataAddress
	InvalidDataType
	MethodNotSupported
	NotAvailable
)

var errorCodeNames = map[ErrorCode]string{
	InvalidConfiguration: "invalid configuration",
	NotConnected:         "not connected",
	ConnectionFailure:    "connection failure",
	ResponseTimeout:      "response timeout",
	TransactionFailure:   "transaction failure",
	InvalidDataAddress:   "invalid data address",
	InvalidDataType:      "invalid data type",
	MethodNotSupported:   "method not supported",
	NotAvailable:         "not available",
}

func (c ErrorCode) String() string {
	if s, ok := errorCodeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is the error type returned by the master. Reason and Err are optional.
type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "modbus: " + e.Code.String()
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, ErrResponseTimeout) holds for any response timeout.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError returns an *Error of the given code.
func NewError(code ErrorCode, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

// WrapError returns an *Error of the given code wrapping err.
func WrapError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the ErrorCode carried by err, or 0 if err is not an *Error.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0
		}
		err = u.Unwrap()
	}
	return 0
}

// Sentinels for errors.Is.
var (
	ErrInvalidConfiguration = &Error{Code: InvalidConfiguration}
	ErrNotConnected         = &Error{Code: NotConnected}
	ErrConnectionFailure    = &Error{Code: ConnectionFailure}
	ErrResponseTimeout      = &Error{Code: ResponseTimeout}
	ErrTransactionFailure   = &Error{Code: TransactionFailure}
	ErrInvalidDataAddress   = &Error{Code: InvalidDataAddress}
	ErrInvalidDataType      = &Error{Code: InvalidDataType}
	ErrMethodNotSupported   = &Error{Code: MethodNotSupported}
	ErrNotAvailable         = &Error{Code: NotAvailable}
)

// ExceptionError is a Modbus exception response reported by a device.
type ExceptionError struct {
	FunctionCode  byte
	ExceptionCode byte
}

func (e *ExceptionError) Error() string {
	var name string
	switch e.ExceptionCode {
	case ExceptionCodeIllegalFunction:
		name = "illegal function"
	case ExceptionCodeIllegalDataAddress:
		name = "illegal data address"
	case ExceptionCodeIllegalDataValue:
		name = "illegal data value"
	case ExceptionCodeServerDeviceFailure:
		name = "server device failure"
	case ExceptionCodeAcknowledge:
		name = "acknowledge"
	case ExceptionCodeServerDeviceBusy:
		name = "server device busy"
	case ExceptionCodeMemoryParityError:
		name = "memory parity error"
	case ExceptionCodeGatewayPathUnavailable:
		name = "gateway path unavailable"
	case ExceptionCodeGatewayTargetDeviceFailedToRespond:
		name = "gateway target device failed to respond"
	default:
		name = "unknown"
	}
	return fmt.Sprintf("exception '%v' (%s), function '%v'", e.ExceptionCode, name, e.FunctionCode&^ExceptionFlag)
}
