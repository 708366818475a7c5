// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import "fmt"

// Function Codes
const (
	FuncCodeReadCoils            = 0x01
	FuncCodeReadDiscreteInputs   = 0x02
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04

	FuncCodeWriteSingleCoil     = 0x05
	FuncCodeWriteSingleRegister = 0x06

	FuncCodeReadExceptionStatus = 0x07
	FuncCodeGetCommEventCounter = 0x0B
	FuncCodeGetCommEventLog     = 0x0C

	FuncCodeWriteMultipleCoils     = 0x0F
	FuncCodeWriteMultipleRegisters = 0x10
)

// ExceptionFlag is set in the echoed function code of an exception response.
const ExceptionFlag = 0x80

// Exception Codes
const (
	ExceptionCodeIllegalFunction                    = 0x01
	ExceptionCodeIllegalDataAddress                 = 0x02
	ExceptionCodeIllegalDataValue                   = 0x03
	ExceptionCodeServerDeviceFailure                = 0x04
	ExceptionCodeAcknowledge                        = 0x05
	ExceptionCodeServerDeviceBusy                   = 0x06
	ExceptionCodeMemoryParityError                  = 0x08
	ExceptionCodeGatewayPathUnavailable             = 0x0A
	ExceptionCodeGatewayTargetDeviceFailedToRespond = 0x0B
)

// Unit address bounds on a multi-drop line.
const (
	MinUnitAddress = 1
	MaxUnitAddress = 247
)

// ProtocolDataUnit (PDU) is independent of underlying communication layers.
type ProtocolDataUnit struct {
	FunctionCode byte
	Data         []byte
}

// TransmissionMode selects the serial line encoding.
type TransmissionMode int

const (
	ModeRTU TransmissionMode = iota
	ModeASCII
)

func (m TransmissionMode) String() string {
	switch m {
	case ModeRTU:
		return "RTU"
	case ModeASCII:
		return "ASCII"
	default:
		return fmt.Sprintf("TransmissionMode(%d)", int(m))
	}
}

// ParseTransmissionMode maps a configuration value onto a TransmissionMode.
func ParseTransmissionMode(s string) (TransmissionMode, error) {
	switch s {
	case "RTU":
		return ModeRTU, nil
	case "ASCII":
		return ModeASCII, nil
	}
	return 0, fmt.Errorf("modbus: unknown transmission mode %q", s)
}

// ConnectionStatus reports the state of a connection.
type ConnectionStatus int

const (
	NeverConnected ConnectionStatus = iota
	Disconnected
	Connected
)

func (s ConnectionStatus) String() string {
	switch s {
	case NeverConnected:
		return "never connected"
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("ConnectionStatus(%d)", int(s))
	}
}

// CommEvent holds the status returned by Get Comm Event Counter (0x0B)
// and Get Comm Event Log (0x0C). MessageCount and Events are only
// populated by the event log.
type CommEvent struct {
	Status       uint16 `yaml:"status"`
	EventCount   uint16 `yaml:"eventCount"`
	MessageCount uint16 `yaml:"messageCount,omitempty"`
	Events       []byte `yaml:"events,omitempty"`
}

// MaxCommEvents is the largest number of event bytes a device may return.
const MaxCommEvents = 64
