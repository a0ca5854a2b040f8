package protocol

import "fmt"

// Type distinguishes frames the server sends from frames the device sends.
// The two carry different header layouts.
type Type int

const (
	Response Type = iota
	Request
)

func (t Type) String() string {
	if t == Request {
		return "REQUEST"
	}
	return "RESPONSE"
}

// HeaderSize returns the header length in bytes for the frame type.
func (t Type) HeaderSize() int {
	if t == Request {
		return RequestHeaderSize
	}
	return ResponseHeaderSize
}

const (
	ResponseHeaderSize = 4 // class, status, id, length
	RequestHeaderSize  = 2 // id, length
)

// Class is the device class byte of a RESPONSE header.
type Class byte

const (
	ClassKeepAlive      Class = 0x00
	ClassDeviceResponse Class = 0x01
	ClassDeviceReport   Class = 0x02
	ClassDeviceEvent    Class = 0x03

	// ClassRequest never appears on the wire; requests carry it implicitly.
	ClassRequest Class = 0xff
)

var classNames = map[Class]string{
	ClassKeepAlive:      "KEEP_ALIVE",
	ClassDeviceResponse: "DEVICE_RESPONSE",
	ClassDeviceReport:   "DEVICE_REPORT",
	ClassDeviceEvent:    "DEVICE_EVENT",
	ClassRequest:        "REQUEST",
}

func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Class(0x%02x)", byte(c))
}

// Status is the result code of a RESPONSE header.
type Status byte

const (
	StatusOK                 Status = 0x00
	StatusUnknownMessage     Status = 0x01
	StatusInvalidLength      Status = 0x02
	StatusInvalidParameter   Status = 0x03
	StatusNotAllowed         Status = 0x04
	StatusBusy               Status = 0x05
	StatusGeneralError       Status = 0x10
	StatusConfigurationError Status = 0x11
	StatusApplicationError   Status = 0x12
	StatusTimeoutError       Status = 0x13
)

var statusNames = map[Status]string{
	StatusOK:                 "OK",
	StatusUnknownMessage:     "UNKNOWN_MESSAGE",
	StatusInvalidLength:      "INVALID_LENGTH",
	StatusInvalidParameter:   "INVALID_PARAMETER",
	StatusNotAllowed:         "NOT_ALLOWED",
	StatusBusy:               "BUSY",
	StatusGeneralError:       "GENERAL_ERROR",
	StatusConfigurationError: "CONFIGURATION_ERROR",
	StatusApplicationError:   "APPLICATION_ERROR",
	StatusTimeoutError:       "TIMEOUT_ERROR",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(0x%02x)", byte(s))
}

// Accepted reports whether a frame with this status is a usable reply.
// TIMEOUT_ERROR is accepted because the handshake retries on it.
func (s Status) Accepted() bool {
	return s == StatusOK || s == StatusTimeoutError
}

// MessageID identifies the command or report carried by a frame.
type MessageID byte

const (
	MsgKeepAlive                MessageID = 0x00
	MsgSetOperationalMode       MessageID = 0x01
	MsgGetOperationalMode       MessageID = 0x02
	MsgGetStatus                MessageID = 0x03
	MsgSetBeaconTime            MessageID = 0x0a
	MsgResetBeacon              MessageID = 0x0c
	MsgGetDSRCConfiguration     MessageID = 0x0e
	MsgConnectTransponderReport MessageID = 0x17
	MsgDefineApplication        MessageID = 0x2c
	MsgSetExtended              MessageID = 0x3c
)

var messageNames = map[MessageID]string{
	MsgKeepAlive:                "KEEP_ALIVE",
	MsgSetOperationalMode:       "SET_OPERATIONAL_MODE",
	MsgGetOperationalMode:       "GET_OPERATIONAL_MODE",
	MsgGetStatus:                "GET_STATUS",
	MsgSetBeaconTime:            "SET_BEACON_TIME",
	MsgResetBeacon:              "RESET_BEACON",
	MsgGetDSRCConfiguration:     "GET_DSRC_CONFIGURATION",
	MsgConnectTransponderReport: "CONNECT_TRANSPONDER_REPORT",
	MsgDefineApplication:        "DEFINE_APPLICATION",
	MsgSetExtended:              "SET_EXTENDED",
}

func (m MessageID) String() string {
	if name, ok := messageNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MessageID(0x%02x)", byte(m))
}

// Known reports whether the id is part of the fixed message set.
func (m MessageID) Known() bool {
	_, ok := messageNames[m]
	return ok
}

// OperationalMode is the transceiver mode reported by GET_OPERATIONAL_MODE.
type OperationalMode byte

const (
	ModeNonTransaction OperationalMode = 0x00
	ModeTransaction    OperationalMode = 0x01
)

func (m OperationalMode) String() string {
	switch m {
	case ModeNonTransaction:
		return "NON_TRANSACTION"
	case ModeTransaction:
		return "TRANSACTION"
	default:
		return fmt.Sprintf("OperationalMode(0x%02x)", byte(m))
	}
}
