package dispatch

import (
	"fmt"
	"strings"
)

// StatusFlag is one bit of the transceiver status byte.
type StatusFlag byte

const (
	FlagConfigurationNotSet    StatusFlag = 1
	FlagNoApplicationsDefined  StatusFlag = 2
	FlagHostCommError          StatusFlag = 4
	FlagDeviceRebooted         StatusFlag = 8
	FlagErrorInternalVoltage   StatusFlag = 32
	FlagLowVoltageClockBattery StatusFlag = 64
)

// allFlags is ordered by bit value.
var allFlags = []StatusFlag{
	FlagConfigurationNotSet,
	FlagNoApplicationsDefined,
	FlagHostCommError,
	FlagDeviceRebooted,
	FlagErrorInternalVoltage,
	FlagLowVoltageClockBattery,
}

func (f StatusFlag) String() string {
	switch f {
	case FlagConfigurationNotSet:
		return "CONFIGURATION_NOT_SET"
	case FlagNoApplicationsDefined:
		return "NO_APPLICATIONS_DEFINED"
	case FlagHostCommError:
		return "HOST_COMM_ERROR"
	case FlagDeviceRebooted:
		return "DEVICE_REBOOTED"
	case FlagErrorInternalVoltage:
		return "ERROR_INTERNAL_VOLTAGE"
	case FlagLowVoltageClockBattery:
		return "LOW_VOLTAGE_CLOCK_BATTERY"
	default:
		return fmt.Sprintf("StatusFlag(%d)", byte(f))
	}
}

// Informational flags describe past events and are logged, not raised.
func (f StatusFlag) Informational() bool {
	return f == FlagHostCommError || f == FlagDeviceRebooted
}

// DecodeStatusFlags returns every known flag set in b, ordered by bit.
func DecodeStatusFlags(b byte) []StatusFlag {
	var out []StatusFlag
	for _, f := range allFlags {
		if b&byte(f) == byte(f) {
			out = append(out, f)
		}
	}
	return out
}

// DeviceError reports fault flags from a GET_STATUS response.
type DeviceError struct {
	Flags       []StatusFlag
	ClientID    int
	HasClientID bool
}

func (e *DeviceError) Error() string {
	names := make([]string, len(e.Flags))
	for i, f := range e.Flags {
		names[i] = f.String()
	}
	if e.HasClientID {
		return fmt.Sprintf("device %d reported %s", e.ClientID, strings.Join(names, ", "))
	}
	return "device reported " + strings.Join(names, ", ")
}
