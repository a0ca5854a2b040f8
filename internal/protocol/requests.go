package protocol

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Definition is a named request from the fixed catalogue below.
type Definition struct {
	Name  string
	Bytes []byte
}

// ContextMark identifies an application profile on the transceiver.
type ContextMark [6]byte

// Default application profiles defined during the handshake.
var DefaultContextMarks = []ContextMark{
	{0xa4, 0x00, 0x02, 0x00, 0x05, 0x01},
	{0xa4, 0x00, 0x02, 0x00, 0x21, 0x01},
}

func SetModeNonTransaction() Definition {
	return Definition{Name: "SET_OPERATIONAL_MODE_NON_TRANSACTION", Bytes: []byte{0x01, 0x01, 0x00}}
}

func SetModeTransaction() Definition {
	return Definition{Name: "SET_OPERATIONAL_MODE_TRANSACTION", Bytes: []byte{0x01, 0x01, 0x01}}
}

func GetOperationalMode() Definition {
	return Definition{Name: "GET_OPERATIONAL_MODE", Bytes: []byte{0x02, 0x00}}
}

func GetDSRCConfiguration() Definition {
	return Definition{Name: "GET_DSRC_CONFIGURATION", Bytes: []byte{0x0e, 0x00}}
}

func GetStatus() Definition {
	return Definition{Name: "GET_STATUS", Bytes: []byte{0x03, 0x00}}
}

func SetExtended() Definition {
	return Definition{Name: "SET_EXTENDED", Bytes: []byte{0x3c, 0x01, 0x01}}
}

func ResetBeacon() Definition {
	return Definition{Name: "RESET_BEACON", Bytes: []byte{0x0c, 0x00}}
}

func KeepAliveAck() Definition {
	return Definition{Name: "KEEP_ALIVE", Bytes: []byte{0x00, 0x00}}
}

// SetBeaconTime sets the transceiver clock to t as big-endian unix seconds.
func SetBeaconTime(t time.Time) Definition {
	b := []byte{0x0a, 0x04, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(b[2:], uint32(t.Unix()))
	return Definition{Name: "SET_BEACON_TIME", Bytes: b}
}

// defineApplicationLength is the declared body length of DEFINE_APPLICATION.
const defineApplicationLength = 42

// DefineApplication registers one application profile. All password, key
// and authentication fields are zero; the profile reads attribute 0x20
// automatically.
func DefineApplication(mark ContextMark) Definition {
	b := make([]byte, 0, 2+defineApplicationLength)
	b = append(b, 0x2c, defineApplicationLength)
	// sub message id, context mark length, context mark
	b = append(b, 0x00, 0x06, byte(len(mark)))
	b = append(b, mark[:]...)
	// application password and new application password
	b = append(b, make([]byte, 8)...)
	// transaction profile, then key location through options
	b = append(b, 0x02)
	b = append(b, make([]byte, 16)...)
	// automatic read of one attribute, id 0x20
	b = append(b, 0x01, 0x01, 0x20)
	// authentication, authentication check, automatic write, close
	// transaction, no of attributes
	b = append(b, 0x00, 0x00, 0x00, 0x00, 0x00)
	return Definition{Name: fmt.Sprintf("DEFINE_APPLICATION_%x", mark[:]), Bytes: b}
}

// Message decodes the definition as a REQUEST.
func (d Definition) Message() (*Message, error) {
	return Decode(d.Bytes, Request)
}

// ID returns the message id the definition targets.
func (d Definition) ID() MessageID {
	if len(d.Bytes) == 0 {
		return MsgKeepAlive
	}
	return MessageID(d.Bytes[0])
}
