package protocol

import (
	"encoding/hex"
	"fmt"
	"time"
)

// Message is a decoded frame: header plus body.
type Message struct {
	Header    Header
	Body      []byte
	Type      Type
	CreatedAt time.Time
}

// Create normalizes input and splits it into header and body according to
// the frame type. See Normalize for the accepted input forms.
func Create(input any, t Type) (*Message, error) {
	data, err := Normalize(input)
	if err != nil {
		return nil, err
	}
	return Decode(data, t)
}

// Decode parses canonical frame bytes. For any well formed frame b,
// Decode(b).Bytes() equals b.
func Decode(b []byte, t Type) (*Message, error) {
	split := t.HeaderSize()
	if len(b) < split {
		split = len(b)
	}
	header, err := DecodeHeader(b[:split], t)
	if err != nil {
		return nil, err
	}
	return &Message{
		Header:    header,
		Body:      DecodeBody(b[split:]),
		Type:      t,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// DecodeBody copies the body bytes as they are.
func DecodeBody(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Name returns the message name, e.g. "CONNECT_TRANSPONDER_REPORT".
func (m *Message) Name() string { return m.Header.ID.String() }

// Valid reports whether the body length matches the declared length.
// Invalid messages are never dispatched.
func (m *Message) Valid() bool {
	return m != nil && len(m.Body) == m.Header.Length
}

// OK reports whether the message is valid and carries an accepted status.
func (m *Message) OK() bool {
	return m.Valid() && m.Header.Status.Accepted()
}

// Bytes returns the full canonical byte sequence of the message.
func (m *Message) Bytes() []byte {
	out := m.Header.Bytes()
	return append(out, m.Body...)
}

// Hex returns Bytes as lowercase hex.
func (m *Message) Hex() string {
	return hex.EncodeToString(m.Bytes())
}

// BodyHex returns the body as lowercase hex.
func (m *Message) BodyHex() string {
	return hex.EncodeToString(m.Body)
}

func (m *Message) String() string {
	return fmt.Sprintf("Message(%s - status: %s - length: %d - content: %s)",
		m.Name(), m.Header.Status, m.Header.Length, m.Hex())
}
