package protocol

import "encoding/hex"

// Header is the fixed-size prefix of every frame.
type Header struct {
	Type   Type
	Class  Class
	Status Status
	ID     MessageID
	Length int
}

// DecodeHeader parses a header of the given type. It never returns a
// partially populated header: any unknown enum value is a DecodeError.
func DecodeHeader(b []byte, t Type) (Header, error) {
	if len(b) < t.HeaderSize() {
		return Header{}, &DecodeError{Raw: append([]byte(nil), b...)}
	}

	if t == Request {
		id := MessageID(b[0])
		if !id.Known() {
			return Header{}, &DecodeError{Field: "message id", Value: b[0], Raw: append([]byte(nil), b[:2]...)}
		}
		return Header{
			Type:   Request,
			Class:  ClassRequest,
			Status: StatusOK,
			ID:     id,
			Length: int(b[1]),
		}, nil
	}

	raw := append([]byte(nil), b[:4]...)
	class := Class(b[0])
	if _, ok := classNames[class]; !ok || class == ClassRequest {
		return Header{}, &DecodeError{Field: "class", Value: b[0], Raw: raw}
	}
	status := Status(b[1])
	if _, ok := statusNames[status]; !ok {
		return Header{}, &DecodeError{Field: "status", Value: b[1], Raw: raw}
	}
	id := MessageID(b[2])
	if !id.Known() {
		return Header{}, &DecodeError{Field: "message id", Value: b[2], Raw: raw}
	}

	return Header{
		Type:   Response,
		Class:  class,
		Status: status,
		ID:     id,
		Length: int(b[3]),
	}, nil
}

// DeclaredLength reads the body length byte of a header without
// validating anything else. Used to skip frames whose header failed to decode.
func DeclaredLength(b []byte, t Type) int {
	idx := t.HeaderSize() - 1
	if len(b) <= idx {
		return 0
	}
	return int(b[idx])
}

// Bytes returns the canonical wire form of the header.
func (h Header) Bytes() []byte {
	if h.Type == Request {
		return []byte{byte(h.ID), byte(h.Length)}
	}
	return []byte{byte(h.Class), byte(h.Status), byte(h.ID), byte(h.Length)}
}

func (h Header) String() string {
	return hex.EncodeToString(h.Bytes())
}
