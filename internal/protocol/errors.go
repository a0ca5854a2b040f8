package protocol

import "fmt"

// DecodeError is returned when header bytes do not map to a known
// class, status or message id.
type DecodeError struct {
	Field string
	Value byte
	Raw   []byte
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode header %x: too short", e.Raw)
	}
	return fmt.Sprintf("decode header %x: unknown %s 0x%02x", e.Raw, e.Field, e.Value)
}

// InvalidInputError is returned by Normalize for inputs that cannot be
// turned into a byte sequence.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return "invalid message input: " + e.Reason
}
