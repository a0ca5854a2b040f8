package device

import (
	"fmt"

	"github.com/FastTravelAS/chippy/internal/protocol"
)

// MalformedMessageError reports a frame that could not be used. Remaining is
// the number of bytes still on the wire for that frame; the caller discards
// them to get back onto a frame boundary.
type MalformedMessageError struct {
	Remaining int
	Header    []byte
	Body      []byte
	Err       error
}

func (e *MalformedMessageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed message (header %x, %d bytes remaining): %v", e.Header, e.Remaining, e.Err)
	}
	return fmt.Sprintf("malformed message (header %x, body %x, %d bytes remaining)", e.Header, e.Body, e.Remaining)
}

func (e *MalformedMessageError) Unwrap() error { return e.Err }

// ProtocolError reports a well formed frame that the server cannot act on,
// such as a rejected status or a report without a chip id. The frame has
// been consumed in full.
type ProtocolError struct {
	Message *protocol.Message
	Reason  string
}

func (e *ProtocolError) Error() string {
	if e.Message == nil {
		return "protocol error: " + e.Reason
	}
	if e.Reason == "" {
		return fmt.Sprintf("protocol error: %s returned %s", e.Message.Name(), e.Message.Header.Status)
	}
	return fmt.Sprintf("protocol error: %s: %s", e.Message.Name(), e.Reason)
}
