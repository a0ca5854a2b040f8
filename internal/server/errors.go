package server

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/FastTravelAS/chippy/internal/device"
	"github.com/FastTravelAS/chippy/internal/dispatch"
	"github.com/FastTravelAS/chippy/internal/handshake"
	"github.com/FastTravelAS/chippy/internal/protocol"
)

// Disposition says what happens to a connection after an error.
type Disposition int

const (
	// Continue keeps the connection open and reads the next frame.
	Continue Disposition = iota
	// Resync discards the rest of a bad frame, then continues.
	Resync
	// Close ends the connection.
	Close
)

func (d Disposition) String() string {
	switch d {
	case Continue:
		return "continue"
	case Resync:
		return "resync"
	default:
		return "close"
	}
}

// Classify maps an error from reading or dispatching to a disposition.
// Unknown errors close the connection.
func Classify(err error) Disposition {
	var (
		malformed *device.MalformedMessageError
		decode    *protocol.DecodeError
		perr      *device.ProtocolError
		derr      *dispatch.DeviceError
		herr      *handshake.HandshakeError
		terr      *handshake.TimeoutError
	)
	switch {
	case err == nil:
		return Continue
	case errors.As(err, &malformed):
		return Resync
	case errors.As(err, &herr), errors.As(err, &terr):
		return Close
	case errors.As(err, &derr), errors.As(err, &perr), errors.As(err, &decode):
		return Continue
	default:
		return Close
	}
}

// IsExpectedCloseError reports whether err is a normal connection
// termination: EOF, closed connection, broken pipe or connection reset.
func IsExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EPIPE || errno == syscall.ECONNRESET
	}
	return false
}
