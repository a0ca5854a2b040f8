package handshake

import "fmt"

// HandshakeError aborts the handshake. The connection is closed.
type HandshakeError struct {
	Reason string
	Err    error
}

func (e *HandshakeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("handshake failed: %s: %v", e.Reason, e.Err)
	}
	return "handshake failed: " + e.Reason
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// TimeoutError is returned when the device kept answering TIMEOUT_ERROR to a
// mode change and a beacon reset was requested.
type TimeoutError struct {
	Reason string
}

func (e *TimeoutError) Error() string { return "handshake timeout: " + e.Reason }
