// Package devicetest provides a scripted in-memory transceiver for tests.
package devicetest

import (
	"bytes"
	"encoding/hex"
	"io"
	"net"
	"sync"
)

// Fake is an io.ReadWriteCloser standing in for a transceiver socket.
// Every Write consumes the next scripted reply and makes its bytes readable.
// Reads past the end of the buffered data return io.EOF.
type Fake struct {
	mu      sync.Mutex
	pending bytes.Buffer
	replies [][]byte
	written [][]byte
	closed  bool
}

// NewFake returns a Fake with initial bytes already readable.
func NewFake(initial ...string) *Fake {
	f := &Fake{}
	for _, s := range initial {
		f.pending.Write(MustHex(s))
	}
	return f
}

// Reply scripts the bytes made readable by the next Write. Each argument is a
// hex encoded frame; several frames may be queued for one write.
func (f *Fake) Reply(frames ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	var b []byte
	for _, s := range frames {
		b = append(b, MustHex(s)...)
	}
	f.replies = append(f.replies, b)
	return f
}

// Feed makes bytes readable immediately.
func (f *Fake) Feed(frames ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range frames {
		f.pending.Write(MustHex(s))
	}
}

func (f *Fake) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending.Len() == 0 {
		return 0, io.EOF
	}
	return f.pending.Read(p)
}

func (f *Fake) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, net.ErrClosed
	}
	f.written = append(f.written, append([]byte(nil), p...))
	if len(f.replies) > 0 {
		f.pending.Write(f.replies[0])
		f.replies = f.replies[1:]
	}
	return len(p), nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Written returns every write as lowercase hex, in order.
func (f *Fake) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.written))
	for i, w := range f.written {
		out[i] = hex.EncodeToString(w)
	}
	return out
}

// Unread returns the number of readable bytes left.
func (f *Fake) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending.Len()
}

// MustHex decodes s or panics.
func MustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}
