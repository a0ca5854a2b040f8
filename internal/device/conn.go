package device

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/FastTravelAS/chippy/internal/logging"
	"github.com/FastTravelAS/chippy/internal/protocol"
	"go.uber.org/zap"
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Conn is a framed connection to one transceiver. Reads and writes are
// expected to come from a single goroutine; the identity fields may be read
// from any goroutine.
type Conn struct {
	rwc         io.ReadWriteCloser
	logger      *zap.Logger
	id          string
	remoteAddr  string
	readTimeout time.Duration

	mu                sync.RWMutex
	clientID          int
	hasClientID       bool
	mode              protocol.OperationalMode
	hasMode           bool
	handshakeComplete bool

	closeOnce sync.Once
	closeErr  error
}

// Option configures a Conn.
type Option func(*Conn)

// WithReadTimeout bounds every read when the underlying stream supports
// deadlines. Zero disables the bound.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Conn) { c.readTimeout = d }
}

// WithRemoteAddr overrides the address used in logs.
func WithRemoteAddr(addr string) Option {
	return func(c *Conn) { c.remoteAddr = addr }
}

// WithID sets the connection id used to tie sessions to this socket.
func WithID(id string) Option {
	return func(c *Conn) { c.id = id }
}

// New wraps a stream. If rwc is a net.Conn its remote address is used in logs.
func New(rwc io.ReadWriteCloser, logger *zap.Logger, opts ...Option) *Conn {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Conn{rwc: rwc, logger: logger}
	if nc, ok := rwc.(net.Conn); ok && nc.RemoteAddr() != nil {
		c.remoteAddr = nc.RemoteAddr().String()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Read returns the next frame from the device.
//
// A nil message with a nil error means the peer closed the stream before
// sending anything. Frames with an undecodable header or a short body come
// back as *MalformedMessageError, frames with a rejected status as
// *ProtocolError. Any other error is a transport failure.
func (c *Conn) Read() (*protocol.Message, error) {
	c.armDeadline()

	header := make([]byte, protocol.ResponseHeaderSize)
	n, err := io.ReadFull(c.rwc, header)
	if err != nil {
		if n == 0 && errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	declared := protocol.DeclaredLength(header, protocol.Response)
	h, err := protocol.DecodeHeader(header, protocol.Response)
	if err != nil {
		return nil, &MalformedMessageError{Remaining: declared, Header: header, Err: err}
	}

	body := make([]byte, h.Length)
	n, err = io.ReadFull(c.rwc, body)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || isTimeout(err) {
			return nil, &MalformedMessageError{Remaining: h.Length - n, Header: header, Body: body[:n]}
		}
		return nil, fmt.Errorf("read body: %w", err)
	}

	msg := &protocol.Message{
		Header:    h,
		Body:      body,
		Type:      protocol.Response,
		CreatedAt: time.Now().UTC(),
	}
	logging.LogFrame(c.log(), "in", msg.String(), msg.Bytes())

	if !msg.Header.Status.Accepted() {
		return nil, &ProtocolError{Message: msg}
	}
	return msg, nil
}

// Request writes a message in canonical form.
func (c *Conn) Request(msg *protocol.Message) error {
	data := msg.Bytes()
	if _, err := c.rwc.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Name(), err)
	}
	logging.LogFrame(c.log(), "out", msg.String(), data)
	return nil
}

// Send writes a catalogue request.
func (c *Conn) Send(def protocol.Definition) error {
	msg, err := def.Message()
	if err != nil {
		return fmt.Errorf("build %s: %w", def.Name, err)
	}
	return c.Request(msg)
}

// DiscardRemainingData reads and drops exactly n bytes. n <= 0 is a no-op.
func (c *Conn) DiscardRemainingData(n int) error {
	if n <= 0 {
		return nil
	}
	c.armDeadline()
	if _, err := io.CopyN(io.Discard, c.rwc, int64(n)); err != nil {
		return fmt.Errorf("discard %d bytes: %w", n, err)
	}
	c.log().Debug("Discarded remaining frame data", zap.Int("bytes", n))
	return nil
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// ClientID returns the beacon id and whether it has been learned yet.
func (c *Conn) ClientID() (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID, c.hasClientID
}

func (c *Conn) SetClientID(id int) {
	c.mu.Lock()
	c.clientID = id
	c.hasClientID = true
	c.mu.Unlock()
	c.log().Debug("Client id set")
}

// OperationalMode returns the last mode reported by the device.
func (c *Conn) OperationalMode() (protocol.OperationalMode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode, c.hasMode
}

func (c *Conn) SetOperationalMode(mode protocol.OperationalMode) {
	c.mu.Lock()
	c.mode = mode
	c.hasMode = true
	c.mu.Unlock()
	c.log().Info("Operational mode set", zap.Stringer("mode", mode))
}

// InTransactionMode reports whether the device confirmed TRANSACTION mode.
func (c *Conn) InTransactionMode() bool {
	mode, ok := c.OperationalMode()
	return ok && mode == protocol.ModeTransaction
}

// HandshakeComplete reports whether the handshake finished on this connection.
func (c *Conn) HandshakeComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handshakeComplete
}

func (c *Conn) MarkHandshakeComplete() {
	c.mu.Lock()
	c.handshakeComplete = true
	c.mu.Unlock()
}

func (c *Conn) RemoteAddr() string { return c.remoteAddr }

// ID returns the connection id, empty unless set with WithID.
func (c *Conn) ID() string { return c.id }

func (c *Conn) log() *zap.Logger {
	fields := []zap.Field{zap.String("remote_addr", c.remoteAddr)}
	if id, ok := c.ClientID(); ok {
		fields = append(fields, zap.Int("client_id", id))
	}
	return c.logger.With(fields...)
}

func (c *Conn) armDeadline() {
	if c.readTimeout <= 0 {
		return
	}
	if d, ok := c.rwc.(deadliner); ok {
		_ = d.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
