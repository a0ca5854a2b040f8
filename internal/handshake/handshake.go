// Package handshake brings a newly connected transceiver from power-on into
// TRANSACTION mode: mode switch, identity query, optional configuration and
// the final mode switch, with retries on TIMEOUT_ERROR.
package handshake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/FastTravelAS/chippy/internal/device"
	"github.com/FastTravelAS/chippy/internal/dispatch"
	"github.com/FastTravelAS/chippy/internal/protocol"
	"github.com/FastTravelAS/chippy/internal/status"
	"github.com/looplab/fsm"
	"go.uber.org/zap"
)

const (
	DefaultRetryInterval = 5 * time.Second
	TestRetryInterval    = 100 * time.Millisecond
	DefaultModeAttempts  = 3
	DefaultBufferSize    = 32
)

// Conn is the device connection driven by the handshake.
type Conn interface {
	Send(def protocol.Definition) error
	Read() (*protocol.Message, error)
	DiscardRemainingData(n int) error
	ClientID() (int, bool)
	ID() string
	MarkHandshakeComplete()
}

// Handler dispatches messages received during the handshake.
type Handler interface {
	Handle(ctx context.Context, msg *protocol.Message) error
}

// Registry is the session bookkeeping touched by the handshake.
type Registry interface {
	IsInitialized(ctx context.Context, clientID int) bool
	MarkInitialized(ctx context.Context, clientID int, clientStatus string) error
	MarkOnline(ctx context.Context) error
	RecordConnect(clientID int, connID string)
	Touch(clientID int)
}

// Options tunes a handshake. Zero values select the defaults.
type Options struct {
	RetryInterval time.Duration
	ModeAttempts  int
	Applications  []protocol.ContextMark
	BufferSize    int
	Now           func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RetryInterval <= 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.ModeAttempts <= 0 {
		o.ModeAttempts = DefaultModeAttempts
	}
	if o.Applications == nil {
		o.Applications = protocol.DefaultContextMarks
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Handshake runs once per connection.
type Handshake struct {
	conn     Conn
	handler  Handler
	registry Registry
	logger   *zap.Logger
	opts     Options
	machine  *fsm.FSM
	buffer   *fifo
	sleep    func(ctx context.Context, d time.Duration) error
}

func New(conn Conn, handler Handler, registry Registry, logger *zap.Logger, opts Options) *Handshake {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = opts.withDefaults()
	return &Handshake{
		conn:     conn,
		handler:  handler,
		registry: registry,
		logger:   logger,
		opts:     opts,
		machine:  newMachine(logger),
		buffer:   newFIFO(opts.BufferSize),
		sleep:    sleepContext,
	}
}

// State returns the current handshake state.
func (h *Handshake) State() string { return h.machine.Current() }

// step describes one request and how long to keep trying for its reply.
type step struct {
	request     protocol.Definition
	retry       bool
	retryOn     protocol.Status
	interval    time.Duration
	maxAttempts int
	onExhausted func(ctx context.Context) error
}

func (h *Handshake) modeStep(def protocol.Definition) step {
	return step{
		request:     def,
		retry:       true,
		retryOn:     protocol.StatusTimeoutError,
		interval:    h.opts.RetryInterval,
		maxAttempts: h.opts.ModeAttempts,
		onExhausted: h.resetBeacon,
	}
}

func singleStep(def protocol.Definition, failure string) step {
	return step{
		request:     def,
		maxAttempts: 1,
		onExhausted: func(context.Context) error {
			return &HandshakeError{Reason: failure}
		},
	}
}

// Perform runs the full sequence. On success the connection is marked
// complete, the session is recorded and buffered messages are replayed.
func (h *Handshake) Perform(ctx context.Context) error {
	h.logger.Info("Performing handshake")
	if err := h.perform(ctx); err != nil {
		_ = h.machine.Event(context.WithoutCancel(ctx), eventFail)
		return err
	}
	return nil
}

func (h *Handshake) perform(ctx context.Context) error {
	if err := h.run(ctx, h.modeStep(protocol.SetModeNonTransaction()), eventSetNonTx); err != nil {
		return err
	}
	if err := h.run(ctx, singleStep(protocol.GetOperationalMode(), "Failed query for operational mode"), eventConfirmMode); err != nil {
		return err
	}
	if err := h.run(ctx, singleStep(protocol.GetDSRCConfiguration(), "Failed to receive DSRC configuration"), eventQueryConfiguration); err != nil {
		return err
	}

	clientID, ok := h.conn.ClientID()
	if !ok {
		return &HandshakeError{Reason: "No beacon ID obtained"}
	}
	h.logger = h.logger.With(zap.Int("client_id", clientID))

	if h.registry.IsInitialized(ctx, clientID) {
		h.logger.Info("Device already configured, skipping configuration")
	} else {
		if err := h.configure(ctx); err != nil {
			return err
		}
	}

	if err := h.run(ctx, h.modeStep(protocol.SetModeTransaction()), eventSetTx); err != nil {
		return err
	}
	if err := h.run(ctx, singleStep(protocol.GetOperationalMode(), "Failed query for operational mode"), eventConfirmTx); err != nil {
		return err
	}

	return h.complete(ctx, clientID)
}

func (h *Handshake) configure(ctx context.Context) error {
	if err := h.fire(ctx, eventConfigure); err != nil {
		return err
	}

	steps := []step{
		singleStep(protocol.GetStatus(), "Failed query for status"),
		singleStep(protocol.SetBeaconTime(h.opts.Now()), "Failed to set beacon time"),
	}
	for _, mark := range h.opts.Applications {
		steps = append(steps, singleStep(protocol.DefineApplication(mark), "Failed to define application"))
	}
	steps = append(steps, singleStep(protocol.SetExtended(), "Failed to set extended"))

	for _, s := range steps {
		if err := h.processStep(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handshake) complete(ctx context.Context, clientID int) error {
	if err := h.fire(ctx, eventComplete); err != nil {
		return err
	}
	h.conn.MarkHandshakeComplete()

	if err := h.registry.MarkOnline(ctx); err != nil {
		h.logger.Warn("Failed to mark server online", zap.Error(err))
	}
	if err := h.registry.MarkInitialized(ctx, clientID, status.ClientTransactionMode); err != nil {
		h.logger.Warn("Failed to record client status", zap.Error(err))
	}
	h.registry.RecordConnect(clientID, h.conn.ID())
	h.registry.Touch(clientID)

	h.logger.Info("Handshake complete")

	pending := h.buffer.drain()
	if len(pending) > 0 {
		h.logger.Info("Processing buffered messages", zap.Int("count", len(pending)))
	}
	for _, msg := range pending {
		if err := h.handler.Handle(ctx, msg); err != nil {
			return fmt.Errorf("replay %s: %w", msg.Name(), err)
		}
	}
	return nil
}

// run processes one step and advances the state machine on success.
func (h *Handshake) run(ctx context.Context, s step, event string) error {
	if err := h.processStep(ctx, s); err != nil {
		return err
	}
	return h.fire(ctx, event)
}

func (h *Handshake) fire(ctx context.Context, event string) error {
	if err := h.machine.Event(ctx, event); err != nil {
		return &HandshakeError{Reason: "invalid transition " + event, Err: err}
	}
	return nil
}

// processStep sends s.request and waits for its reply.
//
// KEEP_ALIVE frames are buffered for replay, acknowledged, and do not count
// as attempts. Every other frame is dispatched and counts as one attempt.
// Malformed frames are skipped after resynchronizing.
func (h *Handshake) processStep(ctx context.Context, s step) error {
	name := s.request.Name
	log := h.logger.With(zap.String("request", name))
	log.Debug("Sending message")

	attempts := 0
	sent := false
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempts >= s.maxAttempts {
			log.Warn("Max attempts reached", zap.Int("attempts", attempts))
			if s.onExhausted != nil {
				return s.onExhausted(ctx)
			}
			return nil
		}
		attempts++

		if !sent {
			if err := h.conn.Send(s.request); err != nil {
				return err
			}
			sent = true
		}

		msg, err := h.conn.Read()
		if err != nil {
			var malformed *device.MalformedMessageError
			if errors.As(err, &malformed) {
				log.Warn("Malformed message during handshake", zap.Error(err))
				if derr := h.conn.DiscardRemainingData(malformed.Remaining); derr != nil {
					return derr
				}
				continue
			}
			var perr *device.ProtocolError
			if errors.As(err, &perr) {
				log.Warn("Rejected message during handshake", zap.Error(err))
				continue
			}
			return err
		}
		if msg == nil {
			return fmt.Errorf("device closed connection during %s: %w", name, io.EOF)
		}

		if msg.Header.ID == protocol.MsgKeepAlive {
			h.buffer.push(msg, func(dropped *protocol.Message) {
				log.Warn("Out-of-order buffer full, dropping oldest", zap.String("dropped", dropped.String()))
			})
			attempts--
			if err := h.handler.Handle(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := h.handler.Handle(ctx, msg); err != nil {
			var derr *dispatch.DeviceError
			if errors.As(err, &derr) {
				return &HandshakeError{Reason: "device reported faults", Err: err}
			}
			var perr *device.ProtocolError
			if !errors.As(err, &perr) {
				return err
			}
			log.Warn("Unusable message during handshake", zap.Error(err))
		}

		if msg.Header.ID != s.request.ID() {
			continue
		}
		switch {
		case msg.Header.Status == protocol.StatusOK:
			return nil
		case s.retry && msg.Header.Status == s.retryOn:
			log.Info("Retrying", zap.Stringer("status", s.retryOn), zap.Int("attempt", attempts))
			sent = false
			if err := h.sleep(ctx, s.interval); err != nil {
				return err
			}
		}
	}
}

// resetBeacon asks the device to reset and aborts the handshake.
func (h *Handshake) resetBeacon(ctx context.Context) error {
	if err := h.processStep(ctx, step{request: protocol.ResetBeacon(), maxAttempts: 1}); err != nil {
		h.logger.Warn("Beacon reset failed", zap.Error(err))
	}
	return &TimeoutError{Reason: "Device unresponsive, attempting reset"}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
