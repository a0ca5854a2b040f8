// Package dispatch routes decoded frames to their handlers.
package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"regexp"

	"github.com/FastTravelAS/chippy/internal/device"
	"github.com/FastTravelAS/chippy/internal/protocol"
	"github.com/FastTravelAS/chippy/internal/sink"
	"go.uber.org/zap"
)

// chipPattern extracts the chip id from the hex encoded body of a
// CONNECT_TRANSPONDER_REPORT.
var chipPattern = regexp.MustCompile(`020201200e(.*)ffff00000000`)

// Conn is the part of a device connection the dispatcher acts on.
type Conn interface {
	Request(msg *protocol.Message) error
	ClientID() (int, bool)
	SetClientID(id int)
	SetOperationalMode(mode protocol.OperationalMode)
}

// Dispatcher handles messages for one connection.
type Dispatcher struct {
	conn   Conn
	sink   sink.Sink
	logger *zap.Logger
}

func New(conn Conn, s sink.Sink, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{conn: conn, sink: s, logger: logger}
}

// Handle acts on msg. It returns *DeviceError for fault flags, which callers
// treat as non-fatal, and sink errors as they are.
func (d *Dispatcher) Handle(ctx context.Context, msg *protocol.Message) error {
	switch msg.Header.ID {
	case protocol.MsgConnectTransponderReport:
		return d.handleTransponderReport(ctx, msg)
	case protocol.MsgKeepAlive:
		return d.handleKeepAlive()
	case protocol.MsgGetStatus:
		return d.handleGetStatus(msg)
	case protocol.MsgGetDSRCConfiguration:
		return d.handleDSRCConfiguration(msg)
	case protocol.MsgGetOperationalMode:
		return d.handleOperationalMode(msg)
	default:
		return nil
	}
}

func (d *Dispatcher) handleTransponderReport(ctx context.Context, msg *protocol.Message) error {
	m := chipPattern.FindStringSubmatch(msg.BodyHex())
	if m == nil {
		return &device.ProtocolError{Message: msg, Reason: "no chip id in report"}
	}

	clientID, _ := d.conn.ClientID()
	ev := sink.Event{
		Chip:      m[1],
		ClientID:  clientID,
		Timestamp: float64(msg.CreatedAt.UnixNano()) / 1e9,
	}
	if err := d.sink.Push(ctx, ev); err != nil {
		return fmt.Errorf("push chip %s: %w", ev.Chip, err)
	}
	d.logger.Info("Chip read forwarded",
		zap.String("chip", ev.Chip),
		zap.Int("client_id", clientID),
	)
	return nil
}

func (d *Dispatcher) handleKeepAlive() error {
	ack, err := protocol.KeepAliveAck().Message()
	if err != nil {
		return err
	}
	return d.conn.Request(ack)
}

func (d *Dispatcher) handleGetStatus(msg *protocol.Message) error {
	if len(msg.Body) < 4 {
		return &device.ProtocolError{Message: msg, Reason: "status body too short"}
	}

	var reported []StatusFlag
	for _, f := range DecodeStatusFlags(msg.Body[3]) {
		if f.Informational() {
			d.logger.Warn("Device status flag", zap.Stringer("flag", f))
			continue
		}
		reported = append(reported, f)
	}
	if len(reported) == 0 {
		return nil
	}

	clientID, ok := d.conn.ClientID()
	return &DeviceError{Flags: reported, ClientID: clientID, HasClientID: ok}
}

func (d *Dispatcher) handleDSRCConfiguration(msg *protocol.Message) error {
	if len(msg.Body) < 3 {
		return &device.ProtocolError{Message: msg, Reason: "configuration body too short"}
	}
	d.conn.SetClientID(int(binary.BigEndian.Uint16(msg.Body[1:3])))
	return nil
}

func (d *Dispatcher) handleOperationalMode(msg *protocol.Message) error {
	if len(msg.Body) < 1 {
		return nil
	}
	d.conn.SetOperationalMode(protocol.OperationalMode(msg.Body[0]))
	return nil
}
