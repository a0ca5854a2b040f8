package sink

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject events are published on.
const DefaultSubject = "chippy.readings"

// NATS publishes encoded events to a subject.
type NATS struct {
	nc      *nats.Conn
	subject string
	codec   Codec
}

// DialNATS connects to url with reconnects enabled.
func DialNATS(url, subject string, codec Codec) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("chippy"),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATS(nc, subject, codec), nil
}

func NewNATS(nc *nats.Conn, subject string, codec Codec) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	if codec == nil {
		codec = jsonCodec{}
	}
	return &NATS{nc: nc, subject: subject, codec: codec}
}

func (n *NATS) Push(_ context.Context, ev Event) error {
	payload, err := n.codec.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.nc.Publish(n.subject, payload); err != nil {
		return fmt.Errorf("publish %s: %w", n.subject, err)
	}
	return nil
}

func (n *NATS) Close() error {
	if err := n.nc.Drain(); err != nil {
		n.nc.Close()
		return err
	}
	return nil
}
