package sink

import (
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec serializes events for the wire.
type Codec interface {
	Marshal(ev Event) ([]byte, error)
	Name() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(ev Event) ([]byte, error) { return json.Marshal(ev) }
func (jsonCodec) Name() string                     { return "json" }

type cborCodec struct {
	mode cbor.EncMode
}

func (c cborCodec) Marshal(ev Event) ([]byte, error) { return c.mode.Marshal(ev) }
func (cborCodec) Name() string                       { return "cbor" }

// NewCodec returns the codec with the given name: "json" (default) or "cbor".
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return jsonCodec{}, nil
	case "cbor":
		mode, err := cbor.CoreDetEncOptions().EncMode()
		if err != nil {
			return nil, fmt.Errorf("cbor encoder: %w", err)
		}
		return cborCodec{mode: mode}, nil
	default:
		return nil, fmt.Errorf("unknown sink codec %q", name)
	}
}
