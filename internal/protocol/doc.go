// Package protocol implements the binary wire format spoken by the
// transceivers: header layouts, the closed set of classes, statuses and
// message ids, message normalization and the catalogue of requests the
// server sends.
//
// # Frame Structure
//
// Frames sent by the device (RESPONSE) carry a four byte header:
//
//	[0] class    KEEP_ALIVE, DEVICE_RESPONSE, DEVICE_REPORT, DEVICE_EVENT
//	[1] status   OK, TIMEOUT_ERROR, ...
//	[2] id       message id
//	[3] length   number of body bytes that follow
//
// Frames sent by the server (REQUEST) carry a two byte header:
//
//	[0] id       message id
//	[1] length   number of body bytes that follow
//
// The class of a request is implicitly REQUEST and its status implicitly OK.
//
// # Usage Example - Parsing
//
//	msg, err := protocol.Decode(raw, protocol.Response)
//	if err != nil {
//	    var derr *protocol.DecodeError
//	    if errors.As(err, &derr) {
//	        // unknown enum value, skip the frame
//	    }
//	}
//	if msg.Valid() && msg.Name() == "CONNECT_TRANSPONDER_REPORT" {
//	    fmt.Println(msg)
//	}
//
// # Usage Example - Construction
//
//	req := protocol.SetBeaconTime(time.Now())
//	_, err := conn.Write(req.Bytes)
//
// # Normalization
//
// Create accepts hex strings, binary strings, slices of hex byte strings,
// integer slices, byte slices and catalogue Definitions. Every input form
// yields the same canonical bytes, and decoding canonical bytes round-trips:
// Decode(b).Bytes() equals b.
//
// # Thread Safety
//
// All functions are stateless and safe for concurrent use.
package protocol
