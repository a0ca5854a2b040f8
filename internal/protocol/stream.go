package protocol

// Frame is one entry of a split capture: either a decoded message or the raw
// bytes of a frame whose header did not decode.
type Frame struct {
	Message *Message
	Raw     []byte
	Err     error
}

// Split cuts a byte capture of back-to-back frames into frames using each
// header's declared length. A frame cut short by the end of b is returned
// with its partial body and reports Valid() == false.
func Split(b []byte, t Type) []Frame {
	var frames []Frame
	for len(b) > 0 {
		n := t.HeaderSize() + DeclaredLength(b, t)
		if n > len(b) {
			n = len(b)
		}
		raw := b[:n]
		b = b[n:]

		msg, err := Decode(raw, t)
		frames = append(frames, Frame{Message: msg, Raw: raw, Err: err})
	}
	return frames
}
