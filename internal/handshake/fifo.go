package handshake

import "github.com/FastTravelAS/chippy/internal/protocol"

// fifo holds messages that arrived while the handshake waited for another
// reply. When full, the oldest message is dropped.
type fifo struct {
	items []*protocol.Message
	limit int
}

func newFIFO(limit int) *fifo {
	return &fifo{limit: limit}
}

func (f *fifo) push(msg *protocol.Message, onDrop func(*protocol.Message)) {
	if len(f.items) >= f.limit {
		if onDrop != nil {
			onDrop(f.items[0])
		}
		f.items = f.items[1:]
	}
	f.items = append(f.items, msg)
}

func (f *fifo) len() int { return len(f.items) }

// drain returns the buffered messages in arrival order and empties the buffer.
func (f *fifo) drain() []*protocol.Message {
	out := f.items
	f.items = nil
	return out
}
