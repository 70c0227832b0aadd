package lcm

import (
	"github.com/pkg/errors"
)

const (
	// maxPendingMessages bounds how many senders may have a message in flight.
	maxPendingMessages = 16
	// maxPendingBytes bounds the fragment bytes held across all messages in flight.
	maxPendingBytes = MaxMessageSize
)

// partialMessage collects the fragments of one message from one sender. Fragments are kept
// as they arrive and the message buffer is only allocated once all of them are present, so
// memory follows the bytes actually received rather than the size a sender claims.
type partialMessage struct {
	seqno    uint32
	size     uint32
	count    uint16
	channel  string
	parts    map[uint16]fragmentPart
	buffered int
	started  uint64
}

type fragmentPart struct {
	offset uint32
	data   []byte
}

// reassembler rebuilds fragmented messages. Each sender has at most one message in flight; a
// fragment with a new sequence number abandons the previous one, as LCM senders never
// interleave fragments of different messages.
type reassembler struct {
	pending   map[string]*partialMessage
	buffered  int
	started   uint64
	abandoned int
}

func newReassembler() *reassembler {
	return &reassembler{pending: map[string]*partialMessage{}}
}

// add records a fragment and returns the message once every fragment has arrived.
func (r *reassembler) add(sender string, f *fragment) (*Message, error) {
	if f.size > MaxMessageSize {
		return nil, errors.Wrapf(errMalformedPacket, "%d byte message exceeds %d bytes", f.size, MaxMessageSize)
	}
	if uint64(f.size) > uint64(f.count)*fragmentPayloadMax {
		return nil, errors.Wrapf(errMalformedPacket, "%d byte message in %d fragments", f.size, f.count)
	}

	p, ok := r.pending[sender]
	if ok && (p.seqno != f.seqno || p.size != f.size || p.count != f.count) {
		r.drop(sender)
		ok = false
	}
	if !ok {
		if len(r.pending) >= maxPendingMessages {
			r.dropOldest()
		}
		r.started++
		p = &partialMessage{
			seqno:   f.seqno,
			size:    f.size,
			count:   f.count,
			parts:   map[uint16]fragmentPart{},
			started: r.started,
		}
		r.pending[sender] = p
	}

	if _, dup := p.parts[f.index]; dup {
		return nil, nil
	}
	for r.buffered+len(f.data) > maxPendingBytes {
		if r.dropOldest() == sender {
			return nil, nil
		}
	}
	p.parts[f.index] = fragmentPart{offset: f.offset, data: append([]byte(nil), f.data...)}
	p.buffered += len(f.data)
	r.buffered += len(f.data)
	if f.index == 0 {
		p.channel = f.channel
	}

	if len(p.parts) < int(p.count) {
		return nil, nil
	}
	r.buffered -= p.buffered
	delete(r.pending, sender)

	data := make([]byte, p.size)
	for _, part := range p.parts {
		copy(data[part.offset:], part.data)
	}
	return &Message{Channel: p.channel, Data: data}, nil
}

// drop abandons the message in flight from sender.
func (r *reassembler) drop(sender string) {
	p, ok := r.pending[sender]
	if !ok {
		return
	}
	r.buffered -= p.buffered
	delete(r.pending, sender)
	r.abandoned++
}

// dropOldest abandons the message that has been in flight longest and returns its sender.
func (r *reassembler) dropOldest() string {
	var oldest string
	var started uint64
	found := false
	for sender, p := range r.pending {
		if !found || p.started < started {
			oldest, started, found = sender, p.started, true
		}
	}
	r.drop(oldest)
	return oldest
}
