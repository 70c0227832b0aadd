package lcm

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	magicShort    uint32 = 0x4c433032 // "LC02"
	magicFragment uint32 = 0x4c433033 // "LC03"

	shortHeaderSize    = 8
	fragmentHeaderSize = 20

	// MaxChannelLength is the longest channel name LCM accepts.
	MaxChannelLength = 63

	// shortMessageMax bounds header, channel and payload of an unfragmented datagram.
	shortMessageMax = 65499
	// fragmentPayloadMax bounds the bytes after the header of one fragment.
	fragmentPayloadMax = 65423
	maxFragments       = 65535

	// MaxMessageSize is the largest message LCM will send or reassemble.
	MaxMessageSize = 1 << 28
)

// errMalformedPacket marks a datagram that is not a valid LCM packet.
var errMalformedPacket = errors.New("malformed LCM packet")

func validateChannel(channel string) error {
	if channel == "" {
		return errors.New("empty channel name")
	}
	if len(channel) > MaxChannelLength {
		return errors.Errorf("channel name %q longer than %d bytes", channel, MaxChannelLength)
	}
	if bytes.IndexByte([]byte(channel), 0) >= 0 {
		return errors.Errorf("channel name %q contains a NUL byte", channel)
	}
	return nil
}

// encodePackets returns the datagrams carrying one message.
func encodePackets(seqno uint32, channel string, data []byte) ([][]byte, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}

	if shortHeaderSize+len(channel)+1+len(data) <= shortMessageMax {
		pkt := make([]byte, 0, shortHeaderSize+len(channel)+1+len(data))
		pkt = binary.BigEndian.AppendUint32(pkt, magicShort)
		pkt = binary.BigEndian.AppendUint32(pkt, seqno)
		pkt = append(pkt, channel...)
		pkt = append(pkt, 0)
		return [][]byte{append(pkt, data...)}, nil
	}

	if len(data) > MaxMessageSize {
		return nil, errors.Errorf("message of %d bytes exceeds %d bytes", len(data), MaxMessageSize)
	}

	total := len(channel) + 1 + len(data)
	count := (total + fragmentPayloadMax - 1) / fragmentPayloadMax
	if count > maxFragments {
		return nil, errors.Errorf("message of %d bytes needs more than %d fragments", len(data), maxFragments)
	}

	packets := make([][]byte, 0, count)
	offset := 0
	for i := 0; i < count; i++ {
		room := fragmentPayloadMax
		if i == 0 {
			room -= len(channel) + 1
		}
		end := min(offset+room, len(data))

		pkt := make([]byte, 0, fragmentHeaderSize+fragmentPayloadMax)
		pkt = binary.BigEndian.AppendUint32(pkt, magicFragment)
		pkt = binary.BigEndian.AppendUint32(pkt, seqno)
		pkt = binary.BigEndian.AppendUint32(pkt, uint32(len(data)))
		pkt = binary.BigEndian.AppendUint32(pkt, uint32(offset))
		pkt = binary.BigEndian.AppendUint16(pkt, uint16(i))
		pkt = binary.BigEndian.AppendUint16(pkt, uint16(count))
		if i == 0 {
			pkt = append(pkt, channel...)
			pkt = append(pkt, 0)
		}
		packets = append(packets, append(pkt, data[offset:end]...))
		offset = end
	}
	return packets, nil
}

// fragment is one decoded LC03 datagram.
type fragment struct {
	seqno   uint32
	size    uint32
	offset  uint32
	index   uint16
	count   uint16
	channel string // only set on fragment 0
	data    []byte
}

// decodePacket parses a datagram. It returns either a complete message (short packets) or a
// fragment to hand to the reassembler.
func decodePacket(pkt []byte) (*Message, *fragment, error) {
	if len(pkt) < shortHeaderSize {
		return nil, nil, errors.Wrapf(errMalformedPacket, "%d byte datagram", len(pkt))
	}
	switch binary.BigEndian.Uint32(pkt) {
	case magicShort:
		channel, data, err := splitChannel(pkt[shortHeaderSize:])
		if err != nil {
			return nil, nil, err
		}
		return &Message{Channel: channel, Data: data}, nil, nil
	case magicFragment:
		if len(pkt) < fragmentHeaderSize {
			return nil, nil, errors.Wrapf(errMalformedPacket, "%d byte fragment", len(pkt))
		}
		f := &fragment{
			seqno:  binary.BigEndian.Uint32(pkt[4:]),
			size:   binary.BigEndian.Uint32(pkt[8:]),
			offset: binary.BigEndian.Uint32(pkt[12:]),
			index:  binary.BigEndian.Uint16(pkt[16:]),
			count:  binary.BigEndian.Uint16(pkt[18:]),
			data:   pkt[fragmentHeaderSize:],
		}
		if f.size > MaxMessageSize {
			return nil, nil, errors.Wrapf(errMalformedPacket, "%d byte message exceeds %d bytes", f.size, MaxMessageSize)
		}
		if f.count == 0 || f.index >= f.count {
			return nil, nil, errors.Wrapf(errMalformedPacket, "fragment %d of %d", f.index, f.count)
		}
		if f.index == 0 {
			channel, data, err := splitChannel(f.data)
			if err != nil {
				return nil, nil, err
			}
			f.channel, f.data = channel, data
		}
		if uint64(f.offset)+uint64(len(f.data)) > uint64(f.size) {
			return nil, nil, errors.Wrapf(errMalformedPacket, "fragment overruns %d byte message", f.size)
		}
		return nil, f, nil
	default:
		return nil, nil, errors.Wrap(errMalformedPacket, "bad magic")
	}
}

func splitChannel(b []byte) (string, []byte, error) {
	end := bytes.IndexByte(b, 0)
	if end < 0 || end > MaxChannelLength {
		return "", nil, errors.Wrap(errMalformedPacket, "channel name not terminated")
	}
	if end == 0 {
		return "", nil, errors.Wrap(errMalformedPacket, "empty channel name")
	}
	return string(b[:end]), b[end+1:], nil
}
