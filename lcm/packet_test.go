package lcm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestShortPacket(t *testing.T) {
	packets, err := encodePackets(7, "DRAKE_VIEWER_DRAW", []byte{1, 2, 3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(packets), test.ShouldEqual, 1)

	pkt := packets[0]
	test.That(t, string(pkt[:4]), test.ShouldEqual, "LC02")
	test.That(t, binary.BigEndian.Uint32(pkt[4:]), test.ShouldEqual, uint32(7))

	msg, frag, err := decodePacket(pkt)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, frag, test.ShouldBeNil)
	test.That(t, msg.Channel, test.ShouldEqual, "DRAKE_VIEWER_DRAW")
	test.That(t, msg.Data, test.ShouldResemble, []byte{1, 2, 3})
}

func bigPayload(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 31)
	}
	return data
}

func TestFragmentedPacket(t *testing.T) {
	data := bigPayload(3*fragmentPayloadMax + 100)
	packets, err := encodePackets(9, "BIG", data)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(packets), test.ShouldEqual, 4)
	for _, pkt := range packets {
		test.That(t, string(pkt[:4]), test.ShouldEqual, "LC03")
		test.That(t, len(pkt), test.ShouldBeLessThanOrEqualTo, fragmentHeaderSize+fragmentPayloadMax)
	}

	r := newReassembler()
	// Out of order, with a duplicate.
	for _, i := range []int{2, 0, 2, 3} {
		_, frag, err := decodePacket(packets[i])
		test.That(t, err, test.ShouldBeNil)
		msg, err := r.add("a", frag)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, msg, test.ShouldBeNil)
	}
	_, frag, err := decodePacket(packets[1])
	test.That(t, err, test.ShouldBeNil)
	msg, err := r.add("a", frag)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Channel, test.ShouldEqual, "BIG")
	test.That(t, bytes.Equal(msg.Data, data), test.ShouldBeTrue)
	test.That(t, len(r.pending), test.ShouldEqual, 0)
}

func TestReassemblyAbandonsOnNewSeqno(t *testing.T) {
	first, err := encodePackets(1, "BIG", bigPayload(2*fragmentPayloadMax-100))
	test.That(t, err, test.ShouldBeNil)
	second, err := encodePackets(2, "BIG", bigPayload(2*fragmentPayloadMax-100))
	test.That(t, err, test.ShouldBeNil)

	r := newReassembler()
	add := func(sender string, pkt []byte) *Message {
		_, frag, err := decodePacket(pkt)
		test.That(t, err, test.ShouldBeNil)
		msg, err := r.add(sender, frag)
		test.That(t, err, test.ShouldBeNil)
		return msg
	}

	test.That(t, add("a", first[0]), test.ShouldBeNil)
	// Another sender does not disturb a.
	test.That(t, add("b", second[0]), test.ShouldBeNil)
	test.That(t, add("a", second[0]), test.ShouldBeNil)
	test.That(t, r.abandoned, test.ShouldEqual, 1)
	// The stale tail of the first message starts over and never completes the second.
	test.That(t, add("a", first[1]), test.ShouldBeNil)
	test.That(t, r.abandoned, test.ShouldEqual, 2)
	test.That(t, add("b", second[1]), test.ShouldNotBeNil)
}

func TestDecodePacketErrors(t *testing.T) {
	short, err := encodePackets(1, "CH", nil)
	test.That(t, err, test.ShouldBeNil)
	frags, err := encodePackets(1, "CH", bigPayload(fragmentPayloadMax+10))
	test.That(t, err, test.ShouldBeNil)

	unterminated := append([]byte(nil), short[0][:shortHeaderSize+2]...)
	badCount := append([]byte(nil), frags[1]...)
	binary.BigEndian.PutUint16(badCount[16:], 5)
	oversized := fragmentHeader(1, 1<<31, 0, 1, 40000)

	for name, pkt := range map[string][]byte{
		"tiny":           {0x4c, 0x43},
		"bad magic":      []byte("XXXXXXXXXXXX"),
		"unterminated":   unterminated,
		"short header":   frags[1][:fragmentHeaderSize-1],
		"index >= count": badCount,
		"oversized":      oversized,
	} {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodePacket(pkt)
			test.That(t, errors.Is(err, errMalformedPacket), test.ShouldBeTrue)
		})
	}
}

func TestChannelValidation(t *testing.T) {
	_, err := encodePackets(0, "", nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = encodePackets(0, string(bytes.Repeat([]byte("x"), MaxChannelLength+1)), nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = encodePackets(0, "A\x00B", nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = encodePackets(0, string(bytes.Repeat([]byte("x"), MaxChannelLength)), nil)
	test.That(t, err, test.ShouldBeNil)
}

func fragmentHeader(seqno, size, offset uint32, index, count uint16) []byte {
	pkt := binary.BigEndian.AppendUint32(nil, magicFragment)
	pkt = binary.BigEndian.AppendUint32(pkt, seqno)
	pkt = binary.BigEndian.AppendUint32(pkt, size)
	pkt = binary.BigEndian.AppendUint32(pkt, offset)
	pkt = binary.BigEndian.AppendUint16(pkt, index)
	return binary.BigEndian.AppendUint16(pkt, count)
}

func TestReassemblyBuffersOnlyReceivedBytes(t *testing.T) {
	r := newReassembler()
	_, err := r.add("a", &fragment{seqno: 1, size: MaxMessageSize + 1, index: 1, count: maxFragments})
	test.That(t, errors.Is(err, errMalformedPacket), test.ShouldBeTrue)
	test.That(t, len(r.pending), test.ShouldEqual, 0)

	// A fragment claiming the largest message holds only its own bytes.
	pkt := append(fragmentHeader(1, MaxMessageSize, 100, 1, maxFragments), 1, 2, 3)
	_, frag, err := decodePacket(pkt)
	test.That(t, err, test.ShouldBeNil)
	msg, err := r.add("a", frag)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg, test.ShouldBeNil)
	test.That(t, r.buffered, test.ShouldEqual, 3)

	r.drop("a")
	test.That(t, r.buffered, test.ShouldEqual, 0)
	test.That(t, r.abandoned, test.ShouldEqual, 1)
}

func TestReassemblyBoundsSenders(t *testing.T) {
	r := newReassembler()
	for i := 0; i <= maxPendingMessages; i++ {
		pkt := append(fragmentHeader(uint32(i), 1000, 500, 1, 2), 9)
		_, frag, err := decodePacket(pkt)
		test.That(t, err, test.ShouldBeNil)
		msg, err := r.add(string(rune('a'+i)), frag)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, msg, test.ShouldBeNil)
	}
	test.That(t, len(r.pending), test.ShouldEqual, maxPendingMessages)
	test.That(t, r.abandoned, test.ShouldEqual, 1)
	test.That(t, r.buffered, test.ShouldEqual, maxPendingMessages)
	_, ok := r.pending["a"]
	test.That(t, ok, test.ShouldBeFalse)
}
