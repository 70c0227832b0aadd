package lcmtypes

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// ErrFingerprintMismatch is returned when a payload was encoded for a different type.
var ErrFingerprintMismatch = errors.New("lcm fingerprint mismatch")

// ErrShortBuffer is returned when a payload ends before all members are decoded.
var ErrShortBuffer = errors.New("lcm payload truncated")

// Message is implemented by every top level LCM type in this package.
type Message interface {
	TypeName() string
	Fingerprint() uint64
	Encode() ([]byte, error)
	Decode(data []byte) error
}

type encoder struct {
	buf []byte
}

func newEncoder(fingerprint uint64) *encoder {
	e := &encoder{buf: make([]byte, 0, 256)}
	e.buf = binary.BigEndian.AppendUint64(e.buf, fingerprint)
	return e
}

func (e *encoder) int8(v int8) {
	e.buf = append(e.buf, byte(v))
}

func (e *encoder) int32(v int32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
}

func (e *encoder) int64(v int64) {
	e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
}

func (e *encoder) float32(v float32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(v))
}

func (e *encoder) float32s(vs []float32) {
	for _, v := range vs {
		e.float32(v)
	}
}

func (e *encoder) string(s string) {
	e.int32(int32(len(s) + 1))
	e.buf = append(e.buf, s...)
	e.buf = append(e.buf, 0)
}

// decoder reads big endian members. The first failure sticks in err and every later read
// returns zero values, so callers check err once at the end.
type decoder struct {
	buf []byte
	off int
	err error
}

func newDecoder(data []byte, fingerprint uint64) *decoder {
	d := &decoder{buf: data}
	if got := d.uint64(); d.err == nil && got != fingerprint {
		d.err = errors.Wrapf(ErrFingerprintMismatch, "expected %#016x, got %#016x", fingerprint, got)
	}
	return d
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.buf)-d.off < n {
		d.err = errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, d.off, len(d.buf)-d.off)
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *decoder) remaining() int {
	return len(d.buf) - d.off
}

func (d *decoder) uint64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (d *decoder) int8() int8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return int8(b[0])
}

func (d *decoder) int32() int32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (d *decoder) int64() int64 {
	return int64(d.uint64())
}

func (d *decoder) float32() float32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return math.Float32frombits(binary.BigEndian.Uint32(b))
}

func (d *decoder) float32s(dst []float32) {
	for i := range dst {
		dst[i] = d.float32()
	}
}

func (d *decoder) string() string {
	n := d.int32()
	if d.err != nil {
		return ""
	}
	if n < 1 {
		d.err = errors.Errorf("invalid string length %d at offset %d", n, d.off-4)
		return ""
	}
	b := d.take(int(n))
	if b == nil {
		return ""
	}
	if b[n-1] != 0 {
		d.err = errors.Errorf("string at offset %d is not NUL terminated", d.off-int(n))
		return ""
	}
	return string(b[:n-1])
}

// count reads an array length and rejects values that cannot fit in the rest of the
// payload given the minimum encoded size of one element.
func (d *decoder) count(name string, minElemSize int) int {
	n := d.int32()
	if d.err != nil {
		return 0
	}
	if n < 0 {
		d.err = errors.Errorf("%s is negative (%d)", name, n)
		return 0
	}
	if int(n)*minElemSize > d.remaining() {
		d.err = errors.Wrapf(ErrShortBuffer, "%s=%d exceeds payload", name, n)
		return 0
	}
	return int(n)
}

func (d *decoder) finish(typeName string) error {
	if d.err != nil {
		return errors.Wrapf(d.err, "decoding %s", typeName)
	}
	if d.remaining() != 0 {
		return errors.Errorf("decoding %s: %d trailing bytes", typeName, d.remaining())
	}
	return nil
}

// checkCount validates a declared array length against the backing slice before encoding.
func checkCount(name string, declared int32, actual int) error {
	if declared < 0 {
		return errors.Errorf("%s is negative (%d)", name, declared)
	}
	if int(declared) > actual {
		return errors.Errorf("%s=%d but only %d elements present", name, declared, actual)
	}
	return nil
}
