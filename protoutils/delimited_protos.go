// Package protoutils reads and writes streams of size prefixed protobuf messages.
package protoutils

import (
	"bufio"
	"encoding/binary"
	"io"
	"iter"
	"math"
	"sync"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/proto"
)

// DelimitedProtoWriter writes proto messages to an [io.Writer]. Each message is
// prefixed by its size in bytes as a little endian uint32 so individual messages
// can later be retrieved with a [RawDelimitedProtoReader]. It is safe for
// concurrent use.
type DelimitedProtoWriter struct {
	mu     sync.Mutex
	writer io.Writer
}

// RawDelimitedProtoReader reads the encoded messages written by a
// [DelimitedProtoWriter] from an [io.Reader].
type RawDelimitedProtoReader struct {
	reader io.Reader
	err    error
}

// NewDelimitedProtoWriter creates a [DelimitedProtoWriter].
func NewDelimitedProtoWriter(writer io.Writer) *DelimitedProtoWriter {
	return &DelimitedProtoWriter{writer: writer}
}

// NewRawDelimitedProtoReader creates a [RawDelimitedProtoReader].
func NewRawDelimitedProtoReader(reader io.Reader) *RawDelimitedProtoReader {
	return &RawDelimitedProtoReader{reader: reader}
}

// Close will close the underlying writer if it is a [io.Closer]. Otherwise it
// is a noop.
func (o *DelimitedProtoWriter) Close() error {
	if closer, ok := o.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Append marshals the provided message and writes it to the underlying
// [io.Writer].
func (o *DelimitedProtoWriter) Append(message proto.Message) error {
	messageBytes, err := proto.Marshal(message)
	if err != nil {
		return err
	}
	frame := make([]byte, 4, 4+len(messageBytes))
	binary.LittleEndian.PutUint32(frame, uint32(len(messageBytes)))
	frame = append(frame, messageBytes...)

	o.mu.Lock()
	defer o.mu.Unlock()
	_, err = o.writer.Write(frame)
	return err
}

// Close will close the underlying reader if it is a [io.Closer]. Otherwise it
// is a noop.
func (o *RawDelimitedProtoReader) Close() error {
	if closer, ok := o.reader.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// All returns an [iter.Seq] over the encoded messages of the underlying
// [io.Reader]. The []byte yielded may be overwritten on subsequent iterations.
// A truncated trailing message ends the iteration and is reported by Err.
func (o *RawDelimitedProtoReader) All() iter.Seq[[]byte] {
	// 2 GiB, as defined by the protobuf spec, plus the length header. Fall back
	// to max int on 32-bit platforms.
	const realMaxSize = min(1024*1024*1024*2+4, math.MaxInt)
	return func(yield func([]byte) bool) {
		scanner := bufio.NewScanner(o.reader)
		scanner.Buffer(nil, realMaxSize)
		scanner.Split(splitMessages)

		for scanner.Scan() {
			if !yield(scanner.Bytes()) {
				return
			}
		}
		o.err = scanner.Err()
	}
}

// Err returns the error that ended the last iteration, if any.
func (o *RawDelimitedProtoReader) Err() error {
	return o.err
}

var errTruncated = errors.New("truncated delimited message")

func splitMessages(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if len(data) < 4 {
		if atEOF {
			return 0, nil, errTruncated
		}
		return 0, nil, nil
	}
	messageSize := binary.LittleEndian.Uint32(data[:4])
	messageBytes := data[4:]
	if uint64(len(messageBytes)) < uint64(messageSize) {
		if atEOF {
			return 0, nil, errTruncated
		}
		return 0, nil, nil
	}
	return int(messageSize) + 4, messageBytes[:messageSize], nil
}
