package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameErrorKind classifies framing and decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates the stream ended inside a frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a declared length above the reader limit.
	// The frame body has been discarded from the stream.
	FrameErrorTooLarge
	// FrameErrorShort indicates a body shorter than HeaderSize.
	FrameErrorShort
	// FrameErrorUnknownOperation indicates an operation byte out of range.
	FrameErrorUnknownOperation
	// FrameErrorUnknownStatus indicates a status byte out of range.
	FrameErrorUnknownStatus
	// FrameErrorLengthMismatch indicates total_length disagrees with the body.
	FrameErrorLengthMismatch
	// FrameErrorChecksum indicates the payload failed checksum verification.
	FrameErrorChecksum
	// FrameErrorTruncatedEnvelope indicates a chunk envelope too short for its fields.
	FrameErrorTruncatedEnvelope
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

func (k FrameErrorKind) String() string {
	switch k {
	case FrameErrorPartial:
		return "partial"
	case FrameErrorTooLarge:
		return "too_large"
	case FrameErrorShort:
		return "short"
	case FrameErrorUnknownOperation:
		return "unknown_operation"
	case FrameErrorUnknownStatus:
		return "unknown_status"
	case FrameErrorLengthMismatch:
		return "length_mismatch"
	case FrameErrorChecksum:
		return "checksum_mismatch"
	case FrameErrorTruncatedEnvelope:
		return "truncated_envelope"
	case FrameErrorDecode:
		return "decode"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// FrameError represents a framing or decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream can no longer be read.
// Only partial frames are fatal; every other kind leaves the stream
// positioned at the next frame boundary.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// discardPeekSize is how much of an oversized frame is kept for addressing a reply.
const discardPeekSize = 6

// eagerAllocSize is the largest body allocated in full before reading.
// It covers a header plus a default-size chunk envelope.
const eagerAllocSize = 1 << 20

// Reader reads length-prefixed frames from a stream.
type Reader struct {
	r        io.Reader
	maxBytes uint32
}

// NewReader creates a frame reader. maxBytes bounds total_length;
// zero selects DefaultMaxFrameSize.
func NewReader(r io.Reader, maxBytes uint32) *Reader {
	if maxBytes == 0 {
		maxBytes = DefaultMaxFrameSize
	}
	return &Reader{r: r, maxBytes: maxBytes}
}

// ReadFrame reads one frame and returns its declared length and body.
//
// Errors:
//   - io.EOF: stream ended cleanly before a new frame
//   - *FrameError with Kind=FrameErrorPartial: stream ended inside a frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeded the limit and was
//     discarded; body holds at most its first six bytes
func (d *Reader) ReadFrame() (uint32, []byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(d.r, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])

	if length > d.maxBytes {
		return d.discard(length)
	}

	body, err := d.readBody(length)
	if err != nil {
		return 0, nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read message body",
			Err:  err,
		}
	}

	return length, body, nil
}

// readBody reads exactly length bytes. Bodies above eagerAllocSize grow
// by doubling as bytes arrive, so memory held for a frame stays within
// twice what the peer has actually sent.
func (d *Reader) readBody(length uint32) ([]byte, error) {
	if length <= eagerAllocSize {
		body := make([]byte, length)
		if _, err := io.ReadFull(d.r, body); err != nil {
			return nil, err
		}
		return body, nil
	}

	body := make([]byte, 0, eagerAllocSize)
	for uint32(len(body)) < length {
		if len(body) == cap(body) {
			grown := make([]byte, len(body), min(uint64(2*cap(body)), uint64(length)))
			copy(grown, body)
			body = grown
		}
		n, err := io.ReadFull(d.r, body[len(body):cap(body)])
		body = body[:len(body)+n]
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
	return body, nil
}

// discard consumes an oversized frame so the stream stays aligned.
func (d *Reader) discard(length uint32) (uint32, []byte, error) {
	peek := make([]byte, min(int(length), discardPeekSize))
	if _, err := io.ReadFull(d.r, peek); err != nil {
		return 0, nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read oversized frame",
			Err:  err,
		}
	}
	rest := int64(length) - int64(len(peek))
	if _, err := io.CopyN(io.Discard, d.r, rest); err != nil {
		return 0, nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to discard oversized frame",
			Err:  err,
		}
	}
	return length, peek, &FrameError{
		Kind: FrameErrorTooLarge,
		Msg:  fmt.Sprintf("frame length %d exceeds maximum %d", length, d.maxBytes),
	}
}

// ReadMessage reads and decodes one message.
func (d *Reader) ReadMessage() (*Message, error) {
	length, body, err := d.ReadFrame()
	if err != nil {
		return nil, err
	}
	return Decode(length, body)
}

// WriteMessage writes m to w as a single frame.
func WriteMessage(w io.Writer, m *Message) error {
	if _, err := w.Write(m.Encode()); err != nil {
		return fmt.Errorf("write %s message: %w", m.Op, err)
	}
	return nil
}
