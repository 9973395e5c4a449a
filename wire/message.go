// Package wire implements the netbackup binary protocol.
//
// Every message on the stream is framed as
//
//	[u32 total_length][u32 request_id][u8 op][u8 status][32B checksum][32B auth_token][payload]
//
// All integers are big-endian. total_length counts every byte after itself,
// so a message with an empty payload has total_length == HeaderSize.
// checksum is the SHA-256 of payload and is verified on every decode.
package wire

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Size constants for the frame layout.
const (
	// LengthPrefixSize is the size of the total_length prefix in bytes.
	LengthPrefixSize = 4
	// ChecksumSize is the size of the payload checksum (SHA-256).
	ChecksumSize = sha256.Size
	// TokenSize is the size of the auth token field.
	TokenSize = 32
	// HeaderSize is the number of fixed bytes after the length prefix:
	// request_id(4) + op(1) + status(1) + checksum(32) + auth_token(32).
	HeaderSize = 4 + 1 + 1 + ChecksumSize + TokenSize

	// DefaultMaxFrameSize bounds total_length when no limit is configured (1 GiB).
	DefaultMaxFrameSize = 1 << 30
	// DefaultChunkSize is the chunk size used by clients (64 KiB).
	DefaultChunkSize = 64 * 1024
	// MaxChunkSize is the largest chunk data accepted by the server (8 MiB).
	MaxChunkSize = 8 * 1024 * 1024
)

// Operation identifies the requested action.
type Operation uint8

// Operation codes. Values are part of the wire format.
const (
	OpStore         Operation = 1
	OpRetrieve      Operation = 2
	OpDelete        Operation = 3
	OpList          Operation = 4
	OpAuth          Operation = 5
	OpStoreChunk    Operation = 6
	OpRetrieveChunk Operation = 7
	OpStoreComplete Operation = 8
)

// Valid reports whether o is a known operation code.
func (o Operation) Valid() bool {
	return o >= OpStore && o <= OpStoreComplete
}

func (o Operation) String() string {
	switch o {
	case OpStore:
		return "store"
	case OpRetrieve:
		return "retrieve"
	case OpDelete:
		return "delete"
	case OpList:
		return "list"
	case OpAuth:
		return "auth"
	case OpStoreChunk:
		return "store_chunk"
	case OpRetrieveChunk:
		return "retrieve_chunk"
	case OpStoreComplete:
		return "store_complete"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Status is the outcome carried by a response. Requests carry StatusSuccess.
type Status uint8

// Status codes. Values are part of the wire format.
const (
	StatusSuccess          Status = 0
	StatusNotFound         Status = 1
	StatusPermissionDenied Status = 2
	StatusInvalidData      Status = 3
	StatusServerError      Status = 4
)

// Valid reports whether s is a known status code.
func (s Status) Valid() bool {
	return s <= StatusServerError
}

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusPermissionDenied:
		return "permission_denied"
	case StatusInvalidData:
		return "invalid_data"
	case StatusServerError:
		return "server_error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Token is the fixed-width credential carried in every message.
type Token [TokenSize]byte

// IsZero reports whether every byte of t is zero.
func (t Token) IsZero() bool {
	return t == Token{}
}

// DeriveToken hashes a shared secret into the static session token.
// The result is replayable by anyone who observes it on the network.
func DeriveToken(secret string) Token {
	return Token(sha256.Sum256([]byte(secret)))
}

// Message is one decoded protocol message.
// For any Message produced by Decode, Checksum == sha256(Payload).
type Message struct {
	RequestID uint32
	Op        Operation
	Status    Status
	Checksum  [ChecksumSize]byte
	Token     Token
	Payload   []byte
}

// NewRequest builds a request message and computes its checksum.
func NewRequest(requestID uint32, op Operation, token Token, payload []byte) *Message {
	return &Message{
		RequestID: requestID,
		Op:        op,
		Status:    StatusSuccess,
		Checksum:  sha256.Sum256(payload),
		Token:     token,
		Payload:   payload,
	}
}

// NewResponse builds a response message and computes its checksum.
// Responses carry a zero token.
func NewResponse(requestID uint32, op Operation, status Status, payload []byte) *Message {
	return &Message{
		RequestID: requestID,
		Op:        op,
		Status:    status,
		Checksum:  sha256.Sum256(payload),
		Payload:   payload,
	}
}

// Length returns the total_length value for m.
func (m *Message) Length() uint32 {
	return uint32(HeaderSize + len(m.Payload))
}

// Encode serializes m including its length prefix.
// The stored Checksum is written as is; use NewRequest/NewResponse to build
// messages with a correct checksum.
func (m *Message) Encode() []byte {
	buf := make([]byte, LengthPrefixSize+HeaderSize+len(m.Payload))
	binary.BigEndian.PutUint32(buf[0:4], m.Length())
	binary.BigEndian.PutUint32(buf[4:8], m.RequestID)
	buf[8] = byte(m.Op)
	buf[9] = byte(m.Status)
	copy(buf[10:10+ChecksumSize], m.Checksum[:])
	copy(buf[10+ChecksumSize:10+ChecksumSize+TokenSize], m.Token[:])
	copy(buf[LengthPrefixSize+HeaderSize:], m.Payload)
	return buf
}

// Decode parses the bytes that followed a length prefix.
//
// Errors (all *FrameError):
//   - FrameErrorShort: body shorter than HeaderSize
//   - FrameErrorUnknownOperation / FrameErrorUnknownStatus: code out of range
//   - FrameErrorLengthMismatch: payload length disagrees with length
//   - FrameErrorChecksum: payload does not hash to the carried checksum
//
// The returned Payload aliases body.
func Decode(length uint32, body []byte) (*Message, error) {
	if len(body) < HeaderSize {
		return nil, &FrameError{
			Kind: FrameErrorShort,
			Msg:  fmt.Sprintf("message body %d bytes, need at least %d", len(body), HeaderSize),
		}
	}

	m := &Message{
		RequestID: binary.BigEndian.Uint32(body[0:4]),
		Op:        Operation(body[4]),
		Status:    Status(body[5]),
	}
	if !m.Op.Valid() {
		return nil, &FrameError{
			Kind: FrameErrorUnknownOperation,
			Msg:  fmt.Sprintf("unknown operation %d", body[4]),
		}
	}
	if !m.Status.Valid() {
		return nil, &FrameError{
			Kind: FrameErrorUnknownStatus,
			Msg:  fmt.Sprintf("unknown status %d", body[5]),
		}
	}

	copy(m.Checksum[:], body[6:6+ChecksumSize])
	copy(m.Token[:], body[6+ChecksumSize:HeaderSize])
	m.Payload = body[HeaderSize:]

	if int64(len(m.Payload)) != int64(length)-HeaderSize {
		return nil, &FrameError{
			Kind: FrameErrorLengthMismatch,
			Msg:  fmt.Sprintf("declared length %d, payload %d bytes", length, len(m.Payload)),
		}
	}

	if sha256.Sum256(m.Payload) != m.Checksum {
		return nil, &FrameError{
			Kind: FrameErrorChecksum,
			Msg:  "payload checksum mismatch",
		}
	}

	return m, nil
}
