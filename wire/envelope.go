package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// envelopeFixedSize is name_len(4) + chunk_number(4) + total_chunks(4).
const envelopeFixedSize = 12

// ChunkEnvelope is the payload of StoreChunk and RetrieveChunk messages:
//
//	[u32 filename_len][filename][u32 chunk_number][u32 total_chunks][data]
type ChunkEnvelope struct {
	Filename    string
	ChunkNumber uint32
	TotalChunks uint32
	Data        []byte
}

// Encode serializes the envelope.
func (e *ChunkEnvelope) Encode() []byte {
	name := []byte(e.Filename)
	buf := make([]byte, envelopeFixedSize+len(name)+len(e.Data))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(name)))
	off := 4 + copy(buf[4:], name)
	binary.BigEndian.PutUint32(buf[off:off+4], e.ChunkNumber)
	binary.BigEndian.PutUint32(buf[off+4:off+8], e.TotalChunks)
	copy(buf[off+8:], e.Data)
	return buf
}

// DecodeChunkEnvelope parses a chunk envelope.
// Invalid UTF-8 in the filename is replaced with U+FFFD rather than rejected;
// name validation happens downstream.
// The returned Data aliases payload.
func DecodeChunkEnvelope(payload []byte) (*ChunkEnvelope, error) {
	if len(payload) < envelopeFixedSize {
		return nil, &FrameError{
			Kind: FrameErrorTruncatedEnvelope,
			Msg:  fmt.Sprintf("chunk envelope %d bytes, need at least %d", len(payload), envelopeFixedSize),
		}
	}

	nameLen := uint64(binary.BigEndian.Uint32(payload[0:4]))
	if 4+nameLen+8 > uint64(len(payload)) {
		return nil, &FrameError{
			Kind: FrameErrorTruncatedEnvelope,
			Msg:  fmt.Sprintf("chunk envelope filename length %d exceeds payload", nameLen),
		}
	}

	off := 4 + int(nameLen)
	return &ChunkEnvelope{
		Filename:    strings.ToValidUTF8(string(payload[4:off]), "\uFFFD"),
		ChunkNumber: binary.BigEndian.Uint32(payload[off : off+4]),
		TotalChunks: binary.BigEndian.Uint32(payload[off+4 : off+8]),
		Data:        payload[off+8:],
	}, nil
}

// NewChunkRequest builds the RetrieveChunk envelope for one chunk of name.
// A chunkSize of zero lets the server pick DefaultChunkSize.
func NewChunkRequest(name string, index, chunkSize uint32) *ChunkEnvelope {
	env := &ChunkEnvelope{Filename: name, ChunkNumber: index}
	if chunkSize > 0 {
		env.Data = binary.BigEndian.AppendUint32(nil, chunkSize)
	}
	return env
}

// RequestedChunkSize returns the chunk size asked for by a RetrieveChunk
// envelope, or DefaultChunkSize if none was given.
func (e *ChunkEnvelope) RequestedChunkSize() (uint32, error) {
	switch len(e.Data) {
	case 0:
		return DefaultChunkSize, nil
	case 4:
		size := binary.BigEndian.Uint32(e.Data)
		if size == 0 || size > MaxChunkSize {
			return 0, fmt.Errorf("chunk size %d out of range (1..%d)", size, MaxChunkSize)
		}
		return size, nil
	default:
		return 0, fmt.Errorf("chunk size field must be 4 bytes, got %d", len(e.Data))
	}
}

// SplitStorePayload splits a whole-file Store payload (filename NUL data).
func SplitStorePayload(payload []byte) (string, []byte, error) {
	for i, b := range payload {
		if b == 0 {
			return strings.ToValidUTF8(string(payload[:i]), "\uFFFD"), payload[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("store payload has no filename terminator")
}

// JoinStorePayload builds a whole-file Store payload.
func JoinStorePayload(name string, data []byte) []byte {
	buf := make([]byte, 0, len(name)+1+len(data))
	buf = append(buf, name...)
	buf = append(buf, 0)
	return append(buf, data...)
}
