package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/netbackup/types"
)

// EncodeListing serializes a List response payload.
func EncodeListing(files []types.FileMetadata) ([]byte, error) {
	if files == nil {
		files = []types.FileMetadata{}
	}
	data, err := msgpack.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encode listing: %w", err)
	}
	return data, nil
}

// DecodeListing parses a List response payload.
func DecodeListing(payload []byte) ([]types.FileMetadata, error) {
	var files []types.FileMetadata
	if err := msgpack.Unmarshal(payload, &files); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode file listing",
			Err:  err,
		}
	}
	if files == nil {
		files = []types.FileMetadata{}
	}
	return files, nil
}
