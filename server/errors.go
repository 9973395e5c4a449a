package server

import (
	"errors"

	"github.com/pithecene-io/netbackup/auth"
	"github.com/pithecene-io/netbackup/storage"
	"github.com/pithecene-io/netbackup/upload"
	"github.com/pithecene-io/netbackup/wire"
)

// errorKind classifies a handler error into the kind sent to the client.
func errorKind(err error) wire.ErrorKind {
	var frameErr *wire.FrameError
	switch {
	case errors.Is(err, storage.ErrInvalidName), errors.Is(err, upload.ErrInvalidFilename):
		return wire.KindInvalidName
	case errors.Is(err, storage.ErrNotFound):
		return wire.KindNotFound
	case errors.Is(err, upload.ErrNoPendingUpload):
		return wire.KindNoPendingUpload
	case errors.Is(err, upload.ErrIncompleteUpload):
		return wire.KindIncompleteUpload
	case errors.Is(err, upload.ErrTotalMismatch):
		return wire.KindTotalMismatch
	case errors.Is(err, upload.ErrInvalidTotal), errors.Is(err, upload.ErrChunkOutOfRange),
		errors.Is(err, upload.ErrChunkTooLarge), errors.Is(err, storage.ErrOutOfRange):
		return wire.KindInvalidChunk
	case errors.Is(err, auth.ErrNotAuthenticated):
		return wire.KindNotAuthenticated
	case errors.Is(err, auth.ErrTokenMismatch):
		return wire.KindTokenMismatch
	case errors.Is(err, auth.ErrInvalidCredentials):
		return wire.KindInvalidCredentials
	case errors.As(err, &frameErr):
		return wire.KindInvalidPayload
	default:
		return wire.KindInternal
	}
}

// errorDetail is the human-readable half of an error payload.
// Internal failures are reported generically; the cause is logged.
func errorDetail(kind wire.ErrorKind, op wire.Operation, err error) string {
	if kind == wire.KindInternal {
		return op.String() + " failed"
	}
	return err.Error()
}
