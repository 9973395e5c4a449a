package client

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/netbackup/wire"
)

// Sentinels matched by RemoteError according to the response status.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidData      = errors.New("invalid data")
	ErrServer           = errors.New("server error")
)

// RemoteError is a non-success response from the server.
type RemoteError struct {
	Op     wire.Operation
	Status wire.Status
	// Kind is empty when the payload carried no recognized kind.
	Kind   wire.ErrorKind
	Detail string
}

// newRemoteError builds a RemoteError from a failure response.
func newRemoteError(resp *wire.Message) *RemoteError {
	kind, detail := wire.ParseErrorPayload(resp.Payload)
	return &RemoteError{Op: resp.Op, Status: resp.Status, Kind: kind, Detail: detail}
}

func (e *RemoteError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s: %s (%s)", e.Op, e.Status, e.Detail, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Status, e.Detail)
}

// Is matches the sentinel for the response status.
func (e *RemoteError) Is(target error) bool {
	switch e.Status {
	case wire.StatusNotFound:
		return target == ErrNotFound
	case wire.StatusPermissionDenied:
		return target == ErrPermissionDenied
	case wire.StatusInvalidData:
		return target == ErrInvalidData
	case wire.StatusServerError:
		return target == ErrServer
	default:
		return false
	}
}

// ProtocolError reports a response that does not answer the request.
type ProtocolError struct {
	Msg string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Msg
}
