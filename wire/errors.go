package wire

import (
	"fmt"
	"strings"
)

// ErrorKind is a stable token naming why a request failed.
// Error responses carry "<kind>: <detail>" as their payload.
type ErrorKind string

// Error kinds.
const (
	KindInvalidFrame       ErrorKind = "invalid_frame"
	KindInvalidPayload     ErrorKind = "invalid_payload"
	KindInvalidName        ErrorKind = "invalid_name"
	KindInvalidChunk       ErrorKind = "invalid_chunk"
	KindTotalMismatch      ErrorKind = "total_mismatch"
	KindIncompleteUpload   ErrorKind = "incomplete_upload"
	KindNotFound           ErrorKind = "not_found"
	KindNoPendingUpload    ErrorKind = "no_pending_upload"
	KindNotAuthenticated   ErrorKind = "not_authenticated"
	KindTokenMismatch      ErrorKind = "token_mismatch"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindInternal           ErrorKind = "internal"
)

// Status returns the response status for k.
func (k ErrorKind) Status() Status {
	switch k {
	case KindInvalidFrame, KindInvalidPayload, KindInvalidName, KindInvalidChunk,
		KindTotalMismatch, KindIncompleteUpload:
		return StatusInvalidData
	case KindNotFound, KindNoPendingUpload:
		return StatusNotFound
	case KindNotAuthenticated, KindTokenMismatch, KindInvalidCredentials:
		return StatusPermissionDenied
	default:
		return StatusServerError
	}
}

var knownKinds = map[ErrorKind]struct{}{
	KindInvalidFrame:       {},
	KindInvalidPayload:     {},
	KindInvalidName:        {},
	KindInvalidChunk:       {},
	KindTotalMismatch:      {},
	KindIncompleteUpload:   {},
	KindNotFound:           {},
	KindNoPendingUpload:    {},
	KindNotAuthenticated:   {},
	KindTokenMismatch:      {},
	KindInvalidCredentials: {},
	KindInternal:           {},
}

// ErrorPayload formats an error response payload.
func ErrorPayload(kind ErrorKind, detail string) []byte {
	return fmt.Appendf(nil, "%s: %s", kind, detail)
}

// NewErrorResponse builds a failure response whose status follows from kind.
func NewErrorResponse(requestID uint32, op Operation, kind ErrorKind, detail string) *Message {
	return NewResponse(requestID, op, kind.Status(), ErrorPayload(kind, detail))
}

// ParseErrorPayload splits an error payload into kind and detail.
// Payloads without a recognized kind prefix return an empty kind and
// the whole payload as detail.
func ParseErrorPayload(payload []byte) (ErrorKind, string) {
	text := string(payload)
	prefix, detail, ok := strings.Cut(text, ": ")
	if !ok {
		return "", text
	}
	kind := ErrorKind(prefix)
	if _, known := knownKinds[kind]; !known {
		return "", text
	}
	return kind, detail
}
