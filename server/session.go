package server

import (
	"encoding/binary"

	"github.com/pithecene-io/netbackup/auth"
	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/wire"
)

// Session is the per-connection state seen by the handler.
type Session struct {
	// ID identifies the connection in logs and journal records.
	ID string
	// RemoteAddr is the peer address.
	RemoteAddr string

	auth   *auth.Session
	logger *log.Logger
}

// NewSession creates session state for a connection.
func NewSession(id, remoteAddr string, gate *auth.Gate, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Nop()
	}
	return &Session{
		ID:         id,
		RemoteAddr: remoteAddr,
		auth:       gate.NewSession(),
		logger: logger.With(map[string]any{
			"session_id":  id,
			"remote_addr": remoteAddr,
		}),
	}
}

// Authenticated reports whether the session has passed an Auth request.
func (s *Session) Authenticated() bool {
	return s.auth.Authenticated()
}

// invalidFrameResponse answers a request that could not be decoded.
// The request id and operation are echoed when the body is long enough
// to carry them; the operation falls back to Store when unknown.
func invalidFrameResponse(body []byte, err error) *wire.Message {
	var requestID uint32
	if len(body) >= 4 {
		requestID = binary.BigEndian.Uint32(body[0:4])
	}
	op := wire.OpStore
	if len(body) >= 5 {
		if candidate := wire.Operation(body[4]); candidate.Valid() {
			op = candidate
		}
	}
	return wire.NewErrorResponse(requestID, op, wire.KindInvalidFrame, err.Error())
}
