// Package auth implements the shared-secret gate in front of every
// storage operation.
//
// The server derives one expected token from its configured password at
// startup. A connection becomes authenticated by presenting that token in
// an Auth request, and must keep presenting it on every later request.
// The token is a static hash: anyone who observes it can replay it.
package auth

import (
	"crypto/subtle"
	"errors"

	"github.com/pithecene-io/netbackup/wire"
)

// Errors returned by the gate. All map to a permission-denied response.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("authentication required")
	ErrTokenMismatch      = errors.New("invalid authentication token")
)

// Gate holds the server-wide expected token.
type Gate struct {
	expected wire.Token
}

// NewGate derives the expected token from password.
func NewGate(password string) *Gate {
	return &Gate{expected: wire.DeriveToken(password)}
}

// NewGateWithToken creates a gate expecting token directly.
func NewGateWithToken(token wire.Token) *Gate {
	return &Gate{expected: token}
}

func (g *Gate) matches(token wire.Token) bool {
	return subtle.ConstantTimeCompare(token[:], g.expected[:]) == 1
}

// NewSession returns the per-connection state, initially unauthenticated.
func (g *Gate) NewSession() *Session {
	return &Session{gate: g}
}

// Session is the authentication state of one connection.
// Not safe for concurrent use; a connection processes requests sequentially.
type Session struct {
	gate          *Gate
	authenticated bool
}

// Authenticated reports whether the session has completed an Auth request.
func (s *Session) Authenticated() bool {
	return s.authenticated
}

// Authenticate marks the session authenticated iff presented matches the
// expected token. A failed attempt does not revoke an earlier success.
// May be called any number of times.
func (s *Session) Authenticate(presented wire.Token) error {
	if !s.gate.matches(presented) {
		return ErrInvalidCredentials
	}
	s.authenticated = true
	return nil
}

// Authorize checks whether a request for op carrying token may proceed.
// Auth requests always pass. Every other operation requires an
// authenticated session and the expected token on the request itself.
// Authorize never changes the session state.
func (s *Session) Authorize(op wire.Operation, token wire.Token) error {
	if op == wire.OpAuth {
		return nil
	}
	if !s.authenticated {
		return ErrNotAuthenticated
	}
	if !s.gate.matches(token) {
		return ErrTokenMismatch
	}
	return nil
}
