// Package iox holds cleanup helpers shared by the server, client and CLI.
package iox

import "io"

// DiscardClose closes c and drops the error. For connections and readers
// whose close error nobody can act on:
//
//	defer iox.DiscardClose(conn)
func DiscardClose(c io.Closer) { _ = c.Close() }

// CloseFunc returns a func that closes c, for t.Cleanup:
//
//	t.Cleanup(iox.CloseFunc(client))
func CloseFunc(c io.Closer) func() {
	return func() { _ = c.Close() }
}

// CloseWith closes c and passes a non-nil error to onErr.
// Journals use it so a failed final flush is logged rather than lost:
//
//	defer iox.CloseWith(j, func(err error) { logger.Warn(...) })
func CloseWith(c io.Closer, onErr func(error)) {
	if err := c.Close(); err != nil && onErr != nil {
		onErr(err)
	}
}

// DiscardErr calls fn and drops the returned error:
//
//	defer iox.DiscardErr(logger.Sync)
func DiscardErr(fn func() error) { _ = fn() }
