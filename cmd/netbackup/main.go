// Package main provides the netbackup CLI entrypoint.
//
// Usage:
//
//	netbackup [--config path] <command> [options]
//
// Exit codes:
//   - 0: success
//   - 1: operation failed
//   - 2: usage or configuration error
//   - 3: authentication failed or permission denied
//   - 4: remote file not found
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/cmd"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := cmd.NewApp(commit)
	app.ExitErrHandler = func(_ *cli.Context, err error) {
		if err == nil {
			return
		}
		os.Exit(exitCode(os.Stderr, err))
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitCode(os.Stderr, err))
	}
}

// exitCode prints err to w and returns the process exit code.
// cli.Exit codes are preserved; any other error exits with 1.
func exitCode(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()

		// cli.Exit("", N).Error() is "exit status N"; nothing to print.
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
