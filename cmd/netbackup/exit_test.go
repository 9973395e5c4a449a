package main

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "exit code without message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantOut:  "",
		},
		{
			name:     "operation failed",
			err:      cli.Exit("upload f.bin: disk full", 1),
			wantCode: 1,
			wantOut:  "upload f.bin: disk full\n",
		},
		{
			name:     "permission denied",
			err:      cli.Exit("authenticate: invalid_credentials: Invalid password", 3),
			wantCode: 3,
			wantOut:  "authenticate: invalid_credentials: Invalid password\n",
		},
		{
			name:     "wrapped exit coder",
			err:      fmt.Errorf("outer: %w", cli.Exit("not found", 4)),
			wantCode: 4,
			wantOut:  "not found\n",
		},
		{
			name:     "joined exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner error", 42)),
			wantCode: 42,
			wantOut:  "inner error\n",
		},
		{
			name:     "regular error",
			err:      errors.New("boom"),
			wantCode: 1,
			wantOut:  "Error: boom\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := exitCode(&buf, tt.err); got != tt.wantCode {
				t.Errorf("exitCode = %d, want %d", got, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}
