// Package cmd provides CLI commands for the netbackup binary.
package cmd

import "github.com/urfave/cli/v2"

// Global flags, set on the app.
var (
	// ConfigFlag points at a netbackup.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to netbackup.yaml (default: search ./netbackup.yaml, user config dir, ~/.netbackup.yaml)",
		EnvVars: []string{"NETBACKUP_CONFIG"},
	}

	// LogLevelFlag overrides log.level from the config file.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
	}
)

// Output flags for commands that print structured data.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}
)

// Connection flags for commands that talk to a server.
var (
	// ServerFlag overrides client.default_server.
	ServerFlag = &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "Server address host:port (default: client.default_server)",
		EnvVars: []string{"NETBACKUP_SERVER"},
	}

	// PasswordFlag supplies the shared secret.
	PasswordFlag = &cli.StringFlag{
		Name:    "password",
		Aliases: []string{"p"},
		Usage:   "Shared password (prompted on a terminal when omitted)",
		EnvVars: []string{"NETBACKUP_PASSWORD"},
	}

	// ChunkSizeFlag overrides client.chunk_size.
	ChunkSizeFlag = &cli.UintFlag{
		Name:  "chunk-size",
		Usage: "Chunk size in bytes (default: client.chunk_size)",
	}
)

// Transfer flags for upload and download.
var (
	// NoProgressFlag disables the progress bar.
	NoProgressFlag = &cli.BoolFlag{
		Name:  "no-progress",
		Usage: "Do not draw a progress bar",
	}

	// WholeFlag sends or fetches the file in a single message.
	WholeFlag = &cli.BoolFlag{
		Name:  "whole",
		Usage: "Transfer in a single message instead of chunks",
	}
)

// GlobalFlags returns the flags accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{ConfigFlag, LogLevelFlag}
}

// OutputFlags returns the shared flags for commands that render data.
func OutputFlags() []cli.Flag {
	return []cli.Flag{FormatFlag, NoColorFlag}
}

// ConnectFlags returns the shared flags for commands that dial a server.
func ConnectFlags() []cli.Flag {
	return []cli.Flag{ServerFlag, PasswordFlag}
}

// TransferFlags returns ConnectFlags plus the upload and download flags.
func TransferFlags() []cli.Flag {
	return append(ConnectFlags(), ChunkSizeFlag, NoProgressFlag, WholeFlag)
}
