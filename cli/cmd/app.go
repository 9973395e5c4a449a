package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/types"
)

// NewApp returns the netbackup CLI application.
func NewApp(commit string) *cli.App {
	return &cli.App{
		Name:    "netbackup",
		Usage:   "Authenticated file backup over TCP",
		Version: fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		Flags:   GlobalFlags(),
		Commands: []*cli.Command{
			ServerCommand(),
			UploadCommand(),
			DownloadCommand(),
			ListCommand(),
			DeleteCommand(),
			HistoryCommand(),
			InitConfigCommand(),
			VersionCommand(commit),
		},
	}
}
