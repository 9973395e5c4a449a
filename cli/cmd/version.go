package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/render"
	"github.com/pithecene-io/netbackup/types"
	"github.com/pithecene-io/netbackup/wire"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	HeaderLen int    `json:"header_bytes" yaml:"header_bytes"`
}

// VersionCommand returns the version command. It never contacts a server.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  OutputFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitUsage)
		}
		return r.Render(VersionResponse{
			Version:   types.Version,
			Commit:    commit,
			HeaderLen: wire.HeaderSize,
		})
	}
}
