package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/config"
)

// InitConfigCommand returns the init-config command.
func InitConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "init-config",
		Usage: "Write a default netbackup.yaml",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Destination path",
				Value:   config.FileName,
			},
		},
		Action: func(c *cli.Context) error {
			path := c.String("output")
			if err := config.WriteDefault(path); err != nil {
				return cli.Exit(err.Error(), exitFailure)
			}
			fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
			return nil
		},
	}
}
