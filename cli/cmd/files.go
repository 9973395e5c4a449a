package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/render"
	"github.com/pithecene-io/netbackup/cli/tui"
)

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored files",
		Flags:   append(ConnectFlags(), OutputFlags()...),
		Action:  listAction,
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete a stored file",
		ArgsUsage: "<remote>",
		Flags:     ConnectFlags(),
		Action:    deleteAction,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c.Context)
	defer stop()

	sess, err := connect(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	files, err := sess.client.List(ctx)
	if err != nil {
		return exitError("list", err)
	}
	return r.Render(render.Files(files))
}

func deleteAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: netbackup delete <remote>", exitUsage)
	}
	remote := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ctx, stop := signalContext(c.Context)
	defer stop()

	sess, err := connect(ctx, c, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.client.Delete(ctx, remote); err != nil {
		return exitError("delete "+remote, err)
	}
	fmt.Fprintln(c.App.Writer, tui.SuccessStyle.Render("Deleted "+remote))
	return nil
}
