package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/render"
	"github.com/pithecene-io/netbackup/cli/tui"
	"github.com/pithecene-io/netbackup/client"
	"github.com/pithecene-io/netbackup/storage"
)

// UploadCommand returns the upload command.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload a local file",
		ArgsUsage: "<local> [remote]",
		Flags:     TransferFlags(),
		Action:    uploadAction,
	}
}

// DownloadCommand returns the download command.
func DownloadCommand() *cli.Command {
	return &cli.Command{
		Name:      "download",
		Usage:     "Download a stored file",
		ArgsUsage: "<remote> [local]",
		Flags: append(TransferFlags(),
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing local file",
			},
		),
		Action: downloadAction,
	}
}

func uploadAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: netbackup upload <local> [remote]", exitUsage)
	}
	local := c.Args().Get(0)
	remote := c.Args().Get(1)
	if remote == "" {
		remote = filepath.Base(local)
	}
	if !storage.ValidateName(remote) {
		return cli.Exit(fmt.Sprintf("invalid remote name %q", remote), exitUsage)
	}

	data, err := os.ReadFile(local)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
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

	chunks := client.ChunkCount(len(data), sess.client.ChunkSize())
	err = runTransfer(ctx, c, fmt.Sprintf("Uploading %s", remote), func(ctx context.Context, progress func(done, total uint32)) error {
		if c.Bool(WholeFlag.Name) {
			chunks = 1
			return sess.client.Store(ctx, remote, data)
		}
		return sess.client.Upload(ctx, remote, data, progress)
	})
	if err != nil {
		return exitError("upload "+remote, err)
	}

	fmt.Fprintln(c.App.Writer, tui.SuccessStyle.Render(
		fmt.Sprintf("Uploaded %s as %s (%s, %d chunks)", local, remote, render.HumanSize(int64(len(data))), chunks)))
	return nil
}

func downloadAction(c *cli.Context) error {
	if c.NArg() < 1 || c.NArg() > 2 {
		return cli.Exit("usage: netbackup download <remote> [local]", exitUsage)
	}
	remote := c.Args().Get(0)
	local := c.Args().Get(1)
	if local == "" {
		local = remote
	}
	toStdout := local == "-"
	if !toStdout && !c.Bool("force") {
		if _, err := os.Stat(local); err == nil {
			return cli.Exit(fmt.Sprintf("%s already exists (use --force to overwrite)", local), exitUsage)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return cli.Exit(err.Error(), exitFailure)
		}
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

	var data []byte
	err = runTransfer(ctx, c, fmt.Sprintf("Downloading %s", remote), func(ctx context.Context, progress func(done, total uint32)) error {
		var err error
		if c.Bool(WholeFlag.Name) {
			data, err = sess.client.Retrieve(ctx, remote)
		} else {
			data, err = sess.client.Download(ctx, remote, progress)
		}
		return err
	})
	if err != nil {
		return exitError("download "+remote, err)
	}

	if toStdout {
		_, err := c.App.Writer.Write(data)
		return err
	}
	if err := os.WriteFile(local, data, 0o644); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	fmt.Fprintln(c.App.Writer, tui.SuccessStyle.Render(
		fmt.Sprintf("Downloaded %s to %s (%s)", remote, local, render.HumanSize(int64(len(data))))))
	return nil
}

// runTransfer runs fn behind a progress bar when stderr is a terminal and
// --no-progress is not set. Otherwise fn runs without progress reporting.
func runTransfer(ctx context.Context, c *cli.Context, title string, fn func(ctx context.Context, progress func(done, total uint32)) error) error {
	if c.Bool(NoProgressFlag.Name) || !isTerminal(os.Stderr) {
		return fn(ctx, nil)
	}
	return tui.RunTransfer(ctx, title, os.Stdin, os.Stderr, fn)
}
