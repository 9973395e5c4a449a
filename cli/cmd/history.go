package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/cli/render"
	"github.com/pithecene-io/netbackup/iox"
	"github.com/pithecene-io/netbackup/journal"
)

// HistoryCommand returns the history command.
// It reads the journal dataset directly and never contacts the server.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show committed and deleted files from the journal",
		ArgsUsage: "[name]",
		Flags: append(OutputFlags(),
			&cli.StringFlag{
				Name:  "journal-backend",
				Usage: "Journal backend: fs or s3 (default: journal.backend)",
			},
			&cli.StringFlag{
				Name:  "journal-path",
				Usage: "Journal path, fs: directory, s3: bucket/prefix (default: journal.path)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show only the most recent N entries (0 = all)",
			},
		),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	if c.NArg() > 1 {
		return cli.Exit("usage: netbackup history [name]", exitUsage)
	}
	if c.Int("limit") < 0 {
		return cli.Exit("--limit must be >= 0", exitUsage)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	jcfg := journalConfig(cfg)
	if c.IsSet("journal-backend") {
		jcfg.Backend = c.String("journal-backend")
	}
	if c.IsSet("journal-path") {
		jcfg.Path = c.String("journal-path")
	}

	ctx, stop := signalContext(c.Context)
	defer stop()

	reader, err := journal.OpenReader(ctx, jcfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), exitUsage)
	}
	defer iox.DiscardClose(reader)

	entries, err := reader.History(ctx, c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("read journal: %v", err), exitFailure)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	if limit := c.Int("limit"); limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return r.Render(render.History(entries))
}
