package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/netbackup/adapter"
	"github.com/pithecene-io/netbackup/adapter/redis"
	"github.com/pithecene-io/netbackup/adapter/webhook"
	"github.com/pithecene-io/netbackup/auth"
	"github.com/pithecene-io/netbackup/cli/config"
	"github.com/pithecene-io/netbackup/iox"
	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/metrics"
	"github.com/pithecene-io/netbackup/server"
	"github.com/pithecene-io/netbackup/storage"
	"github.com/pithecene-io/netbackup/upload"
)

// ServerCommand returns the server command.
func ServerCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the backup server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bind",
				Aliases: []string{"b"},
				Usage:   "Listen address (default: server.bind_address)",
			},
			&cli.StringFlag{
				Name:  "storage",
				Usage: "Storage directory (default: server.storage_path)",
			},
			&cli.StringFlag{
				Name:    "password",
				Aliases: []string{"p"},
				Usage:   "Shared password (default: auth.password)",
				EnvVars: []string{"NETBACKUP_PASSWORD"},
			},
			&cli.DurationFlag{
				Name:  "stale-after",
				Usage: "Drop pending uploads idle this long, 0 disables (default: server.stale_upload_after)",
			},
			&cli.StringFlag{
				Name:  "journal-backend",
				Usage: "Journal backend: fs or s3 (default: journal.backend)",
			},
			&cli.StringFlag{
				Name:  "journal-path",
				Usage: "Journal path, fs: directory, s3: bucket/prefix (default: journal.path)",
			},
		},
		Action: serverAction,
	}
}

func serverAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	applyServerFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitUsage)
	}

	logger, err := newLogger(c, cfg, "server")
	if err != nil {
		return err
	}
	defer iox.DiscardErr(logger.Sync)

	ctx, stop := signalContext(c.Context)
	defer stop()

	store, err := storage.New(cfg.Server.StoragePath)
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}

	jcfg := journalConfig(cfg)
	jcfg.Logger = logger
	j, err := journal.Open(ctx, jcfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("open journal: %v", err), exitFailure)
	}
	defer iox.CloseWith(j, func(err error) {
		logger.Warn("journal close failed", map[string]any{"error": err.Error()})
	})

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("notify: %v", err), exitUsage)
	}
	defer iox.DiscardClose(notifier)

	journalBackend := jcfg.Backend
	if journalBackend == "" {
		journalBackend = "none"
	}
	collector := metrics.NewCollector("fs", journalBackend)
	uploads := upload.NewManager()

	handler := server.NewHandler(server.HandlerConfig{
		Storage: store,
		Uploads: uploads,
		Journal: j,
		Adapter: notifier,
		Metrics: collector,
		Logger:  logger,
	})
	srv := server.New(server.Config{
		Addr:             cfg.Server.BindAddress,
		MaxFrameBytes:    cfg.Server.MaxFrameBytes,
		StaleUploadAfter: cfg.Server.StaleUploadAfter.Duration,
		SweepInterval:    cfg.Server.SweepInterval.Duration,
	}, auth.NewGate(cfg.Auth.Password), handler, uploads, collector, logger)

	logger.Info("starting", map[string]any{
		"storage":          store.Root(),
		"journal":          journalBackend,
		"notify":           notifyType(cfg),
		"default_password": cfg.Auth.Password == config.DefaultPassword,
	})

	if err := srv.ListenAndServe(ctx); err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	return nil
}

// applyServerFlags overlays command flags on the loaded config.
func applyServerFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("bind") {
		cfg.Server.BindAddress = c.String("bind")
	}
	if c.IsSet("storage") {
		cfg.Server.StoragePath = c.String("storage")
	}
	if c.IsSet("password") {
		cfg.Auth.Password = c.String("password")
	}
	if c.IsSet("stale-after") {
		cfg.Server.StaleUploadAfter = config.Duration{Duration: c.Duration("stale-after")}
	}
	if c.IsSet("journal-backend") {
		cfg.Journal.Backend = c.String("journal-backend")
	}
	if c.IsSet("journal-path") {
		cfg.Journal.Path = c.String("journal-path")
	}
}

func journalConfig(cfg *config.Config) journal.Config {
	return journal.Config{
		Backend:     cfg.Journal.Backend,
		Path:        cfg.Journal.Path,
		Dataset:     cfg.Journal.Dataset,
		Region:      cfg.Journal.Region,
		Endpoint:    cfg.Journal.Endpoint,
		S3PathStyle: cfg.Journal.S3PathStyle,

		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval.Duration,
	}
}

func notifyType(cfg *config.Config) string {
	if cfg.Notify.Type == "" {
		return "none"
	}
	return cfg.Notify.Type
}

// buildNotifier creates the commit notification adapter from notify config.
func buildNotifier(cfg *config.Config) (adapter.Adapter, error) {
	n := cfg.Notify
	switch n.Type {
	case "":
		return adapter.Nop{}, nil
	case "redis":
		a, err := redis.New(redis.Config{
			URL:     n.URL,
			Channel: n.Channel,
			Timeout: n.Timeout.Duration,
			Retries: cfg.NotifyRetries(),
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	case "webhook":
		a, err := webhook.New(webhook.Config{
			URL:     n.URL,
			Headers: n.Headers,
			Timeout: n.Timeout.Duration,
			Retries: cfg.NotifyRetries(),
		})
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown notify type %q (must be redis or webhook)", n.Type)
	}
}
