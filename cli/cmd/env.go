package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/pithecene-io/netbackup/cli/config"
	"github.com/pithecene-io/netbackup/client"
	"github.com/pithecene-io/netbackup/iox"
	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/wire"
)

// Exit codes.
const (
	exitFailure  = 1
	exitUsage    = 2
	exitDenied   = 3
	exitNotFound = 4
)

// loadConfig resolves the config file named by --config or found on the
// search path.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, _, err := config.Resolve(c.String(ConfigFlag.Name))
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return cfg, nil
}

// newLogger builds the CLI logger. --log-level wins over log.level.
func newLogger(c *cli.Context, cfg *config.Config, component string) (*log.Logger, error) {
	level := cfg.Log.Level
	if c.IsSet(LogLevelFlag.Name) {
		level = c.String(LogLevelFlag.Name)
	}
	logger, err := log.New(log.Options{Level: level, Component: component})
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}
	return logger, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// exitError maps err onto an exit code.
func exitError(action string, err error) error {
	code := exitFailure
	switch {
	case errors.Is(err, client.ErrPermissionDenied):
		code = exitDenied
	case errors.Is(err, client.ErrNotFound):
		code = exitNotFound
	}
	return cli.Exit(fmt.Sprintf("%s: %v", action, err), code)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// resolvePassword picks the shared secret: an explicit flag or env value,
// then an interactive prompt when one is available, then the configured
// password. An empty prompt answer falls back to the configured password.
func resolvePassword(explicit string, explicitSet bool, configured string, prompt func() (string, error)) (string, error) {
	if explicitSet {
		return explicit, nil
	}
	if prompt == nil {
		return configured, nil
	}
	entered, err := prompt()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if entered == "" {
		return configured, nil
	}
	return entered, nil
}

// terminalPrompt reads a masked password from stdin, or returns nil when
// stdin is not a terminal.
func terminalPrompt(c *cli.Context) func() (string, error) {
	if !isTerminal(os.Stdin) {
		return nil
	}
	return func() (string, error) {
		fmt.Fprint(c.App.ErrWriter, "Password: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(c.App.ErrWriter)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(b), "\r\n"), nil
	}
}

// session is an authenticated client plus the settings used to open it.
type session struct {
	client *client.Client
	addr   string
	logger *log.Logger
}

func (s *session) Close() {
	iox.DiscardClose(s.client)
	iox.DiscardErr(s.logger.Sync)
}

// connect dials the server and authenticates.
func connect(ctx context.Context, c *cli.Context, cfg *config.Config) (*session, error) {
	addr := c.String(ServerFlag.Name)
	if addr == "" {
		addr = cfg.Client.DefaultServer
	}

	password, err := resolvePassword(
		c.String(PasswordFlag.Name),
		c.IsSet(PasswordFlag.Name),
		cfg.Auth.Password,
		terminalPrompt(c),
	)
	if err != nil {
		return nil, cli.Exit(err.Error(), exitUsage)
	}

	logger, err := newLogger(c, cfg, "client")
	if err != nil {
		return nil, err
	}

	chunkSize := cfg.Client.ChunkSize
	if c.IsSet(ChunkSizeFlag.Name) {
		n := c.Uint(ChunkSizeFlag.Name)
		if n == 0 || n > wire.MaxChunkSize {
			return nil, cli.Exit(fmt.Sprintf("--chunk-size must be between 1 and %d", wire.MaxChunkSize), exitUsage)
		}
		chunkSize = uint32(n)
	}

	cl, err := client.Dial(ctx, addr, wire.DeriveToken(password), client.Options{
		DialTimeout: cfg.Client.DialTimeout.Duration,
		ChunkSize:   chunkSize,
		Logger:      logger,
	})
	if err != nil {
		return nil, exitError("connect", err)
	}
	if err := cl.Authenticate(ctx); err != nil {
		iox.DiscardClose(cl)
		return nil, exitError("authenticate", err)
	}
	logger.Debug("connected", map[string]any{"addr": addr, "chunk_size": chunkSize})

	return &session{client: cl, addr: addr, logger: logger}, nil
}
