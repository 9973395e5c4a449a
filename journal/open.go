package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/netbackup/log"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "netbackup"

// Config selects and configures a journal backend.
type Config struct {
	// Backend is "" (disabled), "fs" or "s3".
	Backend string
	// Path is the fs root, or "bucket/prefix" for s3.
	Path string
	// Dataset is the Lode dataset ID (default netbackup).
	Dataset string
	// Region, Endpoint and S3PathStyle configure the s3 backend.
	Region      string
	Endpoint    string
	S3PathStyle bool

	// BatchSize above 1 buffers entries and writes them in batches.
	BatchSize int
	// FlushInterval flushes a partial batch periodically.
	FlushInterval time.Duration
	// Logger receives batch flush failures.
	Logger *log.Logger
}

// Open builds the journal described by cfg. A disabled journal is Nop.
func Open(ctx context.Context, cfg Config) (Journal, error) {
	if cfg.Backend == "" || cfg.Backend == "none" {
		return Nop{}, nil
	}
	lj, err := openLode(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize <= 1 {
		return lj, nil
	}
	return NewBuffered(lj, BufferedConfig{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Logger:        cfg.Logger,
	})
}

// OpenReader opens the dataset described by cfg for reading history.
// Batching settings are ignored.
func OpenReader(ctx context.Context, cfg Config) (*LodeJournal, error) {
	if cfg.Backend == "" || cfg.Backend == "none" {
		return nil, fmt.Errorf("journal: no backend configured")
	}
	return openLode(ctx, cfg)
}

func openLode(ctx context.Context, cfg Config) (*LodeJournal, error) {
	dataset := cfg.Dataset
	if dataset == "" {
		dataset = DefaultDataset
	}

	switch cfg.Backend {
	case "fs":
		if cfg.Path == "" {
			return nil, fmt.Errorf("journal: fs backend requires a path")
		}
		return NewFS(dataset, cfg.Path)
	case "s3":
		bucket, prefix := ParseS3Path(cfg.Path)
		return NewS3(ctx, dataset, S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("journal: unknown backend %q (must be fs or s3)", cfg.Backend)
	}
}
