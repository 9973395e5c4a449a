// Package client speaks the netbackup protocol to a server.
//
// A Client owns one TCP connection and issues requests strictly one at a
// time; request ids increase by one per request on that connection.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/types"
	"github.com/pithecene-io/netbackup/wire"
)

// DefaultDialTimeout bounds connection setup when none is configured.
const DefaultDialTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	// DialTimeout bounds connection setup (default 10s).
	DialTimeout time.Duration
	// ChunkSize is the upload and download chunk size (default 64 KiB).
	ChunkSize uint32
	// MaxFrameBytes bounds responses (default wire.DefaultMaxFrameSize).
	MaxFrameBytes uint32
	// Logger receives debug entries per request. Nil disables logging.
	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.ChunkSize == 0 {
		o.ChunkSize = wire.DefaultChunkSize
	}
	if o.Logger == nil {
		o.Logger = log.Nop()
	}
	return o
}

// Progress is called after each chunk with the number of chunks done and
// the total.
type Progress func(done, total uint32)

// Client is a connection to a netbackup server.
// Safe for concurrent use; requests are serialized.
type Client struct {
	conn   net.Conn
	reader *wire.Reader
	token  wire.Token
	opts   Options

	mu     sync.Mutex
	nextID uint32
	broken error // set once the stream position is unknown
}

// Dial connects to addr. token is sent on every request; Authenticate
// must succeed before any other operation.
func Dial(ctx context.Context, addr string, token wire.Token, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	return New(conn, token, opts), nil
}

// New wraps an established connection.
func New(conn net.Conn, token wire.Token, opts Options) *Client {
	opts = opts.withDefaults()
	return &Client{
		conn:   conn,
		reader: wire.NewReader(conn, opts.MaxFrameBytes),
		token:  token,
		opts:   opts,
		nextID: 1,
	}
}

// ChunkSize returns the configured chunk size.
func (c *Client) ChunkSize() uint32 {
	return c.opts.ChunkSize
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request and waits for its response.
// Non-success responses are returned as *RemoteError.
func (c *Client) roundTrip(ctx context.Context, op wire.Operation, payload []byte) (*wire.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, fmt.Errorf("connection unusable: %w", c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Now())
	})
	defer stop()

	id := c.nextID
	c.nextID++
	req := wire.NewRequest(id, op, c.token, payload)

	if err := wire.WriteMessage(c.conn, req); err != nil {
		return nil, c.transportErr(ctx, err)
	}
	resp, err := c.reader.ReadMessage()
	if err != nil {
		return nil, c.transportErr(ctx, err)
	}

	c.opts.Logger.Debug("response", map[string]any{
		"op":         op.String(),
		"request_id": id,
		"status":     resp.Status.String(),
		"bytes":      len(resp.Payload),
	})

	if resp.RequestID != id {
		return nil, &ProtocolError{Msg: fmt.Sprintf("response id %d for request %d", resp.RequestID, id)}
	}
	if resp.Status != wire.StatusSuccess {
		return nil, newRemoteError(resp)
	}
	if resp.Op != op {
		return nil, &ProtocolError{Msg: fmt.Sprintf("response op %s for %s request", resp.Op, op)}
	}
	return resp, nil
}

// transportErr marks the connection broken and prefers the context error
// when ctx ended the exchange. Recoverable frame errors leave the stream
// aligned and do not break the connection.
func (c *Client) transportErr(ctx context.Context, err error) error {
	var frameErr *wire.FrameError
	if !errors.As(err, &frameErr) || frameErr.IsFatal() {
		c.broken = err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

// Authenticate presents the token. Other operations fail with
// ErrPermissionDenied until it succeeds.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.roundTrip(ctx, wire.OpAuth, nil)
	return err
}

// Store uploads data as name in a single message.
func (c *Client) Store(ctx context.Context, name string, data []byte) error {
	_, err := c.roundTrip(ctx, wire.OpStore, wire.JoinStorePayload(name, data))
	return err
}

// Retrieve downloads name in a single message.
func (c *Client) Retrieve(ctx context.Context, name string) ([]byte, error) {
	resp, err := c.roundTrip(ctx, wire.OpRetrieve, []byte(name))
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Delete removes name.
func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := c.roundTrip(ctx, wire.OpDelete, []byte(name))
	return err
}

// List returns metadata for every stored file, sorted by name.
func (c *Client) List(ctx context.Context) ([]types.FileMetadata, error) {
	resp, err := c.roundTrip(ctx, wire.OpList, nil)
	if err != nil {
		return nil, err
	}
	return wire.DecodeListing(resp.Payload)
}

// ChunkCount returns how many chunks Upload sends for size bytes.
// An empty file is sent as one empty chunk.
func ChunkCount(size int, chunkSize uint32) uint32 {
	if size == 0 {
		return 1
	}
	return uint32((size + int(chunkSize) - 1) / int(chunkSize))
}

// Upload sends data as name in chunks, then asks the server to commit it.
// progress, if non-nil, is called after every chunk.
func (c *Client) Upload(ctx context.Context, name string, data []byte, progress Progress) error {
	size := int(c.opts.ChunkSize)
	total := ChunkCount(len(data), c.opts.ChunkSize)

	for n := range total {
		start := int(n) * size
		end := min(start+size, len(data))
		env := wire.ChunkEnvelope{
			Filename:    name,
			ChunkNumber: n,
			TotalChunks: total,
			Data:        data[start:end],
		}
		if _, err := c.roundTrip(ctx, wire.OpStoreChunk, env.Encode()); err != nil {
			return fmt.Errorf("upload %s chunk %d/%d: %w", name, n+1, total, err)
		}
		if progress != nil {
			progress(n+1, total)
		}
	}

	if _, err := c.roundTrip(ctx, wire.OpStoreComplete, []byte(name)); err != nil {
		return fmt.Errorf("complete upload %s: %w", name, err)
	}
	return nil
}

// Download fetches name chunk by chunk.
// progress, if non-nil, is called after every chunk.
func (c *Client) Download(ctx context.Context, name string, progress Progress) ([]byte, error) {
	var (
		out   []byte
		total uint32 = 1
	)
	for n := uint32(0); n < total; n++ {
		resp, err := c.roundTrip(ctx, wire.OpRetrieveChunk, wire.NewChunkRequest(name, n, c.opts.ChunkSize).Encode())
		if err != nil {
			return nil, fmt.Errorf("download %s chunk %d: %w", name, n, err)
		}
		env, err := wire.DecodeChunkEnvelope(resp.Payload)
		if err != nil {
			return nil, fmt.Errorf("download %s chunk %d: %w", name, n, err)
		}
		if env.ChunkNumber != n {
			return nil, &ProtocolError{Msg: fmt.Sprintf("chunk %d returned for request %d", env.ChunkNumber, n)}
		}
		if n == 0 {
			total = env.TotalChunks
			if total == 0 {
				return nil, &ProtocolError{Msg: "server reported zero chunks"}
			}
			out = make([]byte, 0, int(total)*int(c.opts.ChunkSize))
		} else if env.TotalChunks != total {
			return nil, &ProtocolError{Msg: fmt.Sprintf("chunk count changed from %d to %d", total, env.TotalChunks)}
		}
		out = append(out, env.Data...)
		if progress != nil {
			progress(n+1, total)
		}
	}
	return out, nil
}
