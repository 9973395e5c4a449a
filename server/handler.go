package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pithecene-io/netbackup/adapter"
	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/log"
	"github.com/pithecene-io/netbackup/metrics"
	"github.com/pithecene-io/netbackup/storage"
	"github.com/pithecene-io/netbackup/upload"
	"github.com/pithecene-io/netbackup/wire"
)

// Success payloads.
var (
	replyAuthenticated = []byte("Authenticated")
	replyOK            = []byte("OK")
	replyComplete      = []byte("COMPLETE")
	replyStored        = []byte("File stored successfully")
)

// Handler executes decoded requests against storage and the upload table.
// Safe for concurrent use by many sessions.
type Handler struct {
	storage *storage.Backend
	uploads *upload.Manager
	events  *events
	metrics *metrics.Collector
}

// HandlerConfig wires a Handler's collaborators. Storage and Uploads are
// required; everything else may be nil.
type HandlerConfig struct {
	Storage      *storage.Backend
	Uploads      *upload.Manager
	Journal      journal.Journal
	Adapter      adapter.Adapter
	EventTimeout time.Duration
	Metrics      *metrics.Collector
	Logger       *log.Logger
}

// NewHandler creates a handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Nop()
	}
	return &Handler{
		storage: cfg.Storage,
		uploads: cfg.Uploads,
		events:  newEvents(cfg.Journal, cfg.Adapter, cfg.EventTimeout, cfg.Metrics, logger),
		metrics: cfg.Metrics,
	}
}

// Wait blocks until journal writes and notifications have drained.
func (h *Handler) Wait() {
	h.events.wait()
}

// Handle authorizes msg for sess, executes it and returns the response.
// It never returns nil.
func (h *Handler) Handle(ctx context.Context, sess *Session, msg *wire.Message) *wire.Message {
	h.metrics.IncMessageReceived()

	if msg.Op == wire.OpAuth {
		return h.handleAuth(sess, msg)
	}

	if err := sess.auth.Authorize(msg.Op, msg.Token); err != nil {
		h.metrics.IncPermissionDenied()
		sess.logger.Warn("request denied", map[string]any{
			"op":         msg.Op.String(),
			"request_id": msg.RequestID,
			"reason":     err.Error(),
		})
		return wire.NewErrorResponse(msg.RequestID, msg.Op, errorKind(err), err.Error())
	}

	var (
		payload []byte
		err     error
	)
	switch msg.Op {
	case wire.OpStore:
		payload, err = h.store(ctx, sess, msg.Payload)
	case wire.OpRetrieve:
		payload, err = h.retrieve(msg.Payload)
	case wire.OpDelete:
		payload, err = h.delete(ctx, sess, msg.Payload)
	case wire.OpList:
		payload, err = h.list()
	case wire.OpStoreChunk:
		payload, err = h.storeChunk(sess, msg.Payload)
	case wire.OpStoreComplete:
		payload, err = h.storeComplete(ctx, sess, msg.Payload)
	case wire.OpRetrieveChunk:
		payload, err = h.retrieveChunk(msg.Payload)
	}

	if err != nil {
		kind := errorKind(err)
		fields := map[string]any{
			"op":         msg.Op.String(),
			"request_id": msg.RequestID,
			"kind":       string(kind),
			"error":      err.Error(),
		}
		if kind == wire.KindInternal {
			sess.logger.Error("request failed", fields)
		} else {
			sess.logger.Debug("request rejected", fields)
		}
		return wire.NewErrorResponse(msg.RequestID, msg.Op, kind, errorDetail(kind, msg.Op, err))
	}
	return wire.NewResponse(msg.RequestID, msg.Op, wire.StatusSuccess, payload)
}

func (h *Handler) handleAuth(sess *Session, msg *wire.Message) *wire.Message {
	if err := sess.auth.Authenticate(msg.Token); err != nil {
		h.metrics.IncAuthFailure()
		sess.logger.Warn("authentication failed", nil)
		return wire.NewErrorResponse(msg.RequestID, wire.OpAuth, wire.KindInvalidCredentials, "Invalid password")
	}
	h.metrics.IncAuthSuccess()
	sess.logger.Info("client authenticated", nil)
	return wire.NewResponse(msg.RequestID, wire.OpAuth, wire.StatusSuccess, replyAuthenticated)
}

// filename decodes a filename payload.
func filename(payload []byte) string {
	return strings.ToValidUTF8(string(payload), "\uFFFD")
}

func (h *Handler) store(ctx context.Context, sess *Session, payload []byte) ([]byte, error) {
	name, data, err := wire.SplitStorePayload(payload)
	if err != nil {
		return nil, &wire.FrameError{Kind: wire.FrameErrorDecode, Msg: err.Error()}
	}
	if err := h.storage.Store(name, data); err != nil {
		return nil, err
	}
	h.metrics.RecordStored(int64(len(data)))
	sess.logger.Info("file stored", map[string]any{"filename": name, "size": len(data)})

	h.events.emit(ctx, sess, journal.Entry{
		Op:       journal.OpStore,
		Filename: name,
		Size:     int64(len(data)),
		Checksum: checksumHex(data),
	})
	return replyOK, nil
}

func (h *Handler) retrieve(payload []byte) ([]byte, error) {
	data, err := h.storage.Retrieve(filename(payload))
	if err != nil {
		return nil, err
	}
	h.metrics.RecordServed(int64(len(data)), true)
	return data, nil
}

func (h *Handler) delete(ctx context.Context, sess *Session, payload []byte) ([]byte, error) {
	name := filename(payload)
	if err := h.storage.Delete(name); err != nil {
		return nil, err
	}
	h.metrics.IncFileDeleted()
	sess.logger.Info("file deleted", map[string]any{"filename": name})

	h.events.emit(ctx, sess, journal.Entry{Op: journal.OpDelete, Filename: name})
	return replyOK, nil
}

func (h *Handler) list() ([]byte, error) {
	files, err := h.storage.List()
	if err != nil {
		return nil, err
	}
	return wire.EncodeListing(files)
}

func (h *Handler) storeChunk(sess *Session, payload []byte) ([]byte, error) {
	env, err := wire.DecodeChunkEnvelope(payload)
	if err != nil {
		h.metrics.IncChunkRejected()
		return nil, err
	}

	complete, err := h.uploads.AcceptChunk(env.Filename, env.ChunkNumber, env.TotalChunks, env.Data)
	if err != nil {
		h.metrics.IncChunkRejected()
		return nil, err
	}
	h.metrics.IncChunkAccepted()
	sess.logger.Debug("chunk accepted", map[string]any{
		"filename": env.Filename,
		"chunk":    env.ChunkNumber,
		"total":    env.TotalChunks,
		"complete": complete,
	})

	if complete {
		return replyComplete, nil
	}
	return replyOK, nil
}

func (h *Handler) storeComplete(ctx context.Context, sess *Session, payload []byte) ([]byte, error) {
	name := filename(payload)

	var checksum string
	result, err := h.uploads.Complete(name, func(data []byte) error {
		checksum = checksumHex(data)
		return h.storage.Store(name, data)
	})
	if err != nil {
		if errors.Is(err, upload.ErrIncompleteUpload) {
			h.metrics.IncUploadIncomplete()
		}
		return nil, err
	}

	h.metrics.IncUploadCompleted()
	h.metrics.RecordStored(result.Size)
	sess.logger.Info("upload completed", map[string]any{
		"filename": name,
		"size":     result.Size,
		"chunks":   result.Chunks,
	})

	h.events.emit(ctx, sess, journal.Entry{
		Op:       journal.OpCommit,
		Filename: name,
		Size:     result.Size,
		Checksum: checksum,
		Chunks:   result.Chunks,
	})
	return replyStored, nil
}

func (h *Handler) retrieveChunk(payload []byte) ([]byte, error) {
	req, err := wire.DecodeChunkEnvelope(payload)
	if err != nil {
		return nil, err
	}
	chunkSize, err := req.RequestedChunkSize()
	if err != nil {
		return nil, &wire.FrameError{Kind: wire.FrameErrorDecode, Msg: err.Error()}
	}

	data, total, err := h.storage.ReadChunk(req.Filename, req.ChunkNumber, chunkSize)
	if err != nil {
		return nil, err
	}
	h.metrics.RecordServed(int64(len(data)), req.ChunkNumber+1 == total)

	resp := wire.ChunkEnvelope{
		Filename:    req.Filename,
		ChunkNumber: req.ChunkNumber,
		TotalChunks: total,
		Data:        data,
	}
	return resp.Encode(), nil
}
