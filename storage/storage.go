// Package storage persists committed files in a flat directory.
//
// Every file lives directly under the root; subdirectories are neither
// created nor listed. Filenames are validated on every operation so no
// request can address a path outside the root.
package storage

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pithecene-io/netbackup/iox"
	"github.com/pithecene-io/netbackup/types"
)

// tempPrefix marks in-flight writes. Such files are hidden from List.
const tempPrefix = ".netbackup-tmp-"

// ValidateName reports whether name is safe to use as a storage filename.
// Names containing "..", "/" or "\", empty names, "." and names with a
// NUL byte are rejected.
func ValidateName(name string) bool {
	if name == "" || name == "." {
		return false
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return false
	}
	return !strings.HasPrefix(name, tempPrefix)
}

// Backend stores files under a single root directory.
// Safe for concurrent use: writes go through a temp file and rename, so
// readers see either the previous or the new content, never a torn file.
type Backend struct {
	root string
}

// New creates a backend rooted at dir, creating the directory if needed.
func New(dir string) (*Backend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, wrap(err, "init", "")
	}
	return &Backend{root: dir}, nil
}

// Root returns the storage directory.
func (b *Backend) Root() string {
	return b.root
}

func (b *Backend) path(op, name string) (string, error) {
	if !ValidateName(name) {
		return "", newError(ErrInvalidName, op, name, nil)
	}
	return filepath.Join(b.root, name), nil
}

// Store creates or replaces name with data.
func (b *Backend) Store(name string, data []byte) error {
	target, err := b.path("store", name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(b.root, tempPrefix+"*")
	if err != nil {
		return wrap(err, "store", name)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		iox.DiscardClose(tmp)
		return wrap(err, "store", name)
	}
	if err := tmp.Close(); err != nil {
		return wrap(err, "store", name)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return wrap(err, "store", name)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return wrap(err, "store", name)
	}
	committed = true
	return nil
}

// Retrieve returns the contents of name.
func (b *Backend) Retrieve(name string) ([]byte, error) {
	target, err := b.path("retrieve", name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, wrap(err, "retrieve", name)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, wrap(err, "retrieve", name)
	}
	if !info.Mode().IsRegular() {
		return nil, newError(ErrNotFound, "retrieve", name, nil)
	}
	data := make([]byte, 0, info.Size())
	buf := bytes.NewBuffer(data)
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, wrap(err, "retrieve", name)
	}
	return buf.Bytes(), nil
}

// Delete removes name.
func (b *Backend) Delete(name string) error {
	target, err := b.path("delete", name)
	if err != nil {
		return err
	}
	info, err := os.Lstat(target)
	if err != nil {
		return wrap(err, "delete", name)
	}
	if !info.Mode().IsRegular() {
		return newError(ErrNotFound, "delete", name, nil)
	}
	if err := os.Remove(target); err != nil {
		return wrap(err, "delete", name)
	}
	return nil
}

// Stat returns metadata for name, including its checksum.
func (b *Backend) Stat(name string) (types.FileMetadata, error) {
	target, err := b.path("stat", name)
	if err != nil {
		return types.FileMetadata{}, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return types.FileMetadata{}, wrap(err, "stat", name)
	}
	if !info.Mode().IsRegular() {
		return types.FileMetadata{}, newError(ErrNotFound, "stat", name, nil)
	}
	return b.describe(name, info)
}

// List describes every regular file directly under the root, sorted by name.
// An empty root yields an empty, non-nil slice.
func (b *Backend) List() ([]types.FileMetadata, error) {
	entries, err := os.ReadDir(b.root)
	if err != nil {
		return nil, wrap(err, "list", "")
	}

	files := make([]types.FileMetadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), tempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				// Deleted between ReadDir and Info.
				continue
			}
			return nil, wrap(err, "list", entry.Name())
		}
		meta, err := b.describe(entry.Name(), info)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		files = append(files, meta)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Filename < files[j].Filename
	})
	return files, nil
}

func (b *Backend) describe(name string, info os.FileInfo) (types.FileMetadata, error) {
	sum, err := b.checksum(name)
	if err != nil {
		return types.FileMetadata{}, err
	}
	return types.FileMetadata{
		Filename:     name,
		Size:         info.Size(),
		LastModified: types.FormatModTime(info.ModTime()),
		Checksum:     sum,
	}, nil
}

func (b *Backend) checksum(name string) (string, error) {
	f, err := os.Open(filepath.Join(b.root, name))
	if err != nil {
		return "", wrap(err, "checksum", name)
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", wrap(err, "checksum", name)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChunkCount returns how many chunks of chunkSize bytes make up a file of size.
// An empty file has one empty chunk.
func ChunkCount(size int64, chunkSize uint32) uint32 {
	if size <= 0 {
		return 1
	}
	return uint32((size + int64(chunkSize) - 1) / int64(chunkSize))
}

// ReadChunk returns chunk index of name split into chunkSize pieces,
// together with the total chunk count.
func (b *Backend) ReadChunk(name string, index, chunkSize uint32) ([]byte, uint32, error) {
	if chunkSize == 0 {
		return nil, 0, fmt.Errorf("read chunk %s: chunk size must be positive", name)
	}
	target, err := b.path("read_chunk", name)
	if err != nil {
		return nil, 0, err
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, 0, wrap(err, "read_chunk", name)
	}
	defer iox.DiscardClose(f)

	info, err := f.Stat()
	if err != nil {
		return nil, 0, wrap(err, "read_chunk", name)
	}
	if !info.Mode().IsRegular() {
		return nil, 0, newError(ErrNotFound, "read_chunk", name, nil)
	}

	total := ChunkCount(info.Size(), chunkSize)
	if index >= total {
		return nil, total, newError(ErrOutOfRange, "read_chunk", name,
			fmt.Errorf("chunk %d of %d", index, total))
	}

	offset := int64(index) * int64(chunkSize)
	n := min(int64(chunkSize), info.Size()-offset)
	buf := make([]byte, max(n, 0))
	if _, err := f.ReadAt(buf, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, total, wrap(err, "read_chunk", name)
	}
	return buf, total, nil
}
