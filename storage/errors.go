package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrInvalidName indicates a filename that could escape the storage root.
	ErrInvalidName = errors.New("invalid filename")

	// ErrNotFound indicates the named file does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied indicates the process cannot access the storage root.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDiskFull indicates storage is out of space.
	ErrDiskFull = errors.New("no space left on device")

	// ErrOutOfRange indicates a chunk index past the end of the file.
	ErrOutOfRange = errors.New("chunk out of range")

	// errUnclassified marks I/O failures with no more specific kind.
	errUnclassified = errors.New("storage error")
)

// Error wraps an underlying error with storage classification.
type Error struct {
	// Kind is the sentinel error for classification (e.g., ErrNotFound).
	Kind error
	// Op is the operation that failed (e.g., "store", "retrieve", "list").
	Op string
	// Name is the filename involved, if any.
	Name string
	// Err is the underlying error.
	Err error
}

func (e *Error) Error() string {
	if e.Name != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Name, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func newError(kind error, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

// wrap classifies err and wraps it. Returns nil if err is nil.
func wrap(err error, op, name string) error {
	if err == nil {
		return nil
	}
	return newError(classify(err), op, name, err)
}

// classify determines the sentinel for an I/O error.
// Typed checks run first; message patterns catch errors that lost their type.
func classify(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, syscall.ENOSPC), errors.Is(err, syscall.EDQUOT):
		return ErrDiskFull
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "does not exist"):
		return ErrNotFound
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "access is denied"):
		return ErrPermissionDenied
	case strings.Contains(msg, "no space left"), strings.Contains(msg, "disk full"),
		strings.Contains(msg, "quota exceeded"):
		return ErrDiskFull
	default:
		return errUnclassified
	}
}
