//nolint:revive // types is a common Go package naming convention
package types

import "time"

// LastModifiedLayout is the UTC timestamp layout used in file listings.
const LastModifiedLayout = "2006-01-02 15:04:05"

// FileMetadata describes one committed file in the storage root.
// Computed on demand at list time; never persisted.
type FileMetadata struct {
	// Filename is the bare file name (no path components).
	Filename string `msgpack:"filename" json:"filename" yaml:"filename"`
	// Size is the file size in bytes.
	Size int64 `msgpack:"size" json:"size" yaml:"size"`
	// LastModified is the mtime in UTC, formatted with LastModifiedLayout.
	LastModified string `msgpack:"last_modified" json:"last_modified" yaml:"last_modified"`
	// Checksum is the hex-encoded SHA-256 of the file contents.
	Checksum string `msgpack:"checksum" json:"checksum" yaml:"checksum"`
}

// FormatModTime formats t for FileMetadata.LastModified.
func FormatModTime(t time.Time) string {
	return t.UTC().Format(LastModifiedLayout)
}
