package render

import (
	"strconv"
	"time"

	"github.com/pithecene-io/netbackup/journal"
	"github.com/pithecene-io/netbackup/types"
)

// shortChecksum is how many hex digits of a checksum tables show.
const shortChecksum = 12

// Files renders a server listing.
type Files []types.FileMetadata

// Header implements Table.
func (Files) Header() []string {
	return []string{"NAME", "SIZE", "MODIFIED (UTC)", "SHA256"}
}

// Rows implements Table.
func (f Files) Rows() [][]string {
	rows := make([][]string, 0, len(f))
	for _, m := range f {
		rows = append(rows, []string{m.Filename, HumanSize(m.Size), m.LastModified, abbreviate(m.Checksum)})
	}
	return rows
}

// History renders journal entries.
type History []journal.Entry

// Header implements Table.
func (History) Header() []string {
	return []string{"TIME (UTC)", "OP", "NAME", "SIZE", "CHUNKS", "SHA256", "REMOTE"}
}

// Rows implements Table.
func (h History) Rows() [][]string {
	rows := make([][]string, 0, len(h))
	for _, e := range h {
		chunks := "-"
		if e.Chunks > 0 {
			chunks = strconv.FormatUint(uint64(e.Chunks), 10)
		}
		size := "-"
		if e.Op != journal.OpDelete {
			size = HumanSize(e.Size)
		}
		rows = append(rows, []string{
			e.Time.UTC().Format(time.DateTime),
			string(e.Op),
			e.Filename,
			size,
			chunks,
			abbreviate(e.Checksum),
			e.RemoteAddr,
		})
	}
	return rows
}

func abbreviate(checksum string) string {
	if len(checksum) > shortChecksum {
		return checksum[:shortChecksum]
	}
	return checksum
}
