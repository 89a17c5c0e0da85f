package upload

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	chunkDirName = "chunks"

	// pendingMarkerName marks an upload whose assembled file still awaits a
	// successful commit.
	pendingMarkerName = ".pending"

	// ownerMarkerName holds the owner id of a chunked upload.
	ownerMarkerName = ".owner"
)

// PadWidth is the number of decimal digits in total. Every chunk name of an
// upload is padded to this width so lexical order equals index order.
func PadWidth(total int) int {
	return len(strconv.Itoa(total))
}

// ChunkFilename returns the on-disk name of chunk index for an upload split
// into total parts, e.g. ChunkFilename(3, 12) == "03".
func ChunkFilename(index, total int) string {
	return fmt.Sprintf("%0*d", PadWidth(total), index)
}

// ParseChunkFilename is the inverse of ChunkFilename. Names of the wrong
// width or with non-digit characters are rejected.
func ParseChunkFilename(name string, total int) (int, bool) {
	if len(name) != PadWidth(total) {
		return 0, false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	index, err := strconv.Atoi(name)
	if err != nil || index >= total {
		return 0, false
	}
	return index, true
}

// validSegment reports whether s can be used as a single path element.
func validSegment(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && filepath.Base(s) == s
}

// validFilename reports whether s can name a file in an upload directory
// without clashing with the chunk directory, a marker file or a temporary
// file.
func validFilename(s string) bool {
	return validSegment(s) &&
		s != chunkDirName &&
		s != pendingMarkerName &&
		s != ownerMarkerName &&
		!strings.HasSuffix(s, tmpExt)
}
