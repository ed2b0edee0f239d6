// Package mime classifies file content as text or binary for the
// installer's reconciliation matrix, preferring an explicit svn:mime-type property over
// content sniffing.
package mime

import (
	"strings"

	"github.com/h2non/filetype"
)

// SVNMimeTypeProp is the regular property name overriding content
// sniffing when present.
const SVNMimeTypeProp = "svn:mime-type"

// IsBinary reports whether content should be treated as binary.
// mimeType is the effective svn:mime-type property value, or empty if
// unset; when set, it alone decides: any non-"text/"-prefixed type is
// binary and no sniffing happens. head is a content prefix (a few
// hundred bytes suffice) used to sniff when mimeType is unset.
func IsBinary(mimeType string, head []byte) bool {
	if mimeType != "" {
		return !strings.HasPrefix(mimeType, "text/")
	}
	if len(head) == 0 {
		return false
	}
	if filetype.IsImage(head) || filetype.IsVideo(head) || filetype.IsArchive(head) || filetype.IsAudio(head) {
		return true
	}
	if filetype.IsDocument(head) {
		return true
	}
	return containsNulByte(head)
}

// containsNulByte is the classic text-file heuristic fallback for
// content filetype's signature table does not recognize (plain
// source, config files, etc. all sniff as "unknown" to filetype).
func containsNulByte(head []byte) bool {
	for _, b := range head {
		if b == 0 {
			return true
		}
	}
	return false
}

// EffectiveMimeType picks the winning svn:mime-type for this install:
// prefer the freshly supplied property unless it conflicted, in which
// case keep the current working-copy value.
func EffectiveMimeType(freshValue string, freshConflicted bool, currentValue string) string {
	if freshValue != "" && !freshConflicted {
		return freshValue
	}
	return currentValue
}
