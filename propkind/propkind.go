// Package propkind classifies a versioned property name by its storage
// destination. The same classifier is shared between the update editor's
// change-prop routing (editor.DirScope/FileScope) and the file installer's
// property partitioning step, so that both always agree on where a given
// property name lands.
package propkind

import "strings"

// Kind is the storage destination for one property name.
type Kind int

const (
	// Regular properties are queued for merge against pristine/working
	// property lists and only take effect at scope close.
	Regular Kind = iota
	// WC properties belong in the working-copy property store (never
	// versioned, never merged). The installer writes those that reach it
	// with a file install; the editor's change-prop callbacks only log
	// them and store nothing.
	WC
	// Entry properties are stored immediately as an attribute on the
	// entry record itself, after stripping the prefix.
	Entry
)

const (
	wcPrefix    = "wc:"
	entryPrefix = "entry:"
)

// Classify returns the Kind for a property name and, for Entry and WC
// properties, the name with its routing prefix stripped.
func Classify(name string) (Kind, string) {
	if strings.HasPrefix(name, wcPrefix) {
		return WC, strings.TrimPrefix(name, wcPrefix)
	}
	if strings.HasPrefix(name, entryPrefix) {
		return Entry, strings.TrimPrefix(name, entryPrefix)
	}
	return Regular, name
}

func (k Kind) String() string {
	switch k {
	case Regular:
		return "regular"
	case WC:
		return "wc"
	case Entry:
		return "entry"
	default:
		return "unknown"
	}
}
