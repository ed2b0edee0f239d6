package wc

// Status classifies one dimension (text or property) of a versioned
// entry's local state.
type Status int

const (
	StatusNone Status = iota
	StatusNormal
	StatusModified
	StatusAdded
	StatusReplaced
	StatusDeleted
	StatusConflicted
)

func (s Status) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusModified:
		return "modified"
	case StatusAdded:
		return "added"
	case StatusReplaced:
		return "replaced"
	case StatusDeleted:
		return "deleted"
	case StatusConflicted:
		return "conflicted"
	default:
		return "none"
	}
}

// EntryStatus is the assembled text/prop classification for one entry.
type EntryStatus struct {
	Name string
	Text Status
	Prop Status
}

// Inspector answers the filesystem questions status assembly needs,
// kept separate from AdminArea so tests can fake local-modification
// state without touching disk.
type Inspector interface {
	// HasPropFile reports whether name has an on-disk working property
	// file at all (a file with no custom properties may have none).
	HasPropFile(name string) (bool, error)
	// PropsModified reports whether name's working property file
	// differs from its pristine prop-base.
	PropsModified(name string) (bool, error)
	// TextModified reports whether a versioned file's working text
	// differs from its pristine text-base. Only called for KindFile.
	TextModified(name string) (bool, error)
	// RejectFilesExist reports whether the text and/or prop reject
	// files recorded on entry still exist on disk.
	RejectFilesExist(entry *Entry) (textReject, propReject bool, err error)
}

// AssembleStatus classifies entry's text and property dimensions
//. Scheduled add/replace/delete overrides both
// dimensions — the prop dimension only when a property file exists —
// and a set conflicted flag with a still-present reject file overrides
// to conflicted on top of that.
func AssembleStatus(entry *Entry, insp Inspector) (EntryStatus, error) {
	st := EntryStatus{Name: entry.Name}

	hasPropFile, err := insp.HasPropFile(entry.Name)
	if err != nil {
		return st, err
	}
	if hasPropFile {
		modified, err := insp.PropsModified(entry.Name)
		if err != nil {
			return st, err
		}
		if modified {
			st.Prop = StatusModified
		} else {
			st.Prop = StatusNormal
		}
	}

	if entry.Kind == KindFile {
		modified, err := insp.TextModified(entry.Name)
		if err != nil {
			return st, err
		}
		if modified {
			st.Text = StatusModified
		} else {
			st.Text = StatusNormal
		}
	}

	switch entry.Schedule {
	case ScheduleAdd:
		st.Text = StatusAdded
		if hasPropFile {
			st.Prop = StatusAdded
		}
	case ScheduleReplace:
		st.Text = StatusReplaced
		if hasPropFile {
			st.Prop = StatusReplaced
		}
	case ScheduleDelete:
		st.Text = StatusDeleted
		if hasPropFile {
			st.Prop = StatusDeleted
		}
	}

	if entry.Conflicted {
		textReject, propReject, err := insp.RejectFilesExist(entry)
		if err != nil {
			return st, err
		}
		if textReject {
			st.Text = StatusConflicted
		}
		if propReject {
			st.Prop = StatusConflicted
		}
	}

	return st, nil
}

// WalkDirectory assembles status for every entry in one directory's
// entries map; it does not descend into subdirectories, which callers
// walk themselves. this-dir is keyed under path itself and is included
// only if not already added (as a child entry) by the parent's walk,
// preventing duplicate keys for the same path.
func WalkDirectory(path string, entries map[string]*Entry, insp Inspector, seen map[string]bool, out map[string]EntryStatus) error {
	for name, entry := range entries {
		key := path
		if name != ThisDir {
			key = joinStatusPath(path, name)
		}
		if seen[key] {
			continue
		}
		st, err := AssembleStatus(entry, insp)
		if err != nil {
			return err
		}
		out[key] = st
		seen[key] = true
	}
	return nil
}

func joinStatusPath(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}
