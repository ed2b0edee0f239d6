package editor

import (
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/fernvc/wcedit/propkind"
	"github.com/fernvc/wcedit/wc"
)

type scopeState int

const (
	scopeOpened scopeState = iota
	scopeClosing
	scopeClosed
)

// DirScope is the callback-driven handle for one directory under edit.
// Its reference count starts at 1 for its own open; opening a child
// scope increments it, closing a child decrements it, and it may only
// transition to Closed once the count reaches zero.
type DirScope struct {
	session  *EditSession
	parent   *DirScope
	path     string
	baseRev  int64
	state    scopeState
	refcount int
	propAcc  []PropChange
	log      *logrus.Entry
}

func newDirScope(s *EditSession, parent *DirScope, dirPath string, baseRev int64) *DirScope {
	d := &DirScope{
		session:  s,
		parent:   parent,
		path:     dirPath,
		baseRev:  baseRev,
		refcount: 1,
		log:      s.log.WithField("dir", dirPath),
	}
	return d
}

func (d *DirScope) admin() *wc.AdminArea { return d.session.admin(d.path) }

// DeleteEntry journals a deletion and immediately runs the parent's
// log.
func (d *DirScope) DeleteEntry(name string, rev int64) error {
	if d.state != scopeOpened {
		return fmt.Errorf("%w: delete-entry on closed directory %s", ErrProtocol, d.path)
	}
	area := d.admin()
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	if _, ok := entries[name]; !ok {
		return fmt.Errorf("%w: %s/%s", ErrEntryNotFound, d.path, name)
	}
	j, dir := area.NewJournal()
	j.DeleteEntry(name)
	if err := j.Flush(dir); err != nil {
		return err
	}
	if err := area.Replay(newLogApplier(area)); err != nil {
		return err
	}
	d.log.WithField("name", name).WithField("rev", rev).Debug("delete-entry")
	return nil
}

// openChildDir allocates a child scope and increments this DirScope's
// reference count.
func (d *DirScope) openChildDir(name string, baseRev int64) (*DirScope, error) {
	if d.state != scopeOpened {
		return nil, fmt.Errorf("%w: open/add-directory on closed directory %s", ErrProtocol, d.path)
	}
	d.refcount++
	child := newDirScope(d.session, d, path.Join(d.path, name), baseRev)
	return child, nil
}

// AddDirectory opens a child scope for a directory that must not yet
// exist on disk; obstruction is the caller's (wc.Tree-backed)
// responsibility before invoking this.
func (d *DirScope) AddDirectory(name string, obstructed bool) (*DirScope, error) {
	if obstructed {
		return nil, fmt.Errorf("%w: add-directory %s/%s", ErrWCObstructedUpdate, d.path, name)
	}
	return d.openChildDir(name, 0)
}

// OpenDirectory opens a child scope for an existing versioned
// directory.
func (d *DirScope) OpenDirectory(name string, baseRev int64, exists bool) (*DirScope, error) {
	if !exists {
		return nil, fmt.Errorf("%w: open-directory %s/%s", ErrEntryNotFound, d.path, name)
	}
	return d.openChildDir(name, baseRev)
}

// openChildFile allocates a FileScope and increments the refcount.
func (d *DirScope) openChildFile(name string) (*FileScope, error) {
	if d.state != scopeOpened {
		return nil, fmt.Errorf("%w: open/add-file on closed directory %s", ErrProtocol, d.path)
	}
	d.refcount++
	return newFileScope(d, name), nil
}

// AddFile opens a FileScope for a file that must not yet exist.
func (d *DirScope) AddFile(name string, obstructed bool) (*FileScope, error) {
	if obstructed {
		return nil, fmt.Errorf("%w: add-file %s/%s", ErrWCObstructedUpdate, d.path, name)
	}
	return d.openChildFile(name)
}

// OpenFile opens a FileScope for an existing versioned file.
func (d *DirScope) OpenFile(name string, exists bool) (*FileScope, error) {
	if !exists {
		return nil, fmt.Errorf("%w: open-file %s/%s", ErrEntryNotFound, d.path, name)
	}
	return d.openChildFile(name)
}

// ChangeDirProp routes a property change by prefix: entry: properties
// are stored immediately on the directory's this-dir entry, wc:
// properties are only logged and are not stored anywhere, and
// everything else is queued on the scope's changelist for merge at
// close.
func (d *DirScope) ChangeDirProp(name string, value *string) error {
	kind, stripped := propkind.Classify(name)
	switch kind {
	case propkind.WC:
		return d.storeWCProp(stripped, value)
	case propkind.Entry:
		return d.storeEntryAttr(stripped, value)
	default:
		d.propAcc = append(d.propAcc, PropChange{Name: name, Value: value})
		return nil
	}
}

// storeWCProp logs a wc: property change; nothing is written to disk.
func (d *DirScope) storeWCProp(name string, value *string) error {
	d.log.WithField("wc-prop", name).Debug("change-dir-prop (wc:)")
	return nil
}

func (d *DirScope) storeEntryAttr(name string, value *string) error {
	area := d.admin()
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[wc.ThisDir]
	if !ok {
		entry = &wc.Entry{Name: wc.ThisDir, Kind: wc.KindDir}
		entries[wc.ThisDir] = entry
	}
	if entry.Attrs == nil {
		entry.Attrs = map[string]string{}
	}
	if value == nil {
		delete(entry.Attrs, name)
	} else {
		entry.Attrs[name] = *value
	}
	return area.WriteEntries(entries)
}

// closeChild decrements the parent's refcount; called by a child
// FileScope/DirScope on close.
func (d *DirScope) closeChild() {
	d.refcount--
}

// CloseDirectory flushes accumulated regular property changes, bumps
// the directory's entry revision, and decrements its parent's
// reference count.
func (d *DirScope) CloseDirectory() error {
	if d.refcount != 1 {
		return fmt.Errorf("%w: close-directory with %d outstanding children on %s", ErrProtocol, d.refcount-1, d.path)
	}
	d.state = scopeClosing

	if len(d.propAcc) > 0 && d.session.installer != nil {
		input := DirInstall{DirPath: d.path, Props: d.propAcc}
		if err := d.session.installer.InstallDirProps(input); err != nil {
			return fmt.Errorf("editor: installing directory properties for %s: %w", d.path, err)
		}
	}

	area := d.admin()
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[wc.ThisDir]
	if !ok {
		entry = &wc.Entry{Name: wc.ThisDir, Kind: wc.KindDir}
		entries[wc.ThisDir] = entry
	}
	entry.Revision = d.session.opts.TargetRevision
	if err := area.WriteEntries(entries); err != nil {
		return err
	}

	d.state = scopeClosed
	d.refcount = 0
	if d.parent != nil {
		d.parent.closeChild()
	}
	d.log.Debug("close-directory")
	return nil
}

// FileScope is the callback-driven handle for one file under edit.
type FileScope struct {
	parent          *DirScope
	name            string
	state           scopeState
	textChanged     bool
	newTextBasePath string
	propAcc         []PropChange
	deltaApplied    bool
	log             *logrus.Entry
}

func newFileScope(parent *DirScope, name string) *FileScope {
	return &FileScope{parent: parent, name: name, log: parent.log.WithField("file", name)}
}

// ChangeFileProp routes a property change exactly like
// DirScope.ChangeDirProp, but against this file's entry.
func (f *FileScope) ChangeFileProp(name string, value *string) error {
	kind, stripped := propkind.Classify(name)
	switch kind {
	case propkind.WC:
		f.log.WithField("wc-prop", stripped).Debug("change-file-prop (wc:)")
		return nil
	case propkind.Entry:
		return f.storeEntryAttr(stripped, value)
	default:
		f.propAcc = append(f.propAcc, PropChange{Name: name, Value: value})
		return nil
	}
}

func (f *FileScope) storeEntryAttr(name string, value *string) error {
	area := f.parent.admin()
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	entry, ok := entries[f.name]
	if !ok {
		entry = &wc.Entry{Name: f.name, Kind: wc.KindFile}
		entries[f.name] = entry
	}
	if entry.Attrs == nil {
		entry.Attrs = map[string]string{}
	}
	if value == nil {
		delete(entry.Attrs, name)
	} else {
		entry.Attrs[name] = *value
	}
	return area.WriteEntries(entries)
}

// MarkDeltaApplied records that apply-textdelta ran; CloseFile uses
// this to decide whether a text change needs installing.
func (f *FileScope) MarkDeltaApplied(newTextBasePath string) {
	f.deltaApplied = true
	f.textChanged = true
	f.newTextBasePath = newTextBasePath
}

// CloseFile is terminal for the scope: it hands accumulated text and
// property changes to the installer and decrements the parent's
// reference count.
func (f *FileScope) CloseFile(rev int64, overrideURL string) error {
	if f.state != scopeOpened {
		return fmt.Errorf("%w: close-file called twice on %s", ErrProtocol, f.name)
	}
	f.state = scopeClosed

	input := FileInstall{
		DirPath:         f.parent.path,
		Name:            f.name,
		NewRevision:     rev,
		NewTextBasePath: f.newTextBasePath,
		Props:           f.propAcc,
		PropsDefinitive: false,
		OverrideURL:     overrideURL,
	}
	if f.parent.session.installer != nil {
		if err := f.parent.session.installer.InstallFile(input); err != nil {
			return fmt.Errorf("editor: installing %s/%s: %w", f.parent.path, f.name, err)
		}
	}

	f.parent.closeChild()
	f.log.Debug("close-file")
	return nil
}
