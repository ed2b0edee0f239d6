// Package editor implements the update/checkout/switch callback state
// machine driven by an external delta sender.
package editor

import (
	"errors"
	"fmt"
	"path"

	"github.com/sirupsen/logrus"

	"github.com/fernvc/wcedit/wc"
)

// Mode selects which of the three operations this session performs.
type Mode int

const (
	ModeUpdate Mode = iota
	ModeCheckout
	ModeSwitch
)

func (m Mode) String() string {
	switch m {
	case ModeCheckout:
		return "checkout"
	case ModeSwitch:
		return "switch"
	default:
		return "update"
	}
}

// sessionState tracks EditSession's lifecycle.
type sessionState int

const (
	stateCreated sessionState = iota
	stateRootOpened
	stateClosing
	stateClosed
)

// Errors surfaced by the protocol layer.
var (
	ErrEntryNotFound          = errors.New("editor: entry not found")
	ErrEntryMissingURL        = errors.New("editor: entry missing url")
	ErrWCObstructedUpdate     = errors.New("editor: working copy obstructed")
	ErrWCNotDirectory         = errors.New("editor: path is not a versioned directory")
	ErrNotSinglePathComponent = errors.New("editor: not a single path component")
	ErrUnsupportedFeature     = errors.New("editor: unsupported feature")
	ErrBadFilename            = errors.New("editor: bad filename")
	ErrProtocol               = errors.New("editor: protocol violation")
)

// Options are the editor factory inputs.
type Options struct {
	Anchor         string
	Target         string
	TargetRevision int64
	Mode           Mode
	AncestorURL    string // checkout only
	SwitchURL      string // switch only
	Recurse        bool
}

// Installer performs three-way reconciliation for one file close and
// one directory's accumulated regular property changes; implemented
// by package installer. Kept as an interface here so the callback
// state machine can be exercised and tested independently of the
// installer's filesystem algorithm.
type Installer interface {
	InstallFile(input FileInstall) error
	InstallDirProps(input DirInstall) error
}

// FileInstall is everything the installer needs to reconcile one file
// close.
type FileInstall struct {
	DirPath         string
	Name            string
	NewRevision     int64
	NewTextBasePath string // "" => no text change
	Props           []PropChange
	PropsDefinitive bool
	OverrideURL     string
}

// DirInstall is everything the installer needs to merge one
// directory's accumulated regular property changes at close-directory.
type DirInstall struct {
	DirPath string
	Props   []PropChange
}

// PropChange is one accumulated change-{dir,file}-prop call. A nil
// Value means delete.
type PropChange struct {
	Name  string
	Value *string
}

// EditSession drives one checkout/update/switch from open-root through
// close-edit.
type EditSession struct {
	opts      Options
	installer Installer
	admin     func(dirPath string) *wc.AdminArea
	log       *logrus.Entry

	state          sessionState
	targetRevSet   bool
	root           *DirScope
	revisionBumped map[string]bool
}

// NewEditSession constructs a session. admin resolves a directory path
// to its AdminArea; installer is consulted at every file close.
func NewEditSession(opts Options, installer Installer, admin func(string) *wc.AdminArea, log *logrus.Entry) *EditSession {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &EditSession{
		opts:           opts,
		installer:      installer,
		admin:          admin,
		log:            log.WithField("mode", opts.Mode.String()),
		revisionBumped: make(map[string]bool),
	}
}

// SetTargetRevision must be called at most once, before any scope is
// opened.
func (s *EditSession) SetTargetRevision(rev int64) error {
	if s.state != stateCreated {
		return fmt.Errorf("%w: set-target-revision after open-root", ErrProtocol)
	}
	if s.targetRevSet {
		return fmt.Errorf("%w: set-target-revision called twice", ErrProtocol)
	}
	s.opts.TargetRevision = rev
	s.targetRevSet = true
	return nil
}

// OpenRoot opens the root DirScope. May be called at most once.
func (s *EditSession) OpenRoot(baseRev int64) (*DirScope, error) {
	if s.state != stateCreated {
		return nil, fmt.Errorf("%w: open-root called more than once", ErrProtocol)
	}
	s.state = stateRootOpened
	s.root = newDirScope(s, nil, s.opts.Anchor, baseRev)
	s.log.WithField("base-rev", baseRev).Debug("open-root")
	return s.root, nil
}

// CloseEdit is terminal for the session and must only be called once
// every scope has closed. For updates and switches it recursively
// bumps every entry under anchor/target to the target revision,
// rewriting URLs for a switch.
func (s *EditSession) CloseEdit() error {
	if s.root != nil && s.root.refcount != 0 {
		return fmt.Errorf("%w: close-edit with open scopes", ErrProtocol)
	}
	if s.opts.Mode == ModeUpdate || s.opts.Mode == ModeSwitch {
		newBaseURL := ""
		if s.opts.Mode == ModeSwitch {
			newBaseURL = s.opts.SwitchURL
		}
		if err := s.BumpRevisions(s.opts.Anchor, newBaseURL); err != nil {
			return fmt.Errorf("editor: close-edit: %w", err)
		}
	}
	s.state = stateClosed
	s.log.WithField("target-rev", s.opts.TargetRevision).Debug("close-edit")
	return nil
}

// BumpRevisions recursively sets every entry's revision under dirPath
// to the session's target revision, optionally rewriting URLs beneath
// newBaseURL (non-empty on a switch). Each directory is only visited
// once per session.
func (s *EditSession) BumpRevisions(dirPath string, newBaseURL string) error {
	if s.revisionBumped[dirPath] {
		return nil
	}
	area := s.admin(dirPath)
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	for name, entry := range entries {
		entry.Revision = s.opts.TargetRevision
		if newBaseURL != "" {
			if name == wc.ThisDir {
				entry.URL = newBaseURL
			} else {
				entry.URL = newBaseURL + "/" + name
			}
		}
		if entry.Kind == wc.KindDir && name != wc.ThisDir {
			childURL := ""
			if newBaseURL != "" {
				childURL = newBaseURL + "/" + name
			}
			if err := s.BumpRevisions(path.Join(dirPath, name), childURL); err != nil {
				return err
			}
		}
	}
	s.revisionBumped[dirPath] = true
	return area.WriteEntries(entries)
}

// AbortEdit releases any resources the session owns mid-edit after a
// callback error.
func (s *EditSession) AbortEdit() {
	s.state = stateClosed
	s.log.Warn("edit aborted")
}
