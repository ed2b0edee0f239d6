// Package installer implements the three-way file-close reconciliation
// algorithm: merging incoming properties against
// pristine/working property lists, moving in new text-base bytes, and
// reconciling the text/binary × locally-modified matrix via the log
// journal so the whole install is crash-safe and idempotent.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/fernvc/wcedit/editor"
	"github.com/fernvc/wcedit/installer/difftool"
	"github.com/fernvc/wcedit/installer/mime"
	"github.com/fernvc/wcedit/journal"
	"github.com/fernvc/wcedit/propkind"
	"github.com/fernvc/wcedit/wc"
)

// Installer performs the three-way text/property reconciliation for
// every file close the editor hands it, implementing editor.Installer.
type Installer struct {
	admin   func(dirPath string) *wc.AdminArea
	differ  difftool.Differ
	patcher difftool.Patcher
	log     *logrus.Entry
}

// New constructs an Installer. admin resolves a directory path to its
// AdminArea; differ/patcher are the external tools used for the
// locally-modified-text hard case.
func New(admin func(string) *wc.AdminArea, differ difftool.Differ, patcher difftool.Patcher, log *logrus.Entry) *Installer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Installer{admin: admin, differ: differ, patcher: patcher, log: log}
}

var _ editor.Installer = (*Installer)(nil)

// InstallFile runs the full three-way reconciliation for one file
// close.
func (inst *Installer) InstallFile(input editor.FileInstall) (err error) {
	area := inst.admin(input.DirPath)
	applier := newLogApplier(area)

	// Step 1: acquire the directory lock; all mutation flows through
	// the log so replay is idempotent.
	unlock, err := area.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := area.Replay(applier); err != nil {
		return fmt.Errorf("installer: replaying pending log for %s: %w", input.DirPath, err)
	}

	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	entry := entries[input.Name]
	if entry == nil {
		entry = &wc.Entry{Name: input.Name, Kind: wc.KindFile}
	}

	// Step 2: partition properties by prefix.
	var entryProps, wcProps, regularProps []editor.PropChange
	for _, p := range input.Props {
		kind, stripped := propkind.Classify(p.Name)
		switch kind {
		case propkind.Entry:
			entryProps = append(entryProps, editor.PropChange{Name: stripped, Value: p.Value})
		case propkind.WC:
			wcProps = append(wcProps, editor.PropChange{Name: stripped, Value: p.Value})
		default:
			regularProps = append(regularProps, p)
		}
	}

	workingProps, err := loadPropMap(area.PropsPath(input.Name))
	if err != nil {
		return err
	}

	j, logDir := area.NewJournal()

	// Step 3: merge regular properties.
	propConflicts, err := inst.mergeRegularProps(area, j, fileTarget(input.Name), regularProps, input.PropsDefinitive)
	if err != nil {
		return fmt.Errorf("installer: merging properties for %s: %w", input.Name, err)
	}

	// Step 4: entry-props writes.
	entryAttrs := map[string]string{}
	for _, p := range entryProps {
		if p.Value != nil {
			entryAttrs[p.Name] = *p.Value
		}
	}
	if len(entryAttrs) > 0 {
		j.ModifyEntry(input.Name, entryAttrs)
	}

	textChanged := input.NewTextBasePath != ""
	workingPath := filepath.Join(area.Dir(), input.Name)
	locallyModified := false
	if textChanged {
		locallyModified, err = filesDiffer(area.TextBasePath(input.Name), workingPath)
		if err != nil {
			return fmt.Errorf("installer: comparing working file %s against its text-base: %w", input.Name, err)
		}
	}

	if textChanged {
		// Step 5: classify text/binary, resolve eol-style/keywords.
		eolStyle := effectiveProp(propConflicts, regularProps, workingProps, "svn:eol-style")
		keywordsSpec := effectiveProp(propConflicts, regularProps, workingProps, "svn:keywords")
		mimeType := effectiveProp(propConflicts, regularProps, workingProps, mime.SVNMimeTypeProp)

		head, err := readHead(input.NewTextBasePath, 512)
		if err != nil {
			return err
		}
		binary := mime.IsBinary(mimeType, head)

		kw := Keywords{
			Revision: entryAttrs["committed-rev"],
			Date:     entryAttrs["committed-date"],
			Author:   entryAttrs["last-author"],
			URL:      effectiveURL(input.OverrideURL, entry.URL),
		}

		// Step 6: move staged bytes into tmp/text-base (filesystem
		// rename, outside the log since subsequent log commands need
		// it to already be under the parent).
		tmpRel := filepath.Join(wc.AdminDirName, "tmp", "text-base", input.Name+".svn-base")
		if err := os.Rename(input.NewTextBasePath, filepath.Join(area.Dir(), tmpRel)); err != nil {
			return fmt.Errorf("installer: staging text-base for %s: %w", input.Name, err)
		}

		textBaseRel := filepath.Join(wc.AdminDirName, "text-base", input.Name+".svn-base")
		// Step 7: rename tmp/text-base/F onto text-base/F.
		j.Mv(tmpRel, textBaseRel)

		cpOpts := journal.CpOptions{EOLStyle: eolStyle, Expand: keywordsSpec != "", Revision: kw.Revision, Date: kw.Date, Author: kw.Author, URL: kw.URL}

		// Step 8: text/binary x locally-modified matrix.
		switch {
		case !locallyModified || binary && !fileExists(workingPath):
			j.Cp(textBaseRel, input.Name, cpOpts)
		case binary:
			j.Mv(input.Name, fmt.Sprintf("%s.orig.%d", input.Name, input.NewRevision))
			j.Cp(textBaseRel, input.Name, journal.CpOptions{})
		case !fileExists(workingPath):
			j.Cp(textBaseRel, input.Name, cpOpts)
		default:
			if err := inst.reconcileTextConflict(area, j, input.Name, eolStyle, keywordsSpec != "", kw); err != nil {
				return fmt.Errorf("installer: reconciling local modifications to %s: %w", input.Name, err)
			}
		}

		// Step 9: make the text-base read-only.
		j.Readonly(textBaseRel)
	}

	// Step 10: bump kind/revision, and (only if not locally modified /
	// no property conflicts) the timestamp sentinels.
	bumpAttrs := map[string]string{"kind": "file", "revision": fmt.Sprintf("%d", input.NewRevision)}
	if textChanged && !locallyModified {
		bumpAttrs["text-time"] = "working"
	}
	if len(propConflicts) == 0 {
		bumpAttrs["prop-time"] = "working"
	}
	j.ModifyEntry(input.Name, bumpAttrs)

	// Step 11: override URL.
	if input.OverrideURL != "" {
		j.ModifyEntry(input.Name, map[string]string{"url": input.OverrideURL})
	}

	// Step 12: flush, sync, replay; install wc-props after the log
	// completes, then release the lock (deferred above).
	if err := j.Flush(logDir); err != nil {
		return err
	}
	if err := area.Replay(applier); err != nil {
		return err
	}
	if err := inst.installWCProps(area, input.Name, wcProps); err != nil {
		return err
	}

	inst.log.WithField("dir", input.DirPath).WithField("file", input.Name).WithField("rev", input.NewRevision).Debug("installed")
	return nil
}

// propTarget names the on-disk locations one property merge reads its
// pristine/working lists from and stages its merged result to; it lets
// mergeRegularProps serve both per-file and per-directory property
// stores without knowing which it is merging.
type propTarget struct {
	TmpWorking    string // dir-relative staging slot for the merged working list
	TmpPristine   string // dir-relative staging slot for the merged pristine list
	FinalWorking  string // dir-relative path to the existing and merged working list
	FinalPristine string // dir-relative path to the existing and merged pristine list
}

// fileTarget is the property-merge target for a versioned file.
func fileTarget(name string) propTarget {
	return propTarget{
		TmpWorking:    filepath.Join(wc.AdminDirName, "tmp", "props-"+name),
		TmpPristine:   filepath.Join(wc.AdminDirName, "tmp", "prop-base-"+name),
		FinalWorking:  filepath.Join(wc.AdminDirName, "props", name),
		FinalPristine: filepath.Join(wc.AdminDirName, "prop-base", name+".svn-base"),
	}
}

// dirTarget is the property-merge target for a directory's own
// regular properties.
func dirTarget() propTarget {
	return propTarget{
		TmpWorking:    filepath.Join(wc.AdminDirName, "tmp", "dir-props"),
		TmpPristine:   filepath.Join(wc.AdminDirName, "tmp", "dir-prop-base"),
		FinalWorking:  filepath.Join(wc.AdminDirName, "dir-props"),
		FinalPristine: filepath.Join(wc.AdminDirName, "dir-prop-base"),
	}
}

// mergeRegularProps implements step 3: load pristine/working property
// lists, form or accept the diff, and stage the merged result via the
// same tmp-then-rename pattern the text-base uses, returning the set
// of property names that could not be merged because the working copy
// already has a local, divergent value.
func (inst *Installer) mergeRegularProps(area *wc.AdminArea, j *journal.Journal, target propTarget, diff []editor.PropChange, definitive bool) (map[string]bool, error) {
	pristine, err := loadPropMap(filepath.Join(area.Dir(), target.FinalPristine))
	if err != nil {
		return nil, err
	}
	working, err := loadPropMap(filepath.Join(area.Dir(), target.FinalWorking))
	if err != nil {
		return nil, err
	}

	changes := diff
	if definitive {
		targetMap := map[string]string{}
		for _, c := range diff {
			if c.Value != nil {
				targetMap[c.Name] = *c.Value
			}
		}
		changes = diffPropMaps(pristine, targetMap)
	}
	if len(changes) == 0 {
		return map[string]bool{}, nil
	}

	conflicts := map[string]bool{}
	mergedWorking := cloneMap(working)
	mergedPristine := cloneMap(pristine)
	for _, c := range changes {
		currentWorking, hasLocal := working[c.Name]
		currentPristine, hasPristine := pristine[c.Name]
		locallyModified := hasLocal && (!hasPristine || currentWorking != currentPristine)
		if locallyModified {
			conflicts[c.Name] = true
			continue
		}
		if c.Value == nil {
			delete(mergedWorking, c.Name)
			delete(mergedPristine, c.Name)
		} else {
			mergedWorking[c.Name] = *c.Value
			mergedPristine[c.Name] = *c.Value
		}
	}

	if err := writePropMap(filepath.Join(area.Dir(), target.TmpWorking), mergedWorking); err != nil {
		return nil, err
	}
	if err := writePropMap(filepath.Join(area.Dir(), target.TmpPristine), mergedPristine); err != nil {
		return nil, err
	}
	j.Mv(target.TmpWorking, target.FinalWorking)
	j.Mv(target.TmpPristine, target.FinalPristine)

	return conflicts, nil
}

// InstallDirProps merges a directory's accumulated regular property
// changes against its working/pristine property sets and writes log
// commands installing the merged result, stamping a property
// timestamp only when nothing conflicted.
func (inst *Installer) InstallDirProps(input editor.DirInstall) error {
	area := inst.admin(input.DirPath)
	applier := newLogApplier(area)

	unlock, err := area.Lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := area.Replay(applier); err != nil {
		return fmt.Errorf("installer: replaying pending log for %s: %w", input.DirPath, err)
	}

	j, logDir := area.NewJournal()

	propConflicts, err := inst.mergeRegularProps(area, j, dirTarget(), input.Props, false)
	if err != nil {
		return fmt.Errorf("installer: merging directory properties for %s: %w", input.DirPath, err)
	}
	if len(propConflicts) == 0 {
		j.ModifyEntry(wc.ThisDir, map[string]string{"prop-time": "working"})
	}

	if err := j.Flush(logDir); err != nil {
		return err
	}
	if err := area.Replay(applier); err != nil {
		return err
	}

	inst.log.WithField("dir", input.DirPath).Debug("installed directory properties")
	return nil
}

// reconcileTextConflict implements step 8's hard case: a text file
// with local modifications and a working file present. It produces
// LF-normalized, keyword-contracted copies of both text-bases, diffs
// them externally, and arranges for the resulting patch to be applied
// against either the working file directly (no translation needed) or
// a translated staging copy.
func (inst *Installer) reconcileTextConflict(area *wc.AdminArea, j *journal.Journal, name string, eolStyle string, expandKeywords bool, kw Keywords) error {
	oldBytes, err := os.ReadFile(area.TextBasePath(name))
	if err != nil {
		return fmt.Errorf("reading current text-base: %w", err)
	}
	newBytes, err := os.ReadFile(area.TmpTextBasePath(name))
	if err != nil {
		return fmt.Errorf("reading staged text-base: %w", err)
	}

	translatedOld := ContractKeywords(NormalizeEOL(oldBytes))
	translatedNew := ContractKeywords(NormalizeEOL(newBytes))

	oldTmp := filepath.Join(area.Dir(), wc.AdminDirName, "tmp", name+".oldbase")
	newTmp := filepath.Join(area.Dir(), wc.AdminDirName, "tmp", name+".newbase")
	if err := os.WriteFile(oldTmp, translatedOld, 0644); err != nil {
		return err
	}
	if err := os.WriteFile(newTmp, translatedNew, 0644); err != nil {
		return err
	}
	defer os.Remove(oldTmp)
	defer os.Remove(newTmp)

	patch, err := inst.differ.Diff(context.Background(), oldTmp, newTmp)
	if err != nil {
		return fmt.Errorf("diffing text-bases: %w", err)
	}

	patchRel := filepath.Join(wc.AdminDirName, "tmp", name+".patch")
	if err := os.WriteFile(filepath.Join(area.Dir(), patchRel), patch, 0644); err != nil {
		return err
	}

	rejectRel := name + ".rej"
	noTranslation := eolStyle == "" && !expandKeywords

	patchArgs := inst.patcher.Tool
	if noTranslation {
		args, err := patchArgs.Resolve(map[string]string{"target": name, "reject": rejectRel})
		if err != nil {
			return err
		}
		j.RunCmd(args[0], args[1:], patchRel)
	} else {
		tmpWorkingRel := filepath.Join(wc.AdminDirName, "tmp", name+".working")
		j.Cp(name, tmpWorkingRel, journal.CpOptions{EOLStyle: "LF"})
		args, err := patchArgs.Resolve(map[string]string{"target": tmpWorkingRel, "reject": rejectRel})
		if err != nil {
			return err
		}
		j.RunCmd(args[0], args[1:], patchRel)
		j.Cp(tmpWorkingRel, name, journal.CpOptions{EOLStyle: eolStyle, Expand: expandKeywords, Revision: kw.Revision, Date: kw.Date, Author: kw.Author, URL: kw.URL})
		j.Rm(tmpWorkingRel)
	}
	j.Rm(patchRel)
	j.DetectConflict(name, rejectRel)

	return nil
}

// installWCProps writes wc-properties directly (they are never
// versioned or merged, so they are not part of the log); only called
// after the log has fully replayed.
func (inst *Installer) installWCProps(area *wc.AdminArea, name string, wcProps []editor.PropChange) error {
	if len(wcProps) == 0 {
		return nil
	}
	path := filepath.Join(area.Dir(), wc.AdminDirName, "wc-props", name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	current, err := loadPropMap(path)
	if err != nil {
		return err
	}
	for _, p := range wcProps {
		if p.Value == nil {
			delete(current, p.Name)
		} else {
			current[p.Name] = *p.Value
		}
	}
	return writePropMap(path, current)
}

func effectiveProp(conflicts map[string]bool, diff []editor.PropChange, working map[string]string, name string) string {
	for _, c := range diff {
		if c.Name != name {
			continue
		}
		if conflicts[name] {
			break
		}
		if c.Value != nil {
			return *c.Value
		}
		return ""
	}
	return working[name]
}

func effectiveURL(overrideURL, entryURL string) string {
	if overrideURL != "" {
		return overrideURL
	}
	return entryURL
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func filesDiffer(a, b string) (bool, error) {
	aData, err := os.ReadFile(a)
	if os.IsNotExist(err) {
		return fileExists(b), nil
	}
	if err != nil {
		return false, err
	}
	bData, err := os.ReadFile(b)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return string(aData) != string(bData), nil
}

func readHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, n)
	read, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
