package wc

import "os"

// FSInspector implements Inspector directly against an AdminArea's
// on-disk layout: working files compared byte-for-byte against their
// text-base/prop-base pristine copies.
type FSInspector struct {
	Area *AdminArea
}

var _ Inspector = (*FSInspector)(nil)

func (f FSInspector) HasPropFile(name string) (bool, error) {
	return fileExists(f.Area.PropsPath(name)), nil
}

func (f FSInspector) PropsModified(name string) (bool, error) {
	return filesDiffer(f.Area.PropBasePath(name), f.Area.PropsPath(name))
}

func (f FSInspector) TextModified(name string) (bool, error) {
	return filesDiffer(f.Area.TextBasePath(name), f.Area.Dir()+"/"+name)
}

func (f FSInspector) RejectFilesExist(entry *Entry) (textReject, propReject bool, err error) {
	if entry.TextRejectFile != "" {
		textReject = fileExists(f.Area.Dir() + "/" + entry.TextRejectFile)
	}
	if entry.PropRejectFile != "" {
		propReject = fileExists(f.Area.Dir() + "/" + entry.PropRejectFile)
	}
	return textReject, propReject, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// filesDiffer reports whether a and b differ, treating a missing file
// on either side as "differs from whatever the other side holds" (a
// missing pristine copy means the working copy has no baseline yet).
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
