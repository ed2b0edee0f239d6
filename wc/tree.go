package wc

import (
	"os"
	"strings"
)

// Tree mirrors the versioned shape of a working copy (which paths are
// known, and whether each is a file or a directory), independent of
// what currently sits on disk. Callers can consult it to detect
// obstructions: incoming adds/opens whose on-disk reality disagrees
// with what the edit expects.
type Tree struct {
	root *treeNode
}

type treeNode struct {
	name     string
	kind     Kind
	isRoot   bool
	children []*treeNode
}

// NewTree returns an empty tree rooted at the working copy root.
func NewTree() *Tree {
	return &Tree{root: &treeNode{isRoot: true, kind: KindDir}}
}

// Add records path (slash-separated, relative to the working copy
// root) as versioned with the given kind. Intermediate components are
// created as directories if not already present.
func (t *Tree) Add(path string, kind Kind) {
	t.root.add(splitPath(path), kind)
}

func (n *treeNode) add(parts []string, kind Kind) {
	if len(parts) == 0 {
		return
	}
	head, rest := parts[0], parts[1:]
	for _, c := range n.children {
		if c.name == head {
			if len(rest) == 0 {
				c.kind = kind
			} else {
				c.add(rest, kind)
			}
			return
		}
	}
	childKind := KindDir
	if len(rest) == 0 {
		childKind = kind
	}
	child := &treeNode{name: head, kind: childKind}
	n.children = append(n.children, child)
	if len(rest) > 0 {
		child.add(rest, kind)
	}
}

// Remove deletes path and everything beneath it.
func (t *Tree) Remove(path string) {
	t.root.remove(splitPath(path))
}

func (n *treeNode) remove(parts []string) {
	if len(parts) == 0 {
		return
	}
	head, rest := parts[0], parts[1:]
	for i, c := range n.children {
		if c.name != head {
			continue
		}
		if len(rest) == 0 {
			n.children[i] = n.children[len(n.children)-1]
			n.children = n.children[:len(n.children)-1]
			return
		}
		c.remove(rest)
		return
	}
}

// Lookup returns the recorded kind of path and whether it is known.
func (t *Tree) Lookup(path string) (Kind, bool) {
	return t.root.lookup(splitPath(path))
}

func (n *treeNode) lookup(parts []string) (Kind, bool) {
	if len(parts) == 0 {
		return n.kind, true
	}
	head, rest := parts[0], parts[1:]
	for _, c := range n.children {
		if c.name == head {
			return c.lookup(rest)
		}
	}
	return 0, false
}

// Paths returns every versioned path under dir (or every versioned
// path, if dir is empty), files and directories alike.
func (t *Tree) Paths(dir string) []string {
	n := t.root
	if dir != "" {
		for _, p := range splitPath(dir) {
			found := false
			for _, c := range n.children {
				if c.name == p {
					n = c
					found = true
					break
				}
			}
			if !found {
				return nil
			}
		}
	}
	return n.collect(dir)
}

func (n *treeNode) collect(prefix string) []string {
	var out []string
	for _, c := range n.children {
		path := c.name
		if prefix != "" {
			path = prefix + "/" + c.name
		}
		out = append(out, path)
		if c.kind == KindDir {
			out = append(out, c.collect(path)...)
		}
	}
	return out
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// StatObstruction reports whether adding an entry of kind at path
// would be obstructed by whatever currently sits on disk at fsPath:
// anything other than "nothing there" or "an empty directory" when
// kind is a directory, or "nothing there" when kind is a file,
// constitutes an obstruction.
func StatObstruction(fsPath string, kind Kind) (bool, error) {
	info, err := os.Lstat(fsPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if kind == KindDir {
		if !info.IsDir() {
			return true, nil
		}
		entries, err := os.ReadDir(fsPath)
		if err != nil {
			return false, err
		}
		return len(entries) > 0, nil
	}
	return true, nil
}
