// Command wcedit drives checkout/update/switch/status against a local
// working-copy admin area, and renders a repository's node graph for
// operator debugging.
package main

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/fernvc/wcedit/config"
	"github.com/fernvc/wcedit/dag"
	"github.com/fernvc/wcedit/dagviz"
	"github.com/fernvc/wcedit/editor"
	"github.com/fernvc/wcedit/installer"
	"github.com/fernvc/wcedit/installer/difftool"
	"github.com/fernvc/wcedit/wc"
)

var version = "dev"

func main() {
	var (
		configFile  = kingpin.Flag("config", "Config file for wcedit.").Default("wcedit.yaml").Short('c').String()
		profileFlag = kingpin.Flag("profile", "Enable CPU profiling for the duration of the command.").Bool()
		debug       = kingpin.Flag("debug", "Enable debug-level logging.").Bool()
	)

	checkoutCmd := kingpin.Command("checkout", "Check out a fresh working copy from the demo repository's latest revision.")
	checkoutPath := checkoutCmd.Arg("path", "Destination directory.").Required().String()
	checkoutURL := checkoutCmd.Flag("url", "Ancestor URL to record on the checked-out tree.").Default("file:///repo").String()

	updateCmd := kingpin.Command("update", "Update an existing working copy to the demo repository's latest revision.")
	updatePath := updateCmd.Arg("path", "Working copy directory.").Required().String()

	switchCmd := kingpin.Command("switch", "Switch an existing working copy to a new URL.")
	switchPath := switchCmd.Arg("path", "Working copy directory.").Required().String()
	switchURL := switchCmd.Arg("url", "New URL to switch to.").Required().String()

	statusCmd := kingpin.Command("status", "Print the text/property status of every versioned entry.")
	statusPath := statusCmd.Arg("path", "Working copy directory.").Required().String()
	statusVerbose := statusCmd.Flag("verbose", "Also list entries found on disk but not under version control.").Short('v').Bool()

	dagRenderCmd := kingpin.Command("dag-render", "Render the demo repository's node graph for operator debugging.")
	dagRenderOut := dagRenderCmd.Arg("outfile", "Output file: .dot source, or a PNG with --png.").Required().String()
	dagRenderPNG := dagRenderCmd.Flag("png", "Rasterize to PNG instead of writing dot source.").Bool()
	dagRenderPred := dagRenderCmd.Flag("predecessors", "Also draw predecessor edges.").Bool()

	kingpin.UsageTemplate(kingpin.CompactUsageTemplate).Version(version).Author("wcedit maintainers")
	kingpin.CommandLine.Help = "Drives checkout/update/switch/status against a working copy admin area.\n"
	kingpin.HelpFlag.Short('h')
	cmd := kingpin.Parse()

	if *profileFlag {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	logger := logrus.New()
	logger.Level = logrus.InfoLevel
	if *debug {
		logger.Level = logrus.DebugLevel
	}
	log := logrus.NewEntry(logger)

	cfg, err := config.LoadConfigFile(*configFile)
	if err != nil {
		log.Debugf("no usable config at %s (%v), falling back to built-in defaults", *configFile, err)
		cfg, err = config.Unmarshal(nil)
		if err != nil {
			log.WithError(err).Fatal("building default configuration")
		}
	}

	var runErr error
	switch cmd {
	case checkoutCmd.FullCommand():
		runErr = runCheckout(*checkoutPath, *checkoutURL, cfg, log)
	case updateCmd.FullCommand():
		runErr = runUpdate(*updatePath, cfg, log)
	case switchCmd.FullCommand():
		runErr = runSwitch(*switchPath, *switchURL, cfg, log)
	case statusCmd.FullCommand():
		runErr = runStatus(*statusPath, *statusVerbose)
	case dagRenderCmd.FullCommand():
		runErr = runDagRender(*dagRenderOut, *dagRenderPNG, *dagRenderPred, cfg, log)
	}
	if runErr != nil {
		log.WithError(runErr).Error("wcedit failed")
		os.Exit(1)
	}
}

// adminAreaFactory returns the func(dirPath) *wc.AdminArea every
// editor.EditSession and installer.Installer needs, caching one
// AdminArea per directory and ensuring its on-disk layout exists
// before handing it out.
func adminAreaFactory(root string, log *logrus.Entry) func(string) *wc.AdminArea {
	cache := map[string]*wc.AdminArea{}
	return func(dirPath string) *wc.AdminArea {
		if a, ok := cache[dirPath]; ok {
			return a
		}
		full := root
		if dirPath != "" {
			full = filepath.Join(root, filepath.FromSlash(dirPath))
		}
		a := wc.NewAdminArea(full)
		if err := a.Ensure(); err != nil {
			log.WithError(err).Fatalf("preparing admin area under %s", full)
		}
		cache[dirPath] = a
		return a
	}
}

func runCheckout(wcPath, repoURL string, cfg *config.Config, log *logrus.Entry) error {
	repo, root, err := seedDemoRepo(cfg, log)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(wcPath, 0755); err != nil {
		return fmt.Errorf("wcedit: creating %s: %w", wcPath, err)
	}
	return driveSession(repo, root, wcPath, repoURL, editor.ModeCheckout, "", cfg, log, true)
}

func runUpdate(wcPath string, cfg *config.Config, log *logrus.Entry) error {
	repo, root, err := seedDemoRepo(cfg, log)
	if err != nil {
		return err
	}
	area := wc.NewAdminArea(wcPath)
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	baseURL := cfg.RepositoryURL
	if e, ok := entries[wc.ThisDir]; ok && e.URL != "" {
		baseURL = e.URL
	}
	return driveSession(repo, root, wcPath, baseURL, editor.ModeUpdate, "", cfg, log, false)
}

func runSwitch(wcPath, newURL string, cfg *config.Config, log *logrus.Entry) error {
	repo, root, err := seedDemoRepo(cfg, log)
	if err != nil {
		return err
	}
	return driveSession(repo, root, wcPath, newURL, editor.ModeSwitch, newURL, cfg, log, false)
}

// driveSession wires together config, installer, and an EditSession,
// then walks repo's tree from root against it. fresh selects
// Add*/OpenRoot(0) (checkout) vs Open* against an already-versioned
// tree (update/switch).
func driveSession(repo *dag.DagFS, root dag.NodeId, wcPath, baseURL string, mode editor.Mode, switchURL string, cfg *config.Config, log *logrus.Entry, fresh bool) error {
	adminFor := adminAreaFactory(wcPath, log)
	diff := difftool.Differ{Tool: difftool.Tool{Command: cfg.DiffCommand}}
	patch := difftool.Patcher{Tool: difftool.Tool{Command: cfg.PatchCommand}}
	inst := installer.New(adminFor, diff, patch, log)

	targetRev := root.Revnum
	baseRev := int64(0)
	if !fresh {
		entries, err := adminFor("").ReadEntries()
		if err != nil {
			return err
		}
		if e, ok := entries[wc.ThisDir]; ok {
			baseRev = e.Revision
		}
	}

	// Scope paths are relative to wcPath, which is how adminFor resolves them.
	opts := editor.Options{Anchor: "", Mode: mode, TargetRevision: targetRev, SwitchURL: switchURL}
	sess := editor.NewEditSession(opts, inst, adminFor, log)
	rootScope, err := sess.OpenRoot(baseRev)
	if err != nil {
		return err
	}
	rootNode, err := dag.GetNode(repo, root)
	if err != nil {
		return err
	}
	if err := driveTree(repo, rootNode, rootScope, adminFor, "", baseURL, targetRev, fresh); err != nil {
		sess.AbortEdit()
		return fmt.Errorf("wcedit: %s: %w", mode, err)
	}
	if err := sess.CloseEdit(); err != nil {
		return err
	}
	log.WithField("path", wcPath).WithField("rev", targetRev).WithField("mode", mode.String()).Info("done")
	return nil
}

// driveTree recursively opens scope's children against repo's tree
// rooted at node, installs each file's content, and records every
// subdirectory's entry in its parent (file entries are the
// installer's responsibility, written as each CloseFile runs).
func driveTree(repo *dag.DagFS, node *dag.DagNode, scope *editor.DirScope, adminFor func(string) *wc.AdminArea, dirPath, baseURL string, targetRev int64, fresh bool) error {
	area := adminFor(dirPath)
	entries, err := dag.DirectoryEntries(repo, node)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	dirEntries := map[string]*wc.Entry{}
	for _, name := range names {
		de := entries[name]
		child, err := dag.GetNode(repo, de.ID)
		if err != nil {
			return err
		}
		childURL := baseURL + "/" + name

		if de.Kind == dag.KindDir {
			var childScope *editor.DirScope
			if fresh {
				childScope, err = scope.AddDirectory(name, false)
			} else {
				childScope, err = scope.OpenDirectory(name, 0, true)
			}
			if err != nil {
				return err
			}
			dirEntries[name] = &wc.Entry{Kind: wc.KindDir, Revision: targetRev, URL: childURL}
			if err := driveTree(repo, child, childScope, adminFor, path.Join(dirPath, name), childURL, targetRev, fresh); err != nil {
				return err
			}
			continue
		}

		var fileScope *editor.FileScope
		if fresh {
			fileScope, err = scope.AddFile(name, false)
		} else {
			fileScope, err = scope.OpenFile(name, true)
		}
		if err != nil {
			return err
		}
		if err := stageAndCloseFile(area, fileScope, repo, child, name, targetRev, childURL); err != nil {
			return err
		}
	}

	onDisk, err := area.ReadEntries()
	if err != nil {
		return err
	}
	for name, e := range dirEntries {
		onDisk[name] = e
	}
	if err := area.WriteEntries(onDisk); err != nil {
		return err
	}
	return scope.CloseDirectory()
}

// stageAndCloseFile reads node's content, stages it under the admin
// area's tmp/text-base so the installer can rename it into place, and
// closes the file scope.
func stageAndCloseFile(area *wc.AdminArea, fileScope *editor.FileScope, repo *dag.DagFS, node *dag.DagNode, name string, targetRev int64, url string) error {
	r, err := dag.OpenData(repo, node)
	if err != nil {
		return err
	}
	defer r.Close()

	tmpDir := filepath.Join(area.Dir(), wc.AdminDirName, "tmp", "text-base")
	if err := os.MkdirAll(tmpDir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(tmpDir, name+".checkout-*")
	if err != nil {
		return err
	}
	if _, err := tmp.ReadFrom(r); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	fileScope.MarkDeltaApplied(tmp.Name())
	return fileScope.CloseFile(targetRev, url)
}

func runStatus(wcPath string, verbose bool) error {
	log := logrus.NewEntry(logrus.StandardLogger())
	adminFor := adminAreaFactory(wcPath, log)

	out := map[string]wc.EntryStatus{}
	seen := map[string]bool{}
	if err := walkStatus("", adminFor, seen, out); err != nil {
		return err
	}

	names := make([]string, 0, len(out))
	for name := range out {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := out[name]
		label := name
		if label == "" {
			label = "."
		}
		fmt.Printf("%-10s %-10s %s\n", st.Text, st.Prop, label)
	}

	if verbose {
		return printUnversioned(wcPath, adminFor)
	}
	return nil
}

func walkStatus(dirPath string, adminFor func(string) *wc.AdminArea, seen map[string]bool, out map[string]wc.EntryStatus) error {
	area := adminFor(dirPath)
	entries, err := area.ReadEntries()
	if err != nil {
		return err
	}
	insp := wc.FSInspector{Area: area}
	if err := wc.WalkDirectory(dirPath, entries, insp, seen, out); err != nil {
		return err
	}
	for name, e := range entries {
		if name != wc.ThisDir && e.Kind == wc.KindDir {
			if err := walkStatus(path.Join(dirPath, name), adminFor, seen, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// printUnversioned is the verbose companion to the primary status
// listing: entries present on disk but absent from admin/entries.
func printUnversioned(root string, adminFor func(string) *wc.AdminArea) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == wc.AdminDirName {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		dir, name := splitEntryPath(rel)
		entries, err := adminFor(dir).ReadEntries()
		if err != nil {
			return nil
		}
		if _, ok := entries[name]; !ok {
			fmt.Printf("?          %s\n", rel)
		}
		return nil
	})
}

func splitEntryPath(p string) (dir, name string) {
	if p == "" {
		return "", wc.ThisDir
	}
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

func runDagRender(outFile string, png, predecessors bool, cfg *config.Config, log *logrus.Entry) error {
	repo, root, err := seedDemoRepo(cfg, log)
	if err != nil {
		return err
	}
	dotSource, err := dagviz.Render(repo, root, dagviz.Options{FollowPredecessors: predecessors})
	if err != nil {
		return err
	}
	if !png {
		return os.WriteFile(outFile, []byte(dotSource), 0644)
	}
	f, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("wcedit: creating %s: %w", outFile, err)
	}
	defer f.Close()
	return dagviz.WritePNG(dotSource, f)
}
