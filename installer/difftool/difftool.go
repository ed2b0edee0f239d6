// Package difftool invokes the external diff/patch tools the three-way
// file installer needs for locally-modified text reconciliation.
package difftool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// Tool is a configured external command line template. Placeholders
// of the form {name} are substituted before the line is tokenized, so
// the configured command can still quote arguments containing spaces.
type Tool struct {
	Command string
}

// Resolve expands {placeholders} in t.Command against subst and
// tokenizes the result the way a shell would, respecting quotes.
func (t Tool) Resolve(subst map[string]string) ([]string, error) {
	expanded := t.Command
	for k, v := range subst {
		expanded = strings.ReplaceAll(expanded, "{"+k+"}", v)
	}
	args, err := shlex.Split(expanded)
	if err != nil {
		return nil, fmt.Errorf("difftool: parsing command %q: %w", t.Command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("difftool: empty command %q", t.Command)
	}
	return args, nil
}

// Run executes the tool, piping stdin to the child process if
// non-nil, and returns its standard output. A non-zero exit with
// output is not treated as an error: external diff/patch tools
// routinely exit non-zero to signal "differences found" or "conflicts
// remain", output the installer's conflict detection consumes rather
// than a failure.
func (t Tool) Run(ctx context.Context, subst map[string]string, stdin []byte) ([]byte, error) {
	args, err := t.Resolve(subst)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return stdout.Bytes(), nil
		}
		return nil, fmt.Errorf("difftool: running %q: %w (stderr: %s)", t.Command, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// Differ produces a context patch between two files.
type Differ struct{ Tool Tool }

func (d Differ) Diff(ctx context.Context, oldPath, newPath string) ([]byte, error) {
	return d.Tool.Run(ctx, map[string]string{"old": oldPath, "new": newPath}, nil)
}

// Patcher applies a patch (supplied on stdin) against a target file.
type Patcher struct{ Tool Tool }

func (p Patcher) Apply(ctx context.Context, targetPath string, patch []byte) ([]byte, error) {
	return p.Tool.Run(ctx, map[string]string{"target": targetPath}, patch)
}
