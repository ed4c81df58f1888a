// Package git answers the version-control queries of the deploy client by
// running the git binary inside a working tree.
package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"devver/internal/runner"
)

// Error is a failed git query. Op names the query; Err carries git's stderr.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Diff is the set of paths that differ between a base commit and the
// working tree.
type Diff struct {
	Changed []string
	Added   []string
	Deleted []string
}

type Repo struct {
	runner runner.Runner
	dir    string
}

func New(run runner.Runner, dir string) *Repo {
	return &Repo{runner: run, dir: dir}
}

func (r *Repo) Dir() string {
	return r.dir
}

func (r *Repo) git(ctx context.Context, op string, args ...string) (string, error) {
	out, err := r.gitRaw(ctx, op, args...)
	return strings.TrimSpace(out), err
}

// gitRaw returns stdout untouched, for NUL-separated path listings.
func (r *Repo) gitRaw(ctx context.Context, op string, args ...string) (string, error) {
	result, err := r.runner.Run(ctx, runner.Command{Name: "git", Args: args, Dir: r.dir})
	if err != nil {
		return "", &Error{Op: op, Err: err}
	}
	if !result.Success() {
		msg := strings.TrimSpace(string(result.Stderr))
		if msg == "" {
			msg = fmt.Sprintf("exit status %d", result.ExitCode)
		}
		return "", &Error{Op: op, Err: fmt.Errorf("%s", msg)}
	}
	return string(result.Stdout), nil
}

// splitNUL splits -z output, dropping the trailing terminator.
func splitNUL(out string) []string {
	out = strings.TrimSuffix(out, "\x00")
	if out == "" {
		return nil
	}
	return strings.Split(out, "\x00")
}

// IsRepository reports whether dir is inside a git working tree.
func (r *Repo) IsRepository(ctx context.Context) bool {
	out, err := r.git(ctx, "rev-parse", "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	return r.git(ctx, "current branch", "rev-parse", "--abbrev-ref", "HEAD")
}

func (r *Repo) CurrentCommit(ctx context.Context) (string, error) {
	return r.git(ctx, "current commit", "rev-parse", "HEAD")
}

// MergeBase fails when either commit is unknown to the local history.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	out, err := r.git(ctx, "merge-base", "merge-base", a, b)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", &Error{Op: "merge-base", Err: fmt.Errorf("no common ancestor of %s and %s", a, b)}
	}
	return out, nil
}

// Parent returns the first parent of commit.
func (r *Repo) Parent(ctx context.Context, commit string) (string, error) {
	return r.git(ctx, "parent", "rev-parse", "--verify", "--quiet", commit+"~1")
}

func (r *Repo) RemoteURL(ctx context.Context) (string, error) {
	return r.git(ctx, "remote url", "config", "--get", "remote.origin.url")
}

// Diff compares base with the working tree. Renames are reported as a delete
// plus an add. Paths are read with -z so names git would quote arrive verbatim.
func (r *Repo) Diff(ctx context.Context, base string) (Diff, error) {
	out, err := r.gitRaw(ctx, "diff", "diff", "--name-status", "--no-renames", "-z", base)
	if err != nil {
		return Diff{}, err
	}

	var d Diff
	fields := splitNUL(out)
	for i := 0; i+1 < len(fields); i += 2 {
		status, path := fields[i], fields[i+1]
		if status == "" || path == "" {
			continue
		}
		switch status[:1] {
		case "M", "T":
			d.Changed = append(d.Changed, path)
		case "A":
			d.Added = append(d.Added, path)
		case "D":
			d.Deleted = append(d.Deleted, path)
		}
	}
	return d, nil
}

// ListFiles returns every tracked path.
func (r *Repo) ListFiles(ctx context.Context) ([]string, error) {
	out, err := r.gitRaw(ctx, "ls-files", "ls-files", "-z")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, p := range splitNUL(out) {
		if p != "" {
			files = append(files, p)
		}
	}
	return files, nil
}

// ReadFile reads a tracked path from the working tree.
func (r *Repo) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(r.dir, filepath.FromSlash(path)))
}
