// Package changeset turns the difference between a base commit and the
// working tree into a deploy request payload.
package changeset

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"devver/internal/client/git"
	"devver/internal/models"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Source is the subset of git the builder reads from.
type Source interface {
	Diff(ctx context.Context, base string) (git.Diff, error)
	ListFiles(ctx context.Context) ([]string, error)
	ReadFile(path string) ([]byte, error)
}

type Options struct {
	// Ignore holds gitignore-style patterns; matching paths are not sent.
	Ignore []string
	// Warn is told about files that could not be read and were skipped.
	Warn func(path string, err error)
}

type ChangeSet struct {
	Files        []models.DeployFile
	DeletedFiles []string

	Changed int
	Added   int
	// FullDeploy is set when every tracked file is sent.
	FullDeploy bool
	// DependenciesChanged is set when a dependency manifest or lockfile is
	// among the files sent.
	DependenciesChanged bool
	Skipped             []string
}

// Build collects the files to send for base, or every tracked file when base
// is empty, the diff fails or it contains no changed or added paths.
// The result is sorted by path.
func Build(ctx context.Context, src Source, base string, opts Options) (ChangeSet, error) {
	var cs ChangeSet
	var paths []string

	if base != "" {
		diff, err := src.Diff(ctx, base)
		if err == nil {
			cs.Changed, cs.Added = len(diff.Changed), len(diff.Added)
			cs.DeletedFiles = append(cs.DeletedFiles, diff.Deleted...)
			paths = append(append(paths, diff.Changed...), diff.Added...)
		} else if opts.Warn != nil {
			opts.Warn(base, fmt.Errorf("diff failed, deploying all files: %w", err))
		}
	}

	if len(paths) == 0 {
		all, err := src.ListFiles(ctx)
		if err != nil {
			return ChangeSet{}, err
		}
		paths = all
		cs.FullDeploy = true
	}

	matcher := newMatcher(opts.Ignore)
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] || matcher.Match(strings.Split(p, "/"), false) {
			continue
		}
		seen[p] = true

		content, err := src.ReadFile(p)
		if err != nil {
			cs.Skipped = append(cs.Skipped, p)
			if opts.Warn != nil {
				opts.Warn(p, err)
			}
			continue
		}

		sum := sha256.Sum256(content)
		cs.Files = append(cs.Files, models.DeployFile{Path: p, Hash: hex.EncodeToString(sum[:]), Content: content})
		if models.IsDependencyManifest(p) {
			cs.DependenciesChanged = true
		}
	}

	sort.Slice(cs.Files, func(i, j int) bool { return cs.Files[i].Path < cs.Files[j].Path })
	sort.Strings(cs.DeletedFiles)
	if cs.DeletedFiles == nil {
		cs.DeletedFiles = []string{}
	}
	return cs, nil
}

func newMatcher(patterns []string) gitignore.Matcher {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return gitignore.NewMatcher(ps)
}
