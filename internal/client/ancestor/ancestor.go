// Package ancestor picks the commit a deploy is diffed against.
package ancestor

import (
	"context"

	"devver/internal/models"
)

// History is the subset of git the resolver needs.
type History interface {
	MergeBase(ctx context.Context, a, b string) (string, error)
	Parent(ctx context.Context, commit string) (string, error)
}

// Base is the resolved base commit and the deployed branch it came from.
// FromParent is set when the target branch's deployed commit was unknown
// locally and the current commit's parent was used instead.
type Base struct {
	Commit     string
	Branch     string
	FromParent bool
}

// Resolve returns the base for deploying current to target, given the
// deployed branches ordered most recently deployed first.
//
// When target itself has been deployed, its merge-base with current is used,
// falling back to current's parent if the deployed commit is not in local
// history; other branches are not considered. Otherwise the first branch
// whose merge-base succeeds wins. This is first-reachable, not closest.
func Resolve(ctx context.Context, history History, target, current string, branches []models.BranchSummary) (Base, bool) {
	for _, b := range branches {
		if b.Branch != target {
			continue
		}
		if base, err := history.MergeBase(ctx, current, b.CommitHash); err == nil {
			return Base{Commit: base, Branch: target}, true
		}
		if parent, err := history.Parent(ctx, current); err == nil && parent != "" {
			return Base{Commit: parent, Branch: target, FromParent: true}, true
		}
		return Base{}, false
	}

	for _, b := range branches {
		if base, err := history.MergeBase(ctx, current, b.CommitHash); err == nil {
			return Base{Commit: base, Branch: b.Branch}, true
		}
	}
	return Base{}, false
}
