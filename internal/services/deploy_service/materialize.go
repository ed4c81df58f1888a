package deployservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"devver/internal/metrics"
	"devver/internal/models"

	"github.com/google/uuid"
	"github.com/otiai10/copy"
	"golang.org/x/sync/errgroup"
)

// fileWorkers bounds concurrent blob writes and hashing.
const fileWorkers = 8

// excludedDirs never belong to a deployment tree.
var excludedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"deployments":  true,
	"branches":     true,
	"worktrees":    true,
}

type seedSource string

const (
	seedExisting seedSource = "existing"
	seedBase     seedSource = "base"
	seedBranch   seedSource = "branch"
	seedLatest   seedSource = "latest"
	seedCheckout seedSource = "checkout"
	seedEmpty    seedSource = "empty"
)

func (deployService *DeployService) projectDir(project string) string {
	return filepath.Join(deployService.appsRoot, project)
}

func (deployService *DeployService) deploymentsDir(project string) string {
	return filepath.Join(deployService.projectDir(project), "deployments")
}

func (deployService *DeployService) deploymentDir(project, short string) string {
	return filepath.Join(deployService.deploymentsDir(project), short)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// ensureDeploymentDir creates the deployment directory of short unless it
// already exists. The tree is copied into a hidden staging directory and
// renamed into place, so a crash never leaves a half-seeded directory.
func (deployService *DeployService) ensureDeploymentDir(ctx context.Context, req models.DeployRequest, short string) (seedSource, error) {
	dir := deployService.deploymentDir(req.Project, short)
	if isDir(dir) {
		return seedExisting, nil
	}

	source, from := deployService.pickSeed(ctx, req, short)

	staging := filepath.Join(deployService.deploymentsDir(req.Project), "."+short+"-"+uuid.NewString())
	if err := os.MkdirAll(filepath.Dir(staging), 0755); err != nil {
		return source, err
	}

	var err error
	switch source {
	case seedEmpty:
		err = os.Mkdir(staging, 0755)
	case seedCheckout:
		err = copy.Copy(from, staging, copy.Options{
			OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
			Skip: func(info os.FileInfo, src, _ string) (bool, error) {
				return info.IsDir() && filepath.Dir(src) == filepath.Clean(from) && excludedDirs[info.Name()], nil
			},
		})
	default:
		err = copy.Copy(from, staging, copy.Options{
			OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
		})
	}
	if err != nil {
		_ = os.RemoveAll(staging)
		return source, fmt.Errorf("failed to seed %s from %s: %w", dir, source, err)
	}

	if err := os.Rename(staging, dir); err != nil {
		_ = os.RemoveAll(staging)
		return source, fmt.Errorf("failed to move %s into place: %w", dir, err)
	}
	metrics.DeploymentSeedsTotal.WithLabelValues(string(source)).Inc()
	return source, nil
}

// pickSeed prefers, in order: the base commit's directory, the directory of
// the commit the branch last deployed, the most recently modified deployment
// directory, then the project checkout.
func (deployService *DeployService) pickSeed(ctx context.Context, req models.DeployRequest, short string) (seedSource, string) {
	if req.BaseCommitHash != "" {
		dir := deployService.deploymentDir(req.Project, models.ShortHash(req.BaseCommitHash))
		if isDir(dir) {
			return seedBase, dir
		}
	}

	if branch, err := deployService.store.GetBranch(ctx, req.Project, req.Branch); err == nil {
		dir := deployService.deploymentDir(req.Project, models.ShortHash(branch.CommitHash))
		if models.ShortHash(branch.CommitHash) != short && isDir(dir) {
			return seedBranch, dir
		}
	}

	if dir, ok := deployService.latestDeploymentDir(req.Project, short); ok {
		return seedLatest, dir
	}

	checkout := deployService.projectDir(req.Project)
	if isDir(checkout) {
		return seedCheckout, checkout
	}
	return seedEmpty, ""
}

func (deployService *DeployService) latestDeploymentDir(project, short string) (string, bool) {
	root := deployService.deploymentsDir(project)
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", false
	}

	var (
		latest   string
		latestAt time.Time
	)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || name == short || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestAt) {
			latest, latestAt = filepath.Join(root, name), info.ModTime()
		}
	}
	return latest, latest != ""
}

// applyFiles stores every incoming blob and writes it into dir.
func (deployService *DeployService) applyFiles(ctx context.Context, dir string, files []models.DeployFile) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fileWorkers)

	for _, f := range files {
		f := f
		g.Go(func() error {
			inserted, err := deployService.store.SaveFile(ctx, f.Hash, f.Content)
			if err != nil {
				return newDeployError(KindStore, "Failed to store file", err)
			}
			if inserted {
				metrics.BlobsStoredTotal.Inc()
			}

			target := filepath.Join(dir, filepath.FromSlash(f.Path))
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return newDeployError(KindMaterialize, "Failed to write file", err)
			}
			if err := os.WriteFile(target, f.Content, 0644); err != nil {
				return newDeployError(KindMaterialize, "Failed to write file", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// removeFiles deletes paths from dir; missing paths are ignored.
func removeFiles(dir string, paths []string) error {
	for _, p := range paths {
		err := os.Remove(filepath.Join(dir, filepath.FromSlash(p)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", p, err)
		}
	}
	return nil
}

// hashTree returns the manifest of every regular file under dir, sorted by
// path. Dependency and VCS directories are skipped at any depth.
func hashTree(ctx context.Context, dir string) ([]models.ManifestEntry, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && excludedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	entries := make([]models.ManifestEntry, 0, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fileWorkers)
	for _, path := range paths {
		path := path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			hash, err := hashFile(path)
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			mu.Lock()
			entries = append(entries, models.ManifestEntry{Path: filepath.ToSlash(rel), Hash: hash})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
