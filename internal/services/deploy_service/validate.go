package deployservice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"devver/internal/config"
	"devver/internal/models"

	"k8s.io/apimachinery/pkg/util/validation"
)

var commitHashPattern = regexp.MustCompile(`^[0-9a-fA-F]{7,64}$`)

// validateRequest rejects requests that could escape the deployment directory
// or corrupt the blob store. 이름은 프로세스/디렉토리/서브도메인에 그대로 쓰입니다.
func validateRequest(req models.DeployRequest, cfg models.DeploymentConfig) error {
	if errs := validation.IsDNS1123Label(req.Project); len(errs) > 0 {
		return fmt.Errorf("invalid project name %q: %s", req.Project, strings.Join(errs, ", "))
	}
	if strings.TrimSpace(req.Branch) == "" {
		return fmt.Errorf("branch is required")
	}
	if !commitHashPattern.MatchString(req.CommitHash) {
		return fmt.Errorf("invalid commit hash %q", req.CommitHash)
	}
	if req.BaseCommitHash != "" && !commitHashPattern.MatchString(req.BaseCommitHash) {
		return fmt.Errorf("invalid base commit hash %q", req.BaseCommitHash)
	}

	if cfg.Project != "" && cfg.Project != req.Project {
		return fmt.Errorf("config project %q does not match request project %q", cfg.Project, req.Project)
	}
	cfg.Project = req.Project
	if err := config.ValidateProject(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool, len(req.Files))
	for _, f := range req.Files {
		if err := checkPath(f.Path); err != nil {
			return err
		}
		if seen[f.Path] {
			return fmt.Errorf("duplicate file %q", f.Path)
		}
		seen[f.Path] = true

		sum := sha256.Sum256(f.Content)
		if hex.EncodeToString(sum[:]) != f.Hash {
			return fmt.Errorf("hash mismatch for %q", f.Path)
		}
	}
	for _, p := range req.DeletedFiles {
		if err := checkPath(p); err != nil {
			return err
		}
	}
	return nil
}

// checkPath 는 경로 조작(Path Traversal) 공격을 방지합니다.
func checkPath(p string) error {
	if p == "" {
		return fmt.Errorf("empty file path")
	}
	if strings.Contains(p, "\\") || !filepath.IsLocal(filepath.FromSlash(p)) {
		return fmt.Errorf("invalid file path %q", p)
	}
	return nil
}
