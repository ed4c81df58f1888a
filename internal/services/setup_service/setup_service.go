package setupservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"devver/internal/config"
	"devver/internal/models"
	"devver/internal/runner"

	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/validation"
)

// SetupService 는 프로젝트 저장소를 APPS_ROOT 아래에 clone(또는 pull) 하고 의존성을 설치합니다.
// 이 checkout 은 첫 배포의 시드로 사용됩니다.
type SetupService struct {
	runner         runner.Runner
	appsRoot       string
	commandTimeout time.Duration
	log            logrus.FieldLogger
}

func NewSetupService(cfg *config.Config, run runner.Runner, log logrus.FieldLogger) *SetupService {
	return &SetupService{
		runner:         run,
		appsRoot:       cfg.AppsRoot,
		commandTimeout: cfg.CommandTimeout,
		log:            log,
	}
}

func (setupService *SetupService) ProjectPath(project string) string {
	return filepath.Join(setupService.appsRoot, project)
}

// Setup prepares the project checkout. Failures are reported in the result.
func (setupService *SetupService) Setup(ctx context.Context, cfg models.DeploymentConfig) models.SetupResult {
	log := setupService.log.WithFields(logrus.Fields{"project": cfg.Project, "repository": cfg.Repository})

	if errs := validation.IsDNS1123Label(cfg.Project); len(errs) > 0 {
		return models.SetupResult{Success: false, Message: "Invalid project name: " + strings.Join(errs, ", ")}
	}
	if cfg.Repository == "" {
		log.Error("No repository URL provided in config")
		return models.SetupResult{Success: false, Message: "No repository URL"}
	}

	path := setupService.ProjectPath(cfg.Project)

	// 1. 저장소 존재 여부 확인 후 pull 또는 clone
	repo, err := git.PlainOpen(path)
	switch {
	case err == nil:
		log.Info("Repository already exists, pulling latest changes")
		setupService.pull(ctx, repo, log)
	case errors.Is(err, git.ErrRepositoryNotExists):
		log.WithField("path", path).Info("Cloning repository")
		if err := setupService.clone(ctx, path, cfg.Repository, log); err != nil {
			log.WithError(err).Error("Clone failed")
			return models.SetupResult{Success: false, Message: "Clone failed: " + err.Error()}
		}
	default:
		return models.SetupResult{Success: false, Message: "Failed to open repository: " + err.Error()}
	}

	// 2. worktrees 디렉토리 생성
	if err := os.MkdirAll(filepath.Join(path, "worktrees"), 0755); err != nil {
		return models.SetupResult{Success: false, Message: "Failed to create worktrees directory: " + err.Error()}
	}

	// 3. 의존성 설치 (실패는 경고만)
	setupService.install(ctx, path, cfg, log)

	log.WithField("path", path).Info("Setup complete (프로젝트 준비 완료)")
	return models.SetupResult{Success: true, Message: "Project setup successful", Path: path}
}

// preservedEntries survive replacing a directory that is not a repository;
// running deployments live under deployments/.
var preservedEntries = map[string]bool{"deployments": true}

// clone clones into a staging directory first, so a failed clone leaves path
// untouched. On success everything in path except preservedEntries is
// replaced by the fresh checkout.
func (setupService *SetupService) clone(ctx context.Context, path, repository string, log logrus.FieldLogger) error {
	if err := os.MkdirAll(setupService.appsRoot, 0755); err != nil {
		return err
	}
	staging := filepath.Join(setupService.appsRoot, "."+filepath.Base(path)+"-clone-"+uuid.NewString())
	defer os.RemoveAll(staging)

	if _, err := git.PlainCloneContext(ctx, staging, false, &git.CloneOptions{URL: repository}); err != nil {
		return err
	}

	cloned, err := os.ReadDir(staging)
	if err != nil {
		return err
	}
	for _, entry := range cloned {
		if preservedEntries[entry.Name()] {
			return fmt.Errorf("repository contains reserved entry %q", entry.Name())
		}
	}

	if err := os.MkdirAll(path, 0755); err != nil {
		return err
	}
	existing, err := os.ReadDir(path)
	if err != nil {
		return err
	}
	for _, entry := range existing {
		if preservedEntries[entry.Name()] {
			continue
		}
		log.WithField("entry", entry.Name()).Warn("Removing non-repository content (저장소가 아닌 파일 제거)")
		if err := os.RemoveAll(filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}

	for _, entry := range cloned {
		if err := os.Rename(filepath.Join(staging, entry.Name()), filepath.Join(path, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// pull keeps the existing checkout when the pull fails.
func (setupService *SetupService) pull(ctx context.Context, repo *git.Repository, log logrus.FieldLogger) {
	worktree, err := repo.Worktree()
	if err != nil {
		log.WithError(err).Warn("Pull failed, continuing with existing repository")
		return
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: git.DefaultRemoteName})
	switch {
	case err == nil:
		log.Info("Repository updated")
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		log.Info("Repository already up to date")
	default:
		log.WithError(err).Warn("Pull failed, continuing with existing repository")
	}
}

func (setupService *SetupService) install(ctx context.Context, path string, cfg models.DeploymentConfig, log logrus.FieldLogger) {
	argv := cfg.Runtime.InstallCommand()
	if argv == nil {
		return
	}

	if setupService.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, setupService.commandTimeout)
		defer cancel()
	}

	cmd := runner.Command{Name: argv[0], Args: argv[1:], Dir: path}
	log.WithField("command", cmd.String()).Info("Installing dependencies")

	result, err := setupService.runner.Run(ctx, cmd)
	switch {
	case err != nil:
		log.WithError(err).Warn("Install could not run")
	case !result.Success():
		log.WithField("exit_code", result.ExitCode).Warn("Install exited non-zero")
	default:
		log.Info("Dependencies installed")
	}
}
