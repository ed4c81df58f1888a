package deployservice

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"devver/internal/config"
	"devver/internal/keylock"
	"devver/internal/metrics"
	"devver/internal/models"
	"devver/internal/runner"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Store is the blob and metadata persistence the materializer needs.
type Store interface {
	SaveFile(ctx context.Context, hash string, content []byte) (bool, error)
	GetBranch(ctx context.Context, project, branch string) (*models.Branch, error)
	GetBranches(ctx context.Context, project string) ([]models.Branch, error)
	SaveBranch(ctx context.Context, project, branch, commitHash string) error
	SaveDeploymentFiles(ctx context.Context, project, branch, commitHash string, files []models.ManifestEntry) error
}

type ProcessManager interface {
	StartOrReplace(ctx context.Context, name, cwd, command string, port int, env map[string]string) (models.ProcessInfo, error)
	GetStatus(ctx context.Context, name string) (models.ProcessInfo, error)
}

type Router interface {
	WriteAndReload(ctx context.Context, project, short string, port int) (bool, error)
	Available() bool
	URL(project, short string, port int, routed bool) string
}

// DeployService 는 커밋 하나를 독립된 배포 디렉토리/프로세스/라우트로 만듭니다.
type DeployService struct {
	store     Store
	processes ProcessManager
	routes    Router
	runner    runner.Runner
	log       logrus.FieldLogger

	appsRoot       string
	portBase       int
	portRange      int
	commandTimeout time.Duration

	branchLocks *keylock.KeyLock
	dirLocks    *keylock.KeyLock

	healthURL func(port int, path string) string
}

func NewDeployService(cfg *config.Config, store Store, processes ProcessManager, routes Router, run runner.Runner, log logrus.FieldLogger) *DeployService {
	return &DeployService{
		store:          store,
		processes:      processes,
		routes:         routes,
		runner:         run,
		log:            log,
		appsRoot:       cfg.AppsRoot,
		portBase:       cfg.PortBase,
		portRange:      cfg.PortRange,
		commandTimeout: cfg.CommandTimeout,
		branchLocks:    keylock.New(),
		dirLocks:       keylock.New(),
		healthURL:      defaultHealthURL,
	}
}

// Port is the deterministic port of a deployment.
func (deployService *DeployService) Port(project, commitHash string) int {
	return AllocatePort(project, commitHash, deployService.portBase, deployService.portRange)
}

// Deploy materializes req as a running deployment. The result is always
// well-formed; on failure it carries success=false and err is a *DeployError.
func (deployService *DeployService) Deploy(ctx context.Context, req models.DeployRequest, cfg models.DeploymentConfig) (result models.DeployResult, err error) {
	// 요청이 끊겨도 수락된 배포는 끝까지 진행 (install/build 는 commandTimeout 으로 제한)
	ctx = context.WithoutCancel(ctx)
	started := time.Now()
	log := deployService.log.WithFields(logrus.Fields{
		"deploy_id": uuid.NewString(),
		"project":   req.Project,
		"branch":    req.Branch,
		"commit":    models.ShortHash(req.CommitHash),
	})

	result = models.DeployResult{FilesChanged: len(req.Files)}
	validated := false
	defer func() {
		result.Duration = time.Since(started).Milliseconds()
		outcome := "success"
		var deployErr *DeployError
		if errors.As(err, &deployErr) {
			outcome = string(deployErr.Kind)
			result.Success = false
			result.Message = deployErr.Message
			log.WithError(err).Error("Deployment failed (배포 실패)")
		}
		metrics.DeploysTotal.WithLabelValues(outcome).Inc()
		if validated {
			metrics.DeployDuration.WithLabelValues(req.Project).Observe(time.Since(started).Seconds())
		}
	}()

	if err := validateRequest(req, cfg); err != nil {
		return result, newDeployError(KindValidation, err.Error(), nil)
	}
	validated = true
	metrics.FilesReceivedTotal.Add(float64(len(req.Files)))

	log.WithFields(logrus.Fields{
		"files":   len(req.Files),
		"deleted": len(req.DeletedFiles),
		"base":    models.ShortHash(req.BaseCommitHash),
	}).Info("Deployment request received (배포 요청 수신)")

	// 같은 브랜치 배포는 순서대로 처리, 디렉토리 잠금은 항상 브랜치 잠금 다음에 획득
	unlockBranch := deployService.branchLocks.Lock(req.Project + "/" + req.Branch)
	defer unlockBranch()

	short := models.ShortHash(req.CommitHash)
	unlockDir := deployService.dirLocks.Lock(req.Project + "/" + short)
	defer unlockDir()

	dir := deployService.deploymentDir(req.Project, short)

	// 1. 배포 디렉토리 생성 (기존 배포 복사로 시드)
	source, err := deployService.ensureDeploymentDir(ctx, req, short)
	if err != nil {
		return result, newDeployError(KindMaterialize, "Failed to create deployment directory", err)
	}
	log.WithFields(logrus.Fields{"path": dir, "seed": source}).Info("Deployment directory ready")

	// 2. 파일 저장 및 쓰기, 삭제된 파일 제거
	if err := deployService.applyFiles(ctx, dir, req.Files); err != nil {
		var deployErr *DeployError
		if errors.As(err, &deployErr) {
			return result, deployErr
		}
		return result, newDeployError(KindMaterialize, "Failed to write files", err)
	}
	if err := removeFiles(dir, req.DeletedFiles); err != nil {
		return result, newDeployError(KindMaterialize, "Failed to delete files", err)
	}
	// 최신 배포 시드 선택이 디렉토리 mtime 에 의존
	now := time.Now()
	if err := os.Chtimes(dir, now, now); err != nil {
		log.WithError(err).Warn("Failed to touch deployment directory")
	}

	// 3. 메타데이터 저장 (브랜치 포인터 + manifest 교체)
	manifest, err := hashTree(ctx, dir)
	if err != nil {
		return result, newDeployError(KindMaterialize, "Failed to read deployment files", err)
	}
	if err := deployService.store.SaveBranch(ctx, req.Project, req.Branch, req.CommitHash); err != nil {
		return result, newDeployError(KindStore, "Failed to update branch", err)
	}
	if err := deployService.store.SaveDeploymentFiles(ctx, req.Project, req.Branch, req.CommitHash, manifest); err != nil {
		return result, newDeployError(KindStore, "Failed to update deployment files", err)
	}

	// 4. 의존성 설치 / 빌드
	if dependenciesChanged(req.Files) {
		log.Info("Installing dependencies")
		ran, err := deployService.install(ctx, dir, cfg)
		result.DependenciesReinstalled = ran
		if err != nil {
			return result, newDeployError(KindInstall, "Dependency install failed", err)
		}
	}
	if cfg.BuildCommand != "" {
		log.WithField("command", cfg.BuildCommand).Info("Building application")
		if err := deployService.build(ctx, dir, cfg); err != nil {
			return result, newDeployError(KindBuild, "Build failed", err)
		}
	}

	// 5. 포트 할당 및 프로세스 시작
	port := deployService.Port(req.Project, req.CommitHash)
	name := models.ProcessName(req.Project, req.CommitHash)
	if _, err := deployService.processes.StartOrReplace(ctx, name, dir, cfg.StartCommand, port, cfg.Env); err != nil {
		return result, newDeployError(KindProcess, "Failed to start process", err)
	}

	var warnings []string
	if cfg.HealthCheck != nil && cfg.HealthCheck.Path != "" {
		if err := deployService.checkHealth(ctx, port, cfg.HealthCheck); err != nil {
			log.WithError(err).Warn("Health check did not pass")
			warnings = append(warnings, "Health check failed on "+cfg.HealthCheck.Path)
		}
	}

	// 6. nginx 라우트 등록 (없으면 포트로 직접 접근)
	routed, err := deployService.routes.WriteAndReload(ctx, req.Project, short, port)
	if err != nil {
		log.WithError(err).Warn("Failed to configure nginx, falling back to direct port")
		warnings = append(warnings, "Routing unavailable, use the direct port")
		routed = false
	}

	result.Success = true
	result.URL = deployService.routes.URL(req.Project, short, port, routed)
	if len(warnings) > 0 {
		result.Message = strings.Join(warnings, "; ")
	}

	log.WithFields(logrus.Fields{"url": result.URL, "port": port}).Info("Deployment complete (배포 완료)")
	return result, nil
}

// ListDeployments returns the live status of every branch of project, most
// recently deployed first.
func (deployService *DeployService) ListDeployments(ctx context.Context, project string) ([]models.DeploymentInfo, error) {
	branches, err := deployService.store.GetBranches(ctx, project)
	if err != nil {
		return nil, err
	}

	routed := deployService.routes.Available()
	deployments := make([]models.DeploymentInfo, 0, len(branches))
	for _, b := range branches {
		short := models.ShortHash(b.CommitHash)
		port := deployService.Port(project, b.CommitHash)

		info := models.DeploymentInfo{
			Project:        project,
			Branch:         b.Branch,
			CommitHash:     b.CommitHash,
			CommitShort:    short,
			URL:            deployService.routes.URL(project, short, port, routed),
			Port:           port,
			Status:         models.ProcessStatusStopped,
			LastDeployedAt: b.LastDeployedAt.UTC().Format(time.RFC3339),
		}

		status, err := deployService.processes.GetStatus(ctx, models.ProcessName(project, b.CommitHash))
		if err != nil {
			deployService.log.WithError(err).WithField("project", project).Warn("Could not read process status")
		} else {
			info.Status = status.Status
			info.PID = status.PID
		}
		deployments = append(deployments, info)
	}
	return deployments, nil
}

func dependenciesChanged(files []models.DeployFile) bool {
	for _, f := range files {
		if models.IsDependencyManifest(f.Path) {
			return true
		}
	}
	return false
}
