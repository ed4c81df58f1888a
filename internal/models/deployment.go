package models

import "path"

// DeployFile 은 전송되는 파일 하나입니다. Content 는 JSON 에서 base64 로 인코딩됩니다.
type DeployFile struct {
	Path    string `json:"path"`
	Hash    string `json:"hash"`
	Content []byte `json:"content"`
}

// DeployRequest is the change set a client ships for one commit.
type DeployRequest struct {
	Project        string       `json:"project"`
	Branch         string       `json:"branch"`
	CommitHash     string       `json:"commitHash"`
	BaseCommitHash string       `json:"baseCommitHash,omitempty"`
	Files          []DeployFile `json:"files"`
	DeletedFiles   []string     `json:"deletedFiles"`
}

// DeployBody 는 POST /api/deploy 의 요청 본문입니다.
type DeployBody struct {
	Request DeployRequest    `json:"request"`
	Config  DeploymentConfig `json:"config"`
}

type DeployResult struct {
	Success                 bool   `json:"success"`
	URL                     string `json:"url"`
	Duration                int64  `json:"duration"`
	FilesChanged            int    `json:"filesChanged"`
	DependenciesReinstalled bool   `json:"dependenciesReinstalled"`
	Message                 string `json:"message,omitempty"`
}

type SetupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

type BranchSummary struct {
	Branch         string `json:"branch"`
	CommitHash     string `json:"commitHash"`
	LastDeployedAt string `json:"lastDeployedAt"`
}

type BranchListResponse struct {
	Branches []BranchSummary `json:"branches"`
}

// DeploymentInfo 는 GET /api/deployments/:project 응답의 브랜치별 상태입니다.
type DeploymentInfo struct {
	Project        string            `json:"project"`
	Branch         string            `json:"branch"`
	CommitHash     string            `json:"commitHash"`
	CommitShort    string            `json:"commitShort"`
	URL            string            `json:"url"`
	Port           int               `json:"port"`
	Status         EnumProcessStatus `json:"status"`
	LastDeployedAt string            `json:"lastDeployedAt"`
	PID            int               `json:"pid,omitempty"`
}

type DeploymentsListResponse struct {
	Deployments []DeploymentInfo `json:"deployments"`
}

// ShortHashLength 는 디렉토리/프로세스/라우트 이름에 쓰이는 커밋 해시 접두사 길이입니다.
const ShortHashLength = 8

// ShortHash returns the fixed-length prefix of a commit hash.
func ShortHash(commitHash string) string {
	if len(commitHash) <= ShortHashLength {
		return commitHash
	}
	return commitHash[:ShortHashLength]
}

// ProcessName is the process-manager name of a deployment.
func ProcessName(project, commitHash string) string {
	return project + "-" + ShortHash(commitHash)
}

// dependencyManifests are the file names whose change requires a reinstall.
var dependencyManifests = map[string]bool{
	"package.json":      true,
	"bun.lock":          true,
	"bun.lockb":         true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"requirements.txt":  true,
	"go.mod":            true,
	"go.sum":            true,
}

// IsDependencyManifest reports whether the slash-separated path names a
// dependency manifest or lockfile.
func IsDependencyManifest(filePath string) bool {
	return dependencyManifests[path.Base(filePath)]
}
