package models

// DeploymentFile is one row of a branch's deployment manifest. The rows for a
// (project, branch) always describe exactly one deployment's complete file set.
type DeploymentFile struct {
	ID         uint   `gorm:"primaryKey"`
	Project    string `gorm:"column:project;not null;index:idx_deployment_files_branch;uniqueIndex:idx_deployment_files_commit_path"`
	Branch     string `gorm:"column:branch;not null;index:idx_deployment_files_branch;uniqueIndex:idx_deployment_files_commit_path"`
	CommitHash string `gorm:"column:commit_hash;not null;uniqueIndex:idx_deployment_files_commit_path"`
	FilePath   string `gorm:"column:file_path;not null;uniqueIndex:idx_deployment_files_commit_path"`
	FileHash   string `gorm:"column:file_hash;not null"`
}

func (DeploymentFile) TableName() string {
	return "deployment_files"
}

// ManifestEntry is a (path, hash) pair of a deployment manifest.
type ManifestEntry struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}
