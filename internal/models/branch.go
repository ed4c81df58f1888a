package models

import "time"

// Branch 구조체는 프로젝트 브랜치별 마지막 배포 커밋을 추적합니다.
// (project, branch) 는 유니크하며 배포할 때마다 upsert 됩니다.
type Branch struct {
	ID             uint      `gorm:"primaryKey"`
	Project        string    `gorm:"column:project;not null;uniqueIndex:idx_branches_project_branch"`
	Branch         string    `gorm:"column:branch;not null;uniqueIndex:idx_branches_project_branch"`
	CommitHash     string    `gorm:"column:commit_hash;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	LastDeployedAt time.Time `gorm:"column:last_deployed_at;not null;index"`
}

func (Branch) TableName() string {
	return "branches"
}
