package storeservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"devver/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("not found")

// insertBatchSize 는 manifest insert 시 한 번에 보내는 행 수입니다.
const insertBatchSize = 500

// StoreService 는 content-addressed blob 저장소와 브랜치/manifest 메타데이터 저장소입니다.
type StoreService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStoreService(db *gorm.DB) *StoreService {
	return &StoreService{db: db, now: time.Now}
}

// Ping checks database connectivity.
func (storeService *StoreService) Ping(ctx context.Context) error {
	sqlDB, err := storeService.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveFile stores content under hash unless a blob with that hash exists.
// It reports whether a new row was written.
func (storeService *StoreService) SaveFile(ctx context.Context, hash string, content []byte) (bool, error) {
	if content == nil {
		content = []byte{}
	}
	blob := models.FileBlob{Hash: hash, Content: content, CreatedAt: storeService.now().UTC()}

	result := storeService.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
		Create(&blob)
	if result.Error != nil {
		return false, fmt.Errorf("failed to save file %s: %w", hash, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetFile returns the bytes stored under hash.
func (storeService *StoreService) GetFile(ctx context.Context, hash string) ([]byte, error) {
	var blob models.FileBlob
	if err := storeService.db.WithContext(ctx).Where("hash = ?", hash).First(&blob).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("file %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file %s: %w", hash, err)
	}
	return blob.Content, nil
}

// CountFiles returns the number of stored blobs.
func (storeService *StoreService) CountFiles(ctx context.Context) (int64, error) {
	var n int64
	if err := storeService.db.WithContext(ctx).Model(&models.FileBlob{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

// GetBranches returns the project's branches, most recently deployed first.
// The ancestor search on the client scans them in this order.
func (storeService *StoreService) GetBranches(ctx context.Context, project string) ([]models.Branch, error) {
	var branches []models.Branch
	err := storeService.db.WithContext(ctx).
		Where("project = ?", project).
		Order("last_deployed_at DESC").
		Order("id DESC").
		Find(&branches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get branches: %w", err)
	}
	return branches, nil
}

func (storeService *StoreService) GetBranch(ctx context.Context, project, branch string) (*models.Branch, error) {
	var record models.Branch
	err := storeService.db.WithContext(ctx).Where("project = ? AND branch = ?", project, branch).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("branch %s/%s: %w", project, branch, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get branch: %w", err)
	}
	return &record, nil
}

// SaveBranch upserts the branch pointer to commitHash.
func (storeService *StoreService) SaveBranch(ctx context.Context, project, branch, commitHash string) error {
	now := storeService.now().UTC()
	record := models.Branch{
		Project:        project,
		Branch:         branch,
		CommitHash:     commitHash,
		CreatedAt:      now,
		LastDeployedAt: now,
	}

	err := storeService.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project"}, {Name: "branch"}},
		DoUpdates: clause.AssignmentColumns([]string{"commit_hash", "last_deployed_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save branch: %w", err)
	}
	return nil
}

// SaveDeploymentFiles replaces the branch's manifest with files. The delete
// and the inserts commit together or not at all.
func (storeService *StoreService) SaveDeploymentFiles(ctx context.Context, project, branch, commitHash string, files []models.ManifestEntry) error {
	rows := make([]models.DeploymentFile, 0, len(files))
	for _, f := range files {
		rows = append(rows, models.DeploymentFile{
			Project:    project,
			Branch:     branch,
			CommitHash: commitHash,
			FilePath:   f.Path,
			FileHash:   f.Hash,
		})
	}

	err := storeService.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project = ? AND branch = ?", project, branch).Delete(&models.DeploymentFile{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, insertBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save deployment files: %w", err)
	}
	return nil
}

// GetDeploymentFiles returns the branch's manifest sorted by path.
func (storeService *StoreService) GetDeploymentFiles(ctx context.Context, project, branch string) ([]models.ManifestEntry, error) {
	var rows []models.DeploymentFile
	err := storeService.db.WithContext(ctx).
		Where("project = ? AND branch = ?", project, branch).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment files: %w", err)
	}

	entries := make([]models.ManifestEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, models.ManifestEntry{Path: r.FilePath, Hash: r.FileHash})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}
