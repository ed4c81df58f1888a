package db

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"devver/internal/config"
	"devver/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 은 설정된 드라이버(sqlite/postgres)로 데이터베이스에 연결하고 스키마를 마이그레이션합니다.
// 반환된 *gorm.DB 는 main 에서 한 번 생성되어 서비스들에 주입됩니다.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.DB_Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DB_Host,
			cfg.DB_User,
			cfg.DB_Password,
			cfg.DB_Name,
			cfg.DB_Port,
		)
		dialector = postgres.Open(dsn)
	case "sqlite", "":
		if err := os.MkdirAll(filepath.Dir(cfg.DB_Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dialector = sqlite.Open(cfg.DB_Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB_Driver)
	}

	database, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewLogger(os.Stdout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database (DB 연결 실패): %w", err)
	}

	// Connection Pool(커넥션 풀) 설정
	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic database object: %w", err)
	}
	if cfg.DB_Driver == "postgres" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	} else {
		// sqlite 는 단일 writer 이므로 커넥션 하나로 직렬화합니다.
		sqlDB.SetMaxOpenConns(1)
	}

	log.Printf("Successfully connected to %s database (DB 연결 성공)", cfg.DB_Driver)

	if err := Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

// NewLogger 는 Warn 이상만 기록하는 gorm 로거입니다.
// 조회 결과 없음(record not found)은 서비스에서 ErrNotFound 로 처리하므로 기록하지 않습니다.
func NewLogger(out io.Writer) logger.Interface {
	return logger.New(log.New(out, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Migrate creates or updates the tables for every persisted model.
func Migrate(database *gorm.DB) error {
	log.Println("Running AutoMigrate... (테이블 자동 생성 중)")
	err := database.AutoMigrate(
		&models.Branch{},
		&models.FileBlob{},
		&models.DeploymentFile{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	log.Println("Database migration completed (마이그레이션 완료)")
	return nil
}

// Close releases the underlying connection pool.
func Close(database *gorm.DB) error {
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
