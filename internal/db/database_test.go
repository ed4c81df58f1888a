package db_test

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"devver/internal/config"
	"devver/internal/db"
	"devver/internal/models"
)

func TestOpen(t *testing.T) {
	t.Run("opens and migrates a sqlite database", func(t *testing.T) {
		cfg := &config.Config{DB_Driver: "sqlite", DB_Path: filepath.Join(t.TempDir(), "nested", "devver.db")}

		database, err := db.Open(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close(database) })

		for _, model := range []any{&models.Branch{}, &models.FileBlob{}, &models.DeploymentFile{}} {
			require.True(t, database.Migrator().HasTable(model))
		}
	})

	t.Run("rejects unknown drivers", func(t *testing.T) {
		_, err := db.Open(&config.Config{DB_Driver: "oracle"})
		require.ErrorContains(t, err, "unsupported DB_DRIVER")
	})
}

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	cfg := &config.Config{DB_Driver: "sqlite", DB_Path: filepath.Join(t.TempDir(), "devver.db")}
	database, err := db.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })

	var buf bytes.Buffer
	session := database.Session(&gorm.Session{Logger: db.NewLogger(&buf)})

	err = session.Where("project = ?", "missing").First(&models.Branch{}).Error
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	require.Empty(t, buf.String())

	require.Error(t, session.Exec("SELECT * FROM no_such_table").Error)
	require.Contains(t, buf.String(), "no_such_table")
}
