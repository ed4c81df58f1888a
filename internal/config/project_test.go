package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"devver/internal/config"
	"devver/internal/models"
)

func TestProjectConfig(t *testing.T) {
	t.Run("InitProject writes defaults and refuses to overwrite", func(t *testing.T) {
		dir := t.TempDir()

		path, cfg, err := config.InitProject(dir, "demo")
		require.NoError(t, err)
		require.Equal(t, filepath.Join(dir, config.ProjectConfigFile), path)
		require.Equal(t, "demo", cfg.Project)

		loaded, err := config.LoadProject(path)
		require.NoError(t, err)
		require.Equal(t, cfg, loaded)

		_, _, err = config.InitProject(dir, "demo")
		require.ErrorIs(t, err, config.ErrProjectConfigExists)
	})

	t.Run("loads JSON written by hand", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, config.ProjectConfigFile)
		require.NoError(t, os.WriteFile(path, []byte(`{
  "project": "shop",
  "container": {"host": "10.0.0.5", "port": 22, "user": "deploy"},
  "runtime": "node",
  "buildCommand": "npm run build",
  "startCommand": "node dist/main.js",
  "healthCheck": {"path": "/health", "timeout": 5000},
  "ignore": ["*.log"],
  "env": {"API_URL": "http://api"}
}`), 0644))

		cfg, err := config.LoadProject(path)
		require.NoError(t, err)
		require.Equal(t, "shop", cfg.Project)
		require.Equal(t, models.RuntimeNode, cfg.Runtime)
		require.Equal(t, "10.0.0.5", cfg.Container.Host)
		require.Equal(t, "npm run build", cfg.BuildCommand)
		require.Equal(t, "/health", cfg.HealthCheck.Path)
		require.Equal(t, "http://api", cfg.Env["API_URL"])
	})

	t.Run("round trips through YAML", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "devver.config.yaml")
		cfg := config.DefaultProjectConfig("demo")
		cfg.BuildCommand = "bun run build"

		require.NoError(t, config.SaveProject(path, cfg))

		found, ok := config.FindProjectConfig(dir)
		require.True(t, ok)
		require.Equal(t, path, found)

		loaded, err := config.LoadProject(found)
		require.NoError(t, err)
		require.Equal(t, cfg, loaded)
	})

	t.Run("rejects configs without a start command", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, config.ProjectConfigFile)
		require.NoError(t, os.WriteFile(path, []byte(`{"project": "demo", "runtime": "bun"}`), 0644))

		_, err := config.LoadProject(path)
		require.ErrorContains(t, err, "startCommand is required")
	})

	t.Run("rejects unknown runtimes", func(t *testing.T) {
		cfg := config.DefaultProjectConfig("demo")
		cfg.Runtime = "cobol"
		require.ErrorContains(t, config.ValidateProject(cfg), "unsupported runtime")
	})
}
