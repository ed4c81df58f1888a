package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"devver/internal/models"
)

// ProjectConfigFile is the default per-project config file name.
const ProjectConfigFile = "devver.config.json"

// projectConfigCandidates are probed in order by FindProjectConfig.
var projectConfigCandidates = []string{ProjectConfigFile, "devver.config.yaml", "devver.config.yml"}

var ErrProjectConfigExists = errors.New("project config already exists")

// DefaultProjectConfig returns the config written by `devver init`.
func DefaultProjectConfig(project string) models.DeploymentConfig {
	return models.DeploymentConfig{
		Project: project,
		Container: models.ContainerTarget{
			Host: "localhost",
			Port: 22,
			User: "deploy",
		},
		Runtime:      models.RuntimeBun,
		StartCommand: "bun run src/main.ts",
		Ignore: []string{
			"node_modules/**",
			".git/**",
			"*.log",
			"dist/**",
			".env*",
			"*.test.ts",
			"coverage/**",
		},
		Env: map[string]string{
			"NODE_ENV": "development",
		},
	}
}

// FindProjectConfig returns the first existing config file in dir.
func FindProjectConfig(dir string) (string, bool) {
	for _, name := range projectConfigCandidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return filepath.Join(dir, ProjectConfigFile), false
}

// LoadProject reads a project config. JSON is a subset of YAML, so one
// decoder serves every candidate file format.
func LoadProject(path string) (models.DeploymentConfig, error) {
	var cfg models.DeploymentConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Env == nil {
		cfg.Env = map[string]string{}
	}
	if err := ValidateProject(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// SaveProject writes cfg as indented JSON, or YAML when path ends in .yaml/.yml.
func SaveProject(path string, cfg models.DeploymentConfig) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		data, err = json.MarshalIndent(cfg, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// InitProject writes the default config unless one already exists.
func InitProject(dir, project string) (string, models.DeploymentConfig, error) {
	if path, ok := FindProjectConfig(dir); ok {
		return path, models.DeploymentConfig{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrProjectConfigExists)
	}

	path := filepath.Join(dir, ProjectConfigFile)
	cfg := DefaultProjectConfig(project)
	if err := SaveProject(path, cfg); err != nil {
		return path, cfg, fmt.Errorf("failed to create config file: %w", err)
	}
	return path, cfg, nil
}

// ValidateProject checks the fields every deployment needs.
func ValidateProject(cfg models.DeploymentConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return errors.New("project is required")
	}
	if strings.TrimSpace(cfg.StartCommand) == "" {
		return errors.New("startCommand is required")
	}
	if cfg.Runtime != "" && !cfg.Runtime.Valid() {
		return fmt.Errorf("unsupported runtime %q", cfg.Runtime)
	}
	return nil
}
