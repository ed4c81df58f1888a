package models

import "time"

type EnumRuntime string

const (
	RuntimeBun    EnumRuntime = "bun"
	RuntimeNode   EnumRuntime = "node"
	RuntimePython EnumRuntime = "python"
	RuntimeGo     EnumRuntime = "go"
	RuntimeStatic EnumRuntime = "static"
)

// Valid reports whether r is one of the supported runtime kinds.
func (r EnumRuntime) Valid() bool {
	switch r {
	case RuntimeBun, RuntimeNode, RuntimePython, RuntimeGo, RuntimeStatic:
		return true
	}
	return false
}

// ContainerTarget 는 배포 서버가 실행되는 호스트 정보입니다.
type ContainerTarget struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
	User string `json:"user" yaml:"user"`
}

type HealthCheck struct {
	Path string `json:"path" yaml:"path"`
	// Timeout in milliseconds.
	Timeout int `json:"timeout" yaml:"timeout"`
}

func (h *HealthCheck) TimeoutDuration() time.Duration {
	if h == nil || h.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(h.Timeout) * time.Millisecond
}

// DeploymentConfig 는 프로젝트별 설정 파일(devver.config.json)의 내용이며
// 배포 요청과 함께 서버로 전달됩니다.
type DeploymentConfig struct {
	Project      string            `json:"project" yaml:"project"`
	Repository   string            `json:"repository,omitempty" yaml:"repository,omitempty"`
	Container    ContainerTarget   `json:"container" yaml:"container"`
	Runtime      EnumRuntime       `json:"runtime" yaml:"runtime"`
	BuildCommand string            `json:"buildCommand,omitempty" yaml:"buildCommand,omitempty"`
	StartCommand string            `json:"startCommand" yaml:"startCommand"`
	HealthCheck  *HealthCheck      `json:"healthCheck,omitempty" yaml:"healthCheck,omitempty"`
	Ignore       []string          `json:"ignore" yaml:"ignore"`
	Env          map[string]string `json:"env" yaml:"env"`
}

// InstallCommand returns the dependency install argv of the runtime, or nil
// when the runtime has nothing to install. An empty runtime installs with bun.
func (r EnumRuntime) InstallCommand() []string {
	switch r {
	case RuntimeBun, "":
		return []string{"bun", "install"}
	case RuntimeNode:
		return []string{"npm", "install"}
	case RuntimePython:
		return []string{"pip", "install", "-r", "requirements.txt"}
	case RuntimeGo:
		return []string{"go", "mod", "download"}
	}
	return nil
}
