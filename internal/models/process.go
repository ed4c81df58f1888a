package models

type EnumProcessStatus string

const (
	ProcessStatusOnline  EnumProcessStatus = "online"
	ProcessStatusStopped EnumProcessStatus = "stopped"
	ProcessStatusError   EnumProcessStatus = "error"
)

// ProcessInfo 는 프로세스 매니저(pm2)가 보고한 배포 프로세스의 상태입니다.
type ProcessInfo struct {
	Name   string            `json:"name"`
	PID    int               `json:"pid,omitempty"`
	Status EnumProcessStatus `json:"status"`
	Port   int               `json:"port"`
}
