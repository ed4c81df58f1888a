package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config 구조체는 배포 서버 설정을 저장합니다.
type Config struct {
	Port     string // 서버가 실행될 포트
	GinMode  string // Gin 모드 (debug/release)
	HostName string // 배포 서브도메인의 상위 도메인 (예: <project>-<short>.localhost)
	LogLevel string

	AppsRoot      string // 프로젝트 checkout 과 배포 디렉토리의 루트
	NginxSitesDir string // nginx sites-enabled 디렉토리, 없으면 라우팅 생략

	PortBase  int // 배포 포트 범위 시작
	PortRange int // 배포 포트 범위 크기

	ProcessSettleDelay time.Duration // 프로세스 시작 후 상태 재확인까지 대기
	CommandTimeout     time.Duration // install/build 명령 타임아웃

	DB_Driver   string // sqlite 또는 postgres
	DB_Path     string // sqlite 파일 경로
	DB_Name     string // 데이터베이스 이름
	DB_User     string // 데이터베이스 사용자
	DB_Password string // 데이터베이스 비밀번호
	DB_Host     string // 데이터베이스 호스트
	DB_Port     string // 데이터베이스 포트
}

// Load 함수는 환경 변수에서 설정을 읽어 Config 구조체를 반환합니다.
func Load() *Config {
	// .env 파일 로드 (로컬 개발 환경용)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (로컬 .env 파일 없음 - 환경 변수 사용)")
	}

	appsRoot := getEnv("APPS_ROOT", "/tmp/devver-apps")

	return &Config{
		Port:     getEnv("PORT", "3333"),
		GinMode:  getEnv("GIN_MODE", "release"),
		HostName: getEnv("HOST_NAME", "localhost"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AppsRoot:      appsRoot,
		NginxSitesDir: getEnv("NGINX_SITES_DIR", "/etc/nginx/sites-enabled"),

		PortBase:  getEnvInt("PORT_BASE", 4000),
		PortRange: getEnvInt("PORT_RANGE", 10000),

		ProcessSettleDelay: getEnvDuration("PROCESS_SETTLE_DELAY", 2*time.Second),
		CommandTimeout:     getEnvDuration("COMMAND_TIMEOUT", 10*time.Minute),

		DB_Driver:   getEnv("DB_DRIVER", "sqlite"),
		DB_Path:     getEnv("DB_PATH", filepath.Join(appsRoot, "devver.db")),
		DB_Name:     getEnv("DB_NAME", "postgres"),
		DB_User:     getEnv("DB_USER", "postgres"),
		DB_Password: getEnv("DB_PASSWORD", "postgres"),
		DB_Host:     getEnv("DB_HOST", "localhost"),
		DB_Port:     getEnv("DB_PORT", "5432"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		log.Printf("Invalid %s=%q, using default %d", key, value, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		log.Printf("Invalid %s=%q, using default %s", key, value, fallback)
		return fallback
	}
	return d
}
