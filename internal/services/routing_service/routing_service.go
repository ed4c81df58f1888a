package routingservice

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"devver/internal/runner"

	"github.com/sirupsen/logrus"
)

var serverBlock = template.Must(template.New("nginx").Parse(`server {
  listen 80;
  server_name {{ .ServerName }};

  location / {
    proxy_pass http://127.0.0.1:{{ .Port }};
    proxy_http_version 1.1;
    proxy_set_header Upgrade $http_upgrade;
    proxy_set_header Connection 'upgrade';
    proxy_set_header Host $host;
    proxy_set_header X-Real-IP $remote_addr;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;
    proxy_cache_bypass $http_upgrade;
  }
}
`))

// RoutingService 는 배포마다 nginx 서브도메인 라우트를 등록합니다.
// sites 디렉토리가 없는 호스트에서는 라우팅을 생략하고 포트로 직접 접근합니다.
type RoutingService struct {
	runner   runner.Runner
	sitesDir string
	hostName string
	log      logrus.FieldLogger
}

func NewRoutingService(run runner.Runner, sitesDir, hostName string, log logrus.FieldLogger) *RoutingService {
	return &RoutingService{runner: run, sitesDir: sitesDir, hostName: hostName, log: log}
}

// Subdomain returns the virtual host of a deployment.
func (routingService *RoutingService) Subdomain(project, short string) string {
	return fmt.Sprintf("%s-%s.%s", project, short, routingService.hostName)
}

// GenerateConfig renders the nginx server block of one deployment.
func (routingService *RoutingService) GenerateConfig(project, short string, port int) (string, error) {
	var buf bytes.Buffer
	err := serverBlock.Execute(&buf, struct {
		ServerName string
		Port       int
	}{routingService.Subdomain(project, short), port})
	if err != nil {
		return "", fmt.Errorf("failed to render nginx config: %w", err)
	}
	return buf.String(), nil
}

// Available reports whether the sites directory exists on this host.
func (routingService *RoutingService) Available() bool {
	if routingService.sitesDir == "" {
		return false
	}
	info, err := os.Stat(routingService.sitesDir)
	return err == nil && info.IsDir()
}

// ConfigPath is where the route of a deployment is written.
func (routingService *RoutingService) ConfigPath(project, short string) string {
	return filepath.Join(routingService.sitesDir, project+"-"+short+".conf")
}

// WriteAndReload writes the route and reloads nginx. It returns false with a
// nil error when routing is not configured on this host.
func (routingService *RoutingService) WriteAndReload(ctx context.Context, project, short string, port int) (bool, error) {
	if !routingService.Available() {
		routingService.log.WithField("sites_dir", routingService.sitesDir).
			Warn("Nginx sites directory not found, skipping nginx config (포트로 직접 접근)")
		return false, nil
	}

	conf, err := routingService.GenerateConfig(project, short, port)
	if err != nil {
		return false, err
	}

	path := routingService.ConfigPath(project, short)
	if err := os.WriteFile(path, []byte(conf), 0644); err != nil {
		return false, fmt.Errorf("failed to write nginx config %s: %w", path, err)
	}
	routingService.log.WithField("path", path).Info("Wrote nginx config, reloading nginx")

	result, err := routingService.runner.Run(ctx, runner.Command{Name: "nginx", Args: []string{"-s", "reload"}})
	if err != nil {
		return false, fmt.Errorf("failed to reload nginx: %w", err)
	}
	if !result.Success() {
		return false, fmt.Errorf("nginx reload exited %d: %s", result.ExitCode, strings.TrimSpace(string(result.Stderr)))
	}
	return true, nil
}

// URL is the subdomain URL when routed, otherwise the direct port.
func (routingService *RoutingService) URL(project, short string, port int, routed bool) string {
	if routed {
		return "http://" + routingService.Subdomain(project, short)
	}
	return fmt.Sprintf("http://localhost:%d", port)
}
