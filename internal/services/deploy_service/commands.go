package deployservice

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"devver/internal/models"
	"devver/internal/runner"

	"github.com/google/shlex"
	"k8s.io/apimachinery/pkg/util/wait"
)

// healthPollInterval is the delay between health check probes.
const healthPollInterval = 500 * time.Millisecond

// runStep runs argv in dir under the command timeout and returns an error for
// anything but a zero exit.
func (deployService *DeployService) runStep(ctx context.Context, dir string, argv []string, env map[string]string) error {
	if deployService.commandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deployService.commandTimeout)
		defer cancel()
	}

	cmd := runner.Command{Name: argv[0], Args: argv[1:], Dir: dir, Env: mergeEnv(os.Environ(), env)}
	result, err := deployService.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if !result.Success() {
		return fmt.Errorf("%s exited %d: %s", cmd, result.ExitCode, tail(result.Stderr))
	}
	return nil
}

func (deployService *DeployService) install(ctx context.Context, dir string, cfg models.DeploymentConfig) (bool, error) {
	argv := cfg.Runtime.InstallCommand()
	if argv == nil {
		return false, nil
	}
	return true, deployService.runStep(ctx, dir, argv, cfg.Env)
}

func (deployService *DeployService) build(ctx context.Context, dir string, cfg models.DeploymentConfig) error {
	argv, err := shlex.Split(cfg.BuildCommand)
	if err != nil {
		return fmt.Errorf("invalid build command %q: %w", cfg.BuildCommand, err)
	}
	if len(argv) == 0 {
		return nil
	}
	return deployService.runStep(ctx, dir, argv, cfg.Env)
}

// checkHealth polls the deployment until it answers 2xx or the configured
// timeout passes.
func (deployService *DeployService) checkHealth(ctx context.Context, port int, check *models.HealthCheck) error {
	url := deployService.healthURL(port, check.Path)
	client := &http.Client{Timeout: 2 * time.Second}

	return wait.PollUntilContextTimeout(ctx, healthPollInterval, check.TimeoutDuration(), true,
		func(ctx context.Context) (bool, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return false, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return false, nil
			}
			resp.Body.Close()
			return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
		})
}

func defaultHealthURL(port int, path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
}

// mergeEnv appends env to base in key order.
func mergeEnv(base []string, env map[string]string) []string {
	out := append([]string{}, base...)
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}

// tail keeps the last lines of command output for error messages.
func tail(output []byte) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
