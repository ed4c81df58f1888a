package processservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"devver/internal/keylock"
	"devver/internal/models"
	"devver/internal/runner"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

var ErrInvalidCommand = errors.New("invalid start command")

const pm2Binary = "pm2"

// ProcessService 는 pm2 를 통해 배포 프로세스를 시작/조회/정지합니다.
// 같은 프로세스 이름에 대한 작업은 직렬화됩니다.
type ProcessService struct {
	runner      runner.Runner
	settleDelay time.Duration
	locks       *keylock.KeyLock
	log         logrus.FieldLogger
	environ     func() []string
}

func NewProcessService(run runner.Runner, settleDelay time.Duration, log logrus.FieldLogger) *ProcessService {
	return &ProcessService{
		runner:      run,
		settleDelay: settleDelay,
		locks:       keylock.New(),
		log:         log,
		environ:     os.Environ,
	}
}

// StartOrReplace (re)creates the named process in cwd listening on port.
// A status other than online after the settle delay is only logged.
func (processService *ProcessService) StartOrReplace(ctx context.Context, name, cwd, command string, port int, env map[string]string) (models.ProcessInfo, error) {
	unlock := processService.locks.Lock(name)
	defer unlock()

	log := processService.log.WithFields(logrus.Fields{"process": name, "port": port})

	argv, err := shlex.Split(command)
	if err != nil || len(argv) == 0 || argv[0] == "" {
		return models.ProcessInfo{}, fmt.Errorf("%w: %q", ErrInvalidCommand, command)
	}

	// 기존 프로세스가 있으면 삭제 후 재생성 (command/cwd/env 갱신)
	describe, err := processService.pm2(ctx, "", nil, "describe", name)
	if err != nil {
		return models.ProcessInfo{}, err
	}
	if describe.Success() {
		log.Info("Process exists, deleting and recreating (기존 프로세스 삭제 후 재생성)")
		if _, err := processService.pm2(ctx, "", nil, "delete", name); err != nil {
			return models.ProcessInfo{}, err
		}
	}

	args := []string{"start", argv[0], "--name", name, "--cwd", cwd}
	if len(argv) > 1 {
		args = append(args, "--")
		args = append(args, argv[1:]...)
	}

	log.WithField("command", command).Info("Starting process")
	start, err := processService.pm2(ctx, cwd, processService.processEnv(env, port), args...)
	if err != nil {
		return models.ProcessInfo{}, err
	}
	if !start.Success() {
		return models.ProcessInfo{}, fmt.Errorf("failed to start process %s (exit %d): %s",
			name, start.ExitCode, strings.TrimSpace(string(start.Stderr)))
	}

	if save, err := processService.pm2(ctx, "", nil, "save"); err != nil || !save.Success() {
		log.Warn("pm2 save failed, process list will not survive a pm2 restart")
	}

	if processService.settleDelay > 0 {
		select {
		case <-ctx.Done():
			return models.ProcessInfo{}, ctx.Err()
		case <-time.After(processService.settleDelay):
		}
	}

	info, err := processService.getStatus(ctx, name)
	if err != nil {
		log.WithError(err).Warn("Could not verify process status")
		return models.ProcessInfo{Name: name, Status: models.ProcessStatusStopped, Port: port}, nil
	}
	if info.Port == 0 {
		info.Port = port
	}
	if info.Status != models.ProcessStatusOnline {
		log.WithField("status", info.Status).Warnf("Process is not online, check logs with: pm2 logs %s", name)
	} else {
		log.WithField("pid", info.PID).Info("Process verified running")
	}
	return info, nil
}

// GetStatus reports the process state. An unknown name is stopped, not an error.
func (processService *ProcessService) GetStatus(ctx context.Context, name string) (models.ProcessInfo, error) {
	return processService.getStatus(ctx, name)
}

// Stop is best-effort: a missing process is not an error.
func (processService *ProcessService) Stop(ctx context.Context, name string) error {
	unlock := processService.locks.Lock(name)
	defer unlock()

	result, err := processService.pm2(ctx, "", nil, "stop", name)
	if err != nil {
		return err
	}
	if !result.Success() {
		processService.log.WithField("process", name).Debug("pm2 stop exited non-zero, ignoring")
	}
	return nil
}

// Delete is best-effort: a missing process is not an error.
func (processService *ProcessService) Delete(ctx context.Context, name string) error {
	unlock := processService.locks.Lock(name)
	defer unlock()

	result, err := processService.pm2(ctx, "", nil, "delete", name)
	if err != nil {
		return err
	}
	if !result.Success() {
		processService.log.WithField("process", name).Debug("pm2 delete exited non-zero, ignoring")
	}
	return nil
}

type jlistEntry struct {
	Name   string `json:"name"`
	PID    int    `json:"pid"`
	PM2Env struct {
		Status string `json:"status"`
		Port   any    `json:"PORT"`
	} `json:"pm2_env"`
}

func (processService *ProcessService) getStatus(ctx context.Context, name string) (models.ProcessInfo, error) {
	stopped := models.ProcessInfo{Name: name, Status: models.ProcessStatusStopped}

	result, err := processService.pm2(ctx, "", nil, "jlist")
	if err != nil {
		return stopped, err
	}
	if !result.Success() {
		return stopped, fmt.Errorf("pm2 jlist exited %d", result.ExitCode)
	}

	var entries []jlistEntry
	if err := json.Unmarshal(result.Stdout, &entries); err != nil {
		return stopped, fmt.Errorf("failed to parse pm2 jlist: %w", err)
	}

	for _, entry := range entries {
		if entry.Name != name {
			continue
		}
		return models.ProcessInfo{
			Name:   entry.Name,
			PID:    entry.PID,
			Status: toStatus(entry.PM2Env.Status),
			Port:   toPort(entry.PM2Env.Port),
		}, nil
	}
	return stopped, nil
}

func toStatus(status string) models.EnumProcessStatus {
	switch status {
	case "online":
		return models.ProcessStatusOnline
	case "errored":
		return models.ProcessStatusError
	default:
		return models.ProcessStatusStopped
	}
}

// pm2 stores env values as given, so PORT may be a string or a number.
func toPort(v any) int {
	switch p := v.(type) {
	case float64:
		return int(p)
	case string:
		n, _ := strconv.Atoi(p)
		return n
	}
	return 0
}

// processEnv merges server env, caller env and the deployment port.
func (processService *ProcessService) processEnv(env map[string]string, port int) []string {
	out := append([]string{}, processService.environ()...)

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}

	return append(out, "PORT="+strconv.Itoa(port), "NODE_ENV=production")
}

func (processService *ProcessService) pm2(ctx context.Context, dir string, env []string, args ...string) (runner.Result, error) {
	result, err := processService.runner.Run(ctx, runner.Command{Name: pm2Binary, Args: args, Dir: dir, Env: env})
	if err != nil {
		return result, fmt.Errorf("pm2 %s: %w", strings.Join(args, " "), err)
	}
	return result, nil
}
