package processservice

import (
	"context"
	"slices"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"devver/internal/models"
	"devver/internal/runner"
)

// fakePM2 scripts pm2 subcommands; jlist returns the given JSON.
func fakePM2(existing bool, startExit int, jlist string) *runner.Fake {
	return &runner.Fake{Handler: func(cmd runner.Command) (runner.Result, error) {
		switch cmd.Args[0] {
		case "describe":
			if existing {
				return runner.Result{}, nil
			}
			return runner.Result{ExitCode: 1}, nil
		case "start":
			return runner.Result{ExitCode: startExit, Stderr: []byte("boom")}, nil
		case "jlist":
			return runner.Result{Stdout: []byte(jlist)}, nil
		}
		return runner.Result{}, nil
	}}
}

func newTestService(run runner.Runner) (*ProcessService, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	svc := NewProcessService(run, 0, logger)
	svc.environ = func() []string { return []string{"PATH=/usr/bin"} }
	return svc, hook
}

func subcommands(calls []runner.Command) []string {
	var out []string
	for _, c := range calls {
		out = append(out, c.Args[0])
	}
	return out
}

const onlineList = `[{"name":"demo-abc123ef","pid":4242,"pm2_env":{"status":"online","PORT":"5123"}}]`

func TestStartOrReplace(t *testing.T) {
	ctx := context.Background()

	t.Run("starts a new process with merged env", func(t *testing.T) {
		run := fakePM2(false, 0, onlineList)
		svc, _ := newTestService(run)

		info, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/apps/demo/deployments/abc123ef",
			"bun run src/main.ts", 5123, map[string]string{"B": "2", "A": "1"})
		require.NoError(t, err)
		require.Equal(t, models.ProcessInfo{Name: "demo-abc123ef", PID: 4242, Status: models.ProcessStatusOnline, Port: 5123}, info)

		calls := run.Commands()
		require.Equal(t, []string{"describe", "start", "save", "jlist"}, subcommands(calls))

		start := calls[1]
		require.Equal(t, []string{"start", "bun", "--name", "demo-abc123ef", "--cwd", "/apps/demo/deployments/abc123ef", "--", "run", "src/main.ts"}, start.Args)
		require.Equal(t, []string{"PATH=/usr/bin", "A=1", "B=2", "PORT=5123", "NODE_ENV=production"}, start.Env)
	})

	t.Run("deletes an existing process first", func(t *testing.T) {
		run := fakePM2(true, 0, onlineList)
		svc, _ := newTestService(run)

		_, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/tmp", "node server.js", 5123, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"describe", "delete", "start", "save", "jlist"}, subcommands(run.Commands()))
	})

	t.Run("quoted arguments survive splitting", func(t *testing.T) {
		run := fakePM2(false, 0, onlineList)
		svc, _ := newTestService(run)

		_, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/tmp", `python -c "print('hi there')"`, 5123, nil)
		require.NoError(t, err)
		require.Equal(t, []string{"-c", "print('hi there')"}, run.Commands()[1].Args[7:])
	})

	t.Run("rejects empty commands", func(t *testing.T) {
		run := fakePM2(false, 0, onlineList)
		svc, _ := newTestService(run)

		_, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/tmp", "   ", 5123, nil)
		require.ErrorIs(t, err, ErrInvalidCommand)
		require.Empty(t, run.Commands())
	})

	t.Run("non-zero start is an error", func(t *testing.T) {
		run := fakePM2(false, 1, onlineList)
		svc, _ := newTestService(run)

		_, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/tmp", "bun run start", 5123, nil)
		require.ErrorContains(t, err, "failed to start process demo-abc123ef")
		require.Equal(t, []string{"describe", "start"}, subcommands(run.Commands()))
	})

	t.Run("crashed process is only a warning", func(t *testing.T) {
		run := fakePM2(false, 0, `[{"name":"demo-abc123ef","pid":0,"pm2_env":{"status":"errored"}}]`)
		svc, hook := newTestService(run)

		info, err := svc.StartOrReplace(ctx, "demo-abc123ef", "/tmp", "bun run start", 5123, nil)
		require.NoError(t, err)
		require.Equal(t, models.ProcessStatusError, info.Status)
		require.Equal(t, 5123, info.Port)
		require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})
}

func TestGetStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("absent process is stopped", func(t *testing.T) {
		svc, _ := newTestService(fakePM2(false, 0, `[]`))

		info, err := svc.GetStatus(ctx, "demo-00000000")
		require.NoError(t, err)
		require.Equal(t, models.ProcessStatusStopped, info.Status)
	})

	t.Run("numeric port and stopped status", func(t *testing.T) {
		svc, _ := newTestService(fakePM2(false, 0, `[{"name":"x","pid":7,"pm2_env":{"status":"stopping","PORT":4001}}]`))

		info, err := svc.GetStatus(ctx, "x")
		require.NoError(t, err)
		require.Equal(t, models.ProcessInfo{Name: "x", PID: 7, Status: models.ProcessStatusStopped, Port: 4001}, info)
	})

	t.Run("garbage output is an error", func(t *testing.T) {
		svc, _ := newTestService(fakePM2(false, 0, `pm2 daemon not running`))

		_, err := svc.GetStatus(ctx, "x")
		require.Error(t, err)
	})
}

func TestStopAndDelete(t *testing.T) {
	run := &runner.Fake{Handler: func(cmd runner.Command) (runner.Result, error) {
		return runner.Result{ExitCode: 1}, nil
	}}
	svc, _ := newTestService(run)

	require.NoError(t, svc.Stop(context.Background(), "missing"))
	require.NoError(t, svc.Delete(context.Background(), "missing"))
	require.True(t, slices.Equal([]string{"stop", "delete"}, subcommands(run.Commands())))
}
