package routingservice

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"devver/internal/runner"
)

func newTestService(sitesDir string, run runner.Runner) *RoutingService {
	logger, _ := logtest.NewNullLogger()
	return NewRoutingService(run, sitesDir, "localhost", logger)
}

func TestGenerateConfig(t *testing.T) {
	svc := newTestService("", &runner.Fake{})

	conf, err := svc.GenerateConfig("demo", "abc123ef", 5123)
	require.NoError(t, err)
	require.Contains(t, conf, "server_name demo-abc123ef.localhost;")
	require.Contains(t, conf, "proxy_pass http://127.0.0.1:5123;")
	for _, header := range []string{"Upgrade", "Connection", "Host", "X-Real-IP", "X-Forwarded-For", "X-Forwarded-Proto"} {
		require.Contains(t, conf, "proxy_set_header "+header+" ")
	}
}

func TestWriteAndReload(t *testing.T) {
	ctx := context.Background()

	t.Run("missing sites dir is not configured", func(t *testing.T) {
		run := &runner.Fake{}
		svc := newTestService(filepath.Join(t.TempDir(), "absent"), run)

		routed, err := svc.WriteAndReload(ctx, "demo", "abc123ef", 5123)
		require.NoError(t, err)
		require.False(t, routed)
		require.False(t, svc.Available())
		require.Empty(t, run.Commands())
		require.Equal(t, "http://localhost:5123", svc.URL("demo", "abc123ef", 5123, routed))
	})

	t.Run("writes the route and reloads nginx", func(t *testing.T) {
		sites := t.TempDir()
		run := &runner.Fake{}
		svc := newTestService(sites, run)

		routed, err := svc.WriteAndReload(ctx, "demo", "abc123ef", 5123)
		require.NoError(t, err)
		require.True(t, routed)

		data, err := os.ReadFile(filepath.Join(sites, "demo-abc123ef.conf"))
		require.NoError(t, err)
		require.Contains(t, string(data), "proxy_pass http://127.0.0.1:5123;")

		calls := run.Commands()
		require.Len(t, calls, 1)
		require.Equal(t, "nginx -s reload", calls[0].String())
		require.Equal(t, "http://demo-abc123ef.localhost", svc.URL("demo", "abc123ef", 5123, routed))
	})

	t.Run("failed reload is reported", func(t *testing.T) {
		run := &runner.Fake{Handler: func(runner.Command) (runner.Result, error) {
			return runner.Result{ExitCode: 1, Stderr: []byte("nginx: [error] invalid PID number")}, nil
		}}
		svc := newTestService(t.TempDir(), run)

		routed, err := svc.WriteAndReload(ctx, "demo", "abc123ef", 5123)
		require.ErrorContains(t, err, "invalid PID number")
		require.False(t, routed)
	})
}
