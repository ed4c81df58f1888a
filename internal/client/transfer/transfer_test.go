package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"devver/internal/models"
)

func TestDeploy(t *testing.T) {
	var got models.DeployBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/deploy" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(models.DeployResult{Success: true, URL: "http://localhost:7802", FilesChanged: 1})
	}))
	defer srv.Close()

	req := models.DeployRequest{
		Project:      "demo",
		Branch:       "main",
		CommitHash:   "abc123ef",
		Files:        []models.DeployFile{{Path: "bin.dat", Hash: "h", Content: []byte{0, 1, 2, 255}}},
		DeletedFiles: []string{},
	}
	result, err := New(srv.URL+"/").Deploy(context.Background(), req, models.DeploymentConfig{Project: "demo"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "http://localhost:7802", result.URL)
	require.Equal(t, []byte{0, 1, 2, 255}, got.Request.Files[0].Content)
	require.Equal(t, "demo", got.Config.Project)
}

func TestDeployFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"success":false,"message":"Build failed"}`))
	}))
	defer srv.Close()

	result, err := New(srv.URL).Deploy(context.Background(), models.DeployRequest{}, models.DeploymentConfig{})

	var transferErr *Error
	require.True(t, errors.As(err, &transferErr))
	require.Equal(t, http.StatusUnprocessableEntity, transferErr.StatusCode)
	require.Equal(t, "Build failed", transferErr.Message)
	require.False(t, result.Success)
	require.Equal(t, "Build failed", result.Message)
}

func TestMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>proxy error</html>`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Branches(context.Background(), "demo")
	var transferErr *Error
	require.True(t, errors.As(err, &transferErr))
	require.Equal(t, "malformed response body", transferErr.Message)
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL).Health(context.Background())
	var transferErr *Error
	require.True(t, errors.As(err, &transferErr))
	require.Equal(t, http.StatusBadGateway, transferErr.StatusCode)
	require.Equal(t, "bad gateway", transferErr.Message)
}

func TestConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := New(srv.URL).Branches(context.Background(), "demo")
	var transferErr *Error
	require.True(t, errors.As(err, &transferErr))
	require.Zero(t, transferErr.StatusCode)
}

func TestListEndpoints(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/api/branches/demo":
			_, _ = w.Write([]byte(`{"branches":[{"branch":"main","commitHash":"abc123ef","lastDeployedAt":"2026-01-01T00:00:00Z"}]}`))
		case "/api/deployments/demo":
			_, _ = w.Write([]byte(`{"deployments":[{"project":"demo","branch":"main","commitHash":"abc123ef","commitShort":"abc123ef","url":"http://localhost:7802","port":7802,"status":"online","lastDeployedAt":"2026-01-01T00:00:00Z","pid":42}]}`))
		case "/api/setup":
			_, _ = w.Write([]byte(`{"success":true,"message":"Project setup successful","path":"/tmp/devver-apps/demo"}`))
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok","database":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	client := New(srv.URL)

	branches, err := client.Branches(ctx, "demo")
	require.NoError(t, err)
	require.Equal(t, []models.BranchSummary{{Branch: "main", CommitHash: "abc123ef", LastDeployedAt: "2026-01-01T00:00:00Z"}}, branches)

	deployments, err := client.Deployments(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, deployments, 1)
	require.Equal(t, models.ProcessStatusOnline, deployments[0].Status)

	setup, err := client.Setup(ctx, models.DeploymentConfig{Project: "demo"})
	require.NoError(t, err)
	require.Equal(t, "/tmp/devver-apps/demo", setup.Path)

	require.NoError(t, client.Health(ctx))
	require.EqualValues(t, 4, calls.Load(), "no retries")
}
