package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	controllers "devver/internal/api/controllers"
	"devver/internal/models"
)

type okStore struct{}

func (okStore) Ping(context.Context) error { return nil }
func (okStore) GetBranches(context.Context, string) ([]models.Branch, error) {
	return nil, nil
}

type noop struct{}

func (noop) Deploy(context.Context, models.DeployRequest, models.DeploymentConfig) (models.DeployResult, error) {
	return models.DeployResult{Success: true}, nil
}
func (noop) Setup(context.Context, models.DeploymentConfig) models.SetupResult {
	return models.SetupResult{Success: true}
}
func (noop) ListDeployments(context.Context, string) ([]models.DeploymentInfo, error) {
	return nil, nil
}

func TestSetupRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, _ := logtest.NewNullLogger()

	r := SetupRouter(logger, Controllers{
		Health:      controllers.NewHealthController(okStore{}),
		Setup:       controllers.NewSetupController(noop{}),
		Deploy:      controllers.NewDeployController(noop{}),
		Branches:    controllers.NewBranchesController(okStore{}),
		Deployments: controllers.NewDeploymentsController(noop{}),
	})

	for _, tt := range []struct {
		method, path string
		status       int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/branches/demo", http.StatusOK},
		{http.MethodGet, "/api/deployments/demo", http.StatusOK},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		require.Equal(t, tt.status, w.Code, tt.path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/branches/demo", nil))
	require.JSONEq(t, `{"branches":[]}`, w.Body.String())
}
