package routes

import (
	controllers "devver/internal/api/controllers"
	"devver/internal/middleware"

	gin "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Controllers groups the handlers mounted by SetupRouter.
type Controllers struct {
	Health      *controllers.HealthController
	Setup       *controllers.SetupController
	Deploy      *controllers.DeployController
	Branches    *controllers.BranchesController
	Deployments *controllers.DeploymentsController
}

func SetupRouter(log logrus.FieldLogger, c Controllers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(log), gin.Recovery())

	// Health Check
	c.Health.RegisterRoutes(r.Group("/"))

	// Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API Group
	api := r.Group("/api")
	c.Setup.RegisterRoutes(api)
	c.Deploy.RegisterRoutes(api)
	c.Branches.RegisterRoutes(api)
	c.Deployments.RegisterRoutes(api)

	return r
}
