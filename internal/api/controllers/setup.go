package controllers

import (
	"context"
	"net/http"

	"devver/internal/models"

	"github.com/gin-gonic/gin"
)

type ProjectSetup interface {
	Setup(ctx context.Context, cfg models.DeploymentConfig) models.SetupResult
}

type SetupController struct {
	setup ProjectSetup
}

func NewSetupController(setup ProjectSetup) *SetupController {
	return &SetupController{setup: setup}
}

func (sc *SetupController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/setup", sc.Setup)
}

func (sc *SetupController) Setup(c *gin.Context) {
	var cfg models.DeploymentConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, models.SetupResult{Success: false, Message: "Invalid request body: " + err.Error()})
		return
	}

	result := sc.setup.Setup(c.Request.Context(), cfg)
	if !result.Success {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}
