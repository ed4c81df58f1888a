package controllers

import (
	"context"
	"net/http"

	"devver/internal/models"

	"github.com/gin-gonic/gin"
)

type DeploymentLister interface {
	ListDeployments(ctx context.Context, project string) ([]models.DeploymentInfo, error)
}

type DeploymentsController struct {
	lister DeploymentLister
}

func NewDeploymentsController(lister DeploymentLister) *DeploymentsController {
	return &DeploymentsController{lister: lister}
}

func (dc *DeploymentsController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/deployments/:project", dc.List)
}

func (dc *DeploymentsController) List(c *gin.Context) {
	project := c.Param("project")
	if !validProject(c, project) {
		return
	}

	deployments, err := dc.lister.ListDeployments(c.Request.Context(), project)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.DeploymentsListResponse{Deployments: deployments})
}
