package controllers

import (
	"context"
	"errors"
	"net/http"

	"devver/internal/models"
	deployservice "devver/internal/services/deploy_service"

	"github.com/gin-gonic/gin"
)

type Deployer interface {
	Deploy(ctx context.Context, req models.DeployRequest, cfg models.DeploymentConfig) (models.DeployResult, error)
}

type DeployController struct {
	deployer Deployer
}

func NewDeployController(deployer Deployer) *DeployController {
	return &DeployController{deployer: deployer}
}

func (dc *DeployController) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/deploy", dc.Deploy)
}

// Deploy 는 배포가 끝날 때까지 요청을 붙잡고 결과를 반환합니다.
// 실패해도 항상 DeployResult 형태의 본문을 반환합니다.
func (dc *DeployController) Deploy(c *gin.Context) {
	var body models.DeployBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, models.DeployResult{Success: false, Message: "Invalid request body: " + err.Error()})
		return
	}

	result, err := dc.deployer.Deploy(c.Request.Context(), body.Request, body.Config)
	if err != nil {
		c.JSON(statusFor(err), result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func statusFor(err error) int {
	var deployErr *deployservice.DeployError
	if !errors.As(err, &deployErr) {
		return http.StatusInternalServerError
	}
	switch deployErr.Kind {
	case deployservice.KindValidation:
		return http.StatusBadRequest
	case deployservice.KindInstall, deployservice.KindBuild:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
