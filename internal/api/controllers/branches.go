package controllers

import (
	"context"
	"net/http"
	"time"

	"devver/internal/models"

	"github.com/gin-gonic/gin"
	"k8s.io/apimachinery/pkg/util/validation"
)

type BranchLister interface {
	GetBranches(ctx context.Context, project string) ([]models.Branch, error)
}

type BranchesController struct {
	store BranchLister
}

func NewBranchesController(store BranchLister) *BranchesController {
	return &BranchesController{store: store}
}

func (bc *BranchesController) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/branches/:project", bc.List)
}

// List returns the project's branches, most recently deployed first.
func (bc *BranchesController) List(c *gin.Context) {
	project := c.Param("project")
	if !validProject(c, project) {
		return
	}

	branches, err := bc.store.GetBranches(c.Request.Context(), project)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": err.Error()})
		return
	}

	summaries := make([]models.BranchSummary, 0, len(branches))
	for _, b := range branches {
		summaries = append(summaries, models.BranchSummary{
			Branch:         b.Branch,
			CommitHash:     b.CommitHash,
			LastDeployedAt: b.LastDeployedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, models.BranchListResponse{Branches: summaries})
}

// validProject 는 프로젝트 이름이 DNS-1123 label 인지 확인하고, 아니면 400 을 응답합니다.
func validProject(c *gin.Context, project string) bool {
	if errs := validation.IsDNS1123Label(project); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid project name"})
		return false
	}
	return true
}
