package controller

import (
	"context"
	"strconv"

	"interviewoj/internal/problem/service"
	"interviewoj/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemReader serves problem views.
type ProblemReader interface {
	GetProblem(ctx context.Context, problemID int64) (*service.ProblemView, error)
}

// ProblemController handles problem HTTP endpoints.
type ProblemController struct {
	problemService ProblemReader
}

// NewProblemController creates a new ProblemController.
func NewProblemController(problemService ProblemReader) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// Register mounts the problem routes on group.
func (h *ProblemController) Register(group *gin.RouterGroup) {
	group.GET("/problems/:id", h.Get)
}

// Get returns the public view of a problem.
func (h *ProblemController) Get(c *gin.Context) {
	idStr := c.Param("id")
	problemID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "Invalid problem id")
		return
	}

	view, err := h.problemService.GetProblem(c.Request.Context(), problemID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}
