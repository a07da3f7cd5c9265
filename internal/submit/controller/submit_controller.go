package controller

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"interviewoj/internal/judge/model"
	"interviewoj/internal/submit/service"
	appErr "interviewoj/pkg/errors"
	pkgrepo "interviewoj/pkg/repository"
	"interviewoj/pkg/utils/contextkey"
	"interviewoj/pkg/utils/response"
)

// SubmissionService is what the HTTP layer needs from the submit service.
type SubmissionService interface {
	Run(ctx context.Context, input service.SubmitInput) (*service.RunResult, error)
	Submit(ctx context.Context, input service.SubmitInput) (*service.SubmitResult, error)
	History(ctx context.Context, userID string, problemID int64, page, pageSize int) ([]*model.Submission, bool, error)
	GetSubmission(ctx context.Context, userID, submissionID string) (*model.Submission, error)
	SolvedProblems(ctx context.Context, userID string) ([]int64, error)
}

// SubmitController handles submission HTTP endpoints.
type SubmitController struct {
	submitService SubmissionService
}

// NewSubmitController creates a new SubmitController.
func NewSubmitController(submitService SubmissionService) *SubmitController {
	return &SubmitController{submitService: submitService}
}

// Register mounts the submission routes on group.
func (h *SubmitController) Register(group *gin.RouterGroup) {
	submissions := group.Group("/submissions")
	submissions.POST("/run/:problemId", h.Run)
	submissions.POST("/submit/:problemId", h.Submit)
	submissions.GET("/history/:problemId", h.History)
	submissions.GET("/solved", h.Solved)
	submissions.GET("/:id", h.Get)
}

// Run judges code against the visible cases.
func (h *SubmitController) Run(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	result, err := h.submitService.Run(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Submit judges code against every case and records the attempt.
func (h *SubmitController) Submit(c *gin.Context) {
	input, ok := bindInput(c)
	if !ok {
		return
	}
	result, err := h.submitService.Submit(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// History returns the caller's submissions for one problem, most recent first.
func (h *SubmitController) History(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	problemID, ok := problemIDParam(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(pkgrepo.DefaultPageSize)))
	var opts pkgrepo.ListOptions
	opts.SetPagination(page, pageSize)

	items, hasMore, err := h.submitService.History(c.Request.Context(), userID, problemID, opts.Page(), opts.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	views := make([]SubmissionView, len(items))
	for i, sub := range items {
		views[i] = newSubmissionView(sub)
	}
	response.SuccessWithPage(c, views, opts.Page(), opts.Limit, hasMore)
}

// Get returns one of the caller's submissions.
func (h *SubmitController) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	sub, err := h.submitService.GetSubmission(c.Request.Context(), userID, submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, newSubmissionView(sub))
}

// Solved lists the problems the caller has solved.
func (h *SubmitController) Solved(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	ids, err := h.submitService.SolvedProblems(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, SolvedResponse{ProblemIDs: ids})
}

func bindInput(c *gin.Context) (service.SubmitInput, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return service.SubmitInput{}, false
	}
	problemID, ok := problemIDParam(c)
	if !ok {
		return service.SubmitInput{}, false
	}
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters")
		return service.SubmitInput{}, false
	}
	return service.SubmitInput{
		UserID:    userID,
		ProblemID: problemID,
		Language:  req.Language,
		Code:      req.Code,
	}, true
}

func currentUserID(c *gin.Context) (string, bool) {
	userID, ok := contextkey.UserIDFrom(c.Request.Context())
	if !ok {
		response.Error(c, appErr.UnauthorizedError("missing user identity"))
		return "", false
	}
	return userID, true
}

func problemIDParam(c *gin.Context) (int64, bool) {
	problemID, err := strconv.ParseInt(c.Param("problemId"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "Invalid problem id")
		return 0, false
	}
	return problemID, true
}

// SubmitRequest defines the run and submit payload.
type SubmitRequest struct {
	Code     string `json:"code" binding:"required"`
	Language string `json:"language" binding:"required"`
}

// SubmissionView is the history and detail representation of a submission.
type SubmissionView struct {
	ID           string             `json:"id"`
	ProblemID    int64              `json:"problem_id"`
	Language     model.Language     `json:"language"`
	Code         string             `json:"code"`
	Mode         model.Mode         `json:"mode"`
	Status       string             `json:"status"`
	Accepted     bool               `json:"accepted"`
	PassedCount  int                `json:"passed_count"`
	TotalCount   int                `json:"total_count"`
	RuntimeMs    int64              `json:"runtime_ms"`
	MemoryKb     int64              `json:"memory_kb"`
	ErrorMessage string             `json:"error_message,omitempty"`
	CaseResults  []model.CaseResult `json:"case_results,omitempty"`
	CreatedAt    string             `json:"created_at"`
}

func newSubmissionView(sub *model.Submission) SubmissionView {
	return SubmissionView{
		ID:           sub.ID,
		ProblemID:    sub.ProblemID,
		Language:     sub.Language,
		Code:         sub.Code,
		Mode:         sub.Mode,
		Status:       sub.Status.String(),
		Accepted:     sub.Accepted(),
		PassedCount:  sub.PassedCount,
		TotalCount:   sub.TotalCount,
		RuntimeMs:    sub.RuntimeMs,
		MemoryKb:     sub.MemoryKb,
		ErrorMessage: sub.ErrorMessage,
		CaseResults:  sub.CaseResults,
		CreatedAt:    sub.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// SolvedResponse lists solved problem ids.
type SolvedResponse struct {
	ProblemIDs []int64 `json:"problem_ids"`
}
