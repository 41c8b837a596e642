package controller

import (
	"context"
	"strconv"

	"switchdesk/internal/problem/model"
	"switchdesk/internal/problem/service"
	pkgrepo "switchdesk/pkg/repository"
	"switchdesk/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// ProblemService is the service surface the HTTP layer needs.
type ProblemService interface {
	CreateProblem(ctx context.Context, input service.CreateInput) (model.Problem, error)
	GetProblem(ctx context.Context, id int64) (model.Problem, error)
	ListProblems(ctx context.Context) ([]model.Problem, error)
	QueryProblems(ctx context.Context, input service.QueryInput) (model.Page, error)
	ListOperators(ctx context.Context) ([]string, error)
	ListCommutators(ctx context.Context, operator string) ([]string, error)
	GetAggregates(ctx context.Context) (model.Aggregates, error)
}

// ProblemController handles problem record HTTP endpoints.
type ProblemController struct {
	problemService ProblemService
}

// NewProblemController creates a new ProblemController.
func NewProblemController(problemService ProblemService) *ProblemController {
	return &ProblemController{problemService: problemService}
}

// Register mounts the problem routes on group.
func (h *ProblemController) Register(group *gin.RouterGroup) {
	group.POST("", h.Create)
	group.GET("", h.List)
	group.GET("/query", h.Query)
	group.GET("/operators", h.Operators)
	group.GET("/commutators", h.Commutators)
	group.GET("/aggregates", h.Aggregates)
	group.GET("/:id", h.Get)
}

// Create handles problem creation.
func (h *ProblemController) Create(c *gin.Context) {
	var req service.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request parameters", nil)
		return
	}

	problem, err := h.problemService.CreateProblem(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err, nil)
		return
	}
	response.Created(c, problem)
}

// Get handles single record lookup.
func (h *ProblemController) Get(c *gin.Context) {
	problemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || problemID <= 0 {
		response.BadRequest(c, "Invalid problem id", nil)
		return
	}

	problem, err := h.problemService.GetProblem(c.Request.Context(), problemID)
	if err != nil {
		response.Error(c, err, nil)
		return
	}
	response.Success(c, problem)
}

// List returns every record.
func (h *ProblemController) List(c *gin.Context) {
	problems, err := h.problemService.ListProblems(c.Request.Context())
	if err != nil {
		response.Error(c, err, []model.Problem{})
		return
	}
	response.Success(c, problems)
}

// Query returns one page of the searched, sorted listing.
func (h *ProblemController) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		empty := pkgrepo.NewPaginationResult[model.Problem](nil, 0, pkgrepo.PageRequest{}.Normalize())
		response.BadRequest(c, "Invalid query parameters", empty)
		return
	}

	page, err := h.problemService.QueryProblems(c.Request.Context(), service.QueryInput{
		Search:   req.Search,
		Sort:     req.Sort,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err, page)
		return
	}
	response.Success(c, page)
}

// Operators returns the distinct operators.
func (h *ProblemController) Operators(c *gin.Context) {
	operators, err := h.problemService.ListOperators(c.Request.Context())
	if err != nil {
		response.Error(c, err, []string{})
		return
	}
	response.Success(c, operators)
}

// Commutators returns the distinct commutators of one operator.
func (h *ProblemController) Commutators(c *gin.Context) {
	commutators, err := h.problemService.ListCommutators(c.Request.Context(), c.Query("operator"))
	if err != nil {
		response.Error(c, err, []string{})
		return
	}
	response.Success(c, commutators)
}

// Aggregates returns the chart series.
func (h *ProblemController) Aggregates(c *gin.Context) {
	aggs, err := h.problemService.GetAggregates(c.Request.Context())
	if err != nil {
		response.Error(c, err, model.EmptyAggregates())
		return
	}
	response.Success(c, aggs)
}

// QueryRequest defines the listing query parameters. Page is 0-indexed.
type QueryRequest struct {
	Search   string `form:"search"`
	Sort     string `form:"sort"`
	Page     int    `form:"page" binding:"min=0,max=2147483647"`
	PageSize int    `form:"page_size" binding:"min=0,max=100"`
}
