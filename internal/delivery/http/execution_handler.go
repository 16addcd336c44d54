package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
	"github.com/dkedar7/pyshala/internal/usecase"
)

// ExecutionHandler serves the synchronous Run and Run Tests calls.
type ExecutionHandler struct {
	runUC   *usecase.RunCodeUsecase
	gradeUC *usecase.GradeCodeUsecase
	logger  *zap.Logger
}

// NewExecutionHandler creates a new ExecutionHandler.
func NewExecutionHandler(runUC *usecase.RunCodeUsecase, gradeUC *usecase.GradeCodeUsecase, logger *zap.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		runUC:   runUC,
		gradeUC: gradeUC,
		logger:  logger,
	}
}

// Run handles POST /api/v1/run
func (h *ExecutionHandler) Run(c *gin.Context) {
	var req domain.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.runUC.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Run", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Grade handles POST /api/v1/grade
func (h *ExecutionHandler) Grade(c *gin.Context) {
	var req domain.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	results, err := h.gradeUC.Execute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, "Grade", err)
		return
	}

	c.JSON(http.StatusOK, results)
}
