package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aescanero/assetforge/internal/application/orchestrator"
	"github.com/aescanero/assetforge/pkg/domain"
	"github.com/aescanero/assetforge/pkg/ports"
)

// PipelineResponse describes the current run
type PipelineResponse struct {
	RunID           string           `json:"run_id"`
	Status          domain.RunStatus `json:"status"`
	Success         bool             `json:"success"`
	CancelRequested bool             `json:"cancel_requested"`
	Error           string           `json:"error,omitempty"`
	Summary         domain.Summary   `json:"summary"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := s.pipeline.Status()
	pipelineCheck := "ok"
	if status == domain.RunStatusAborted {
		pipelineCheck = "aborted"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks": gin.H{
			"pipeline": pipelineCheck,
		},
		"run_status": status,
	})
}

// handleGetPipeline returns the current run status and summary
func (s *Server) handleGetPipeline(c *gin.Context) {
	snap := s.pipeline.Snapshot()

	c.JSON(http.StatusOK, PipelineResponse{
		RunID:           snap.RunID,
		Status:          snap.Status,
		Success:         snap.Success,
		CancelRequested: s.pipeline.CancelRequested(),
		Error:           snap.Error,
		Summary:         snap.Summary,
		StartedAt:       snap.StartedAt,
		CompletedAt:     snap.CompletedAt,
	})
}

// handleListSteps returns every step in declaration order
func (s *Server) handleListSteps(c *gin.Context) {
	steps := s.pipeline.Steps()

	c.JSON(http.StatusOK, gin.H{
		"run_id": s.pipeline.RunID(),
		"steps":  steps,
		"total":  len(steps),
	})
}

// handleGetStep returns one step's state
func (s *Server) handleGetStep(c *gin.Context) {
	name, err := domain.ParseStepName(c.Param("name"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_STEP_NAME", err.Error())
		return
	}

	st, err := s.pipeline.GetStep(name)
	if err != nil {
		if errors.Is(err, orchestrator.ErrUnknownStep) {
			abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Step not found")
			return
		}
		s.logger.Error("failed to get step", zap.String("step", name.String()), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}

	c.JSON(http.StatusOK, st)
}

// handleGetSummary returns status counts for the current run
func (s *Server) handleGetSummary(c *gin.Context) {
	summary := s.pipeline.GetSummary()

	c.JSON(http.StatusOK, gin.H{
		"run_id":  s.pipeline.RunID(),
		"summary": summary,
		"success": summary.Success(),
	})
}

// handleCancel requests cancellation of the current run
func (s *Server) handleCancel(c *gin.Context) {
	status := s.pipeline.Status()
	if status.IsFinished() {
		abortWithError(c, http.StatusConflict, "ALREADY_FINISHED", "Run already finished with status "+string(status))
		return
	}

	s.pipeline.Cancel()
	s.logger.Info("cancellation requested over HTTP", zap.String("client_ip", c.ClientIP()))

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":       s.pipeline.RunID(),
		"status":       status,
		"cancelled_at": time.Now().UTC(),
	})
}

// handleListRuns lists mirrored run snapshots
func (s *Server) handleListRuns(c *gin.Context) {
	if s.storage == nil {
		abortWithError(c, http.StatusServiceUnavailable, "STORAGE_NOT_AVAILABLE", "Run storage is not configured")
		return
	}

	runs, err := s.storage.ListRuns(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to retrieve runs",
				Details: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun returns one mirrored run snapshot
func (s *Server) handleGetRun(c *gin.Context) {
	if s.storage == nil {
		abortWithError(c, http.StatusServiceUnavailable, "STORAGE_NOT_AVAILABLE", "Run storage is not configured")
		return
	}

	runID := c.Param("id")
	snap, err := s.storage.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, ports.ErrRunNotFound) {
			abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Run not found")
			return
		}
		s.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, snap)
}
