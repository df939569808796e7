package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"stripe-minter.backend/internal/domain/entities"
	domainerrors "stripe-minter.backend/internal/domain/errors"
	"stripe-minter.backend/internal/interfaces/http/response"
)

type failedJobService interface {
	List(ctx context.Context, limit, offset int) ([]*entities.FailedJob, int, error)
	Retry(ctx context.Context, id uuid.UUID) (*entities.FailedJob, error)
	QueueStats(ctx context.Context) (entities.QueueStats, error)
}

// OpsHandler serves the operator endpoints for the job queue
type OpsHandler struct {
	failedJobUsecase failedJobService
}

// NewOpsHandler creates a new ops handler
func NewOpsHandler(failedJobUsecase failedJobService) *OpsHandler {
	return &OpsHandler{failedJobUsecase: failedJobUsecase}
}

// ListFailedJobs lists archived failed jobs
// GET /ops/failed-jobs?limit=&offset=
func (h *OpsHandler) ListFailedJobs(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.Error(c, domainerrors.BadRequest("limit must be an integer"))
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		response.Error(c, domainerrors.BadRequest("offset must be an integer"))
		return
	}

	items, total, err := h.failedJobUsecase.List(c.Request.Context(), limit, offset)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"items": items,
		"total": total,
	})
}

// RetryFailedJob re-enqueues an archived job
// POST /ops/failed-jobs/:id/retry
func (h *OpsHandler) RetryFailedJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid failed job id"))
		return
	}

	failed, err := h.failedJobUsecase.Retry(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, failed)
}

// QueueStats returns job counts per queue state
// GET /ops/queue/stats
func (h *OpsHandler) QueueStats(c *gin.Context) {
	stats, err := h.failedJobUsecase.QueueStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, stats)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
