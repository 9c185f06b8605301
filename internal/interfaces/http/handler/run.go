package handler

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/interfaces/http/dto"
	"github.com/erp/shipcheck/internal/interfaces/http/router"
)

// RunService is the application service behind the run endpoints
type RunService interface {
	Execute(ctx context.Context, trigger reconciliation.RunTrigger) (*reconciliation.RunRecord, error)
	History(ctx context.Context, limit int) ([]reconciliation.RunRecord, error)
}

// RunHandler exposes run history and on-demand runs
type RunHandler struct {
	BaseHandler
	service RunService
}

// NewRunHandler creates a new RunHandler
func NewRunHandler(service RunService) *RunHandler {
	return &RunHandler{service: service}
}

// Routes returns the /runs route group
func (h *RunHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("runs", "/runs").
		GET("", h.List).
		POST("", h.Trigger)
}

// List returns recent runs, newest first. ?limit defaults to 20 and is capped at 100.
func (h *RunHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.BadRequest(c, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.service.History(c.Request.Context(), limit)
	if err != nil {
		logger.GetGinLogger(c).Error("Failed to load run history", zap.Error(err))
		h.InternalError(c)
		return
	}
	h.Success(c, dto.NewRunRecordListResponse(records))
}

// Trigger runs a reconciliation pass synchronously and returns its record
func (h *RunHandler) Trigger(c *gin.Context) {
	record, err := h.service.Execute(c.Request.Context(), reconciliation.RunTriggerHTTP)
	switch {
	case err == nil:
		h.Success(c, dto.NewRunRecordResponse(record))
	case errors.Is(err, reconciliation.ErrRunInProgress):
		h.Error(c, dto.ErrCodeRunInProgress, "a reconciliation run is already in progress")
	case record != nil:
		h.ErrorWithData(c, dto.ErrCodeRunFailed, err.Error(), dto.NewRunRecordResponse(record))
	default:
		logger.GetGinLogger(c).Error("Failed to start run", zap.Error(err))
		h.InternalError(c)
	}
}
