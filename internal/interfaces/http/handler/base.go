package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/shipcheck/internal/infrastructure/logger"
	"github.com/erp/shipcheck/internal/interfaces/http/dto"
)

// BaseHandler provides common response helpers
type BaseHandler struct{}

// getRequestID returns the id the logging middleware put on the request
func getRequestID(c *gin.Context) string {
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status derived from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, getRequestID(c)))
}

// ErrorWithData sends an error response that still carries a payload
func (h *BaseHandler) ErrorWithData(c *gin.Context, code, message string, data any) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, getRequestID(c)).WithData(data))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 response without leaking the cause
func (h *BaseHandler) InternalError(c *gin.Context) {
	h.Error(c, dto.ErrCodeInternal, "internal server error")
}
