package middleware

import (
	"fmt"
	"net/http"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the body written for every failed request.
type ErrorResponse struct {
	Status  int            `json:"status"`
	Code    string         `json:"code"`
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TraceID string         `json:"traceId"`
}

// ErrorHandler writes the last error recorded on the context as an
// ErrorResponse. Internal errors are logged and returned without detail.
func ErrorHandler(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		e := apperr.As(err)
		traceID := RequestID(c)
		status := e.Status()

		resp := ErrorResponse{
			Status:  status,
			Code:    e.Code,
			Error:   http.StatusText(status),
			Message: e.Message,
			Details: e.Details,
			TraceID: traceID,
		}
		if e.Kind == apperr.KindInternal {
			log.Error("request failed",
				zap.String("traceId", traceID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.FullPath()),
				zap.Error(err))
			resp.Message = "an unexpected error occurred"
			resp.Details = nil
		}
		c.JSON(status, resp)
	}
}

// Recovery turns a panic into an internal error for ErrorHandler.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				if r == http.ErrAbortHandler {
					panic(r)
				}
				utils.Fail(c, apperr.Internal(fmt.Errorf("panic: %v", r), "panic recovered"))
			}
		}()
		c.Next()
	}
}
