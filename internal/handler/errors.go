package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"procurement/internal/apperr"
	"procurement/pkg/response"
)

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidState:
		return http.StatusConflict
	case apperr.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err with its kind and field. Store failures are
// reported without their underlying cause.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)

	msg := apperr.MessageOf(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, response.CodedError(status, string(kind), apperr.FieldOf(err), msg))
}
